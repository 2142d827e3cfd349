package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"storefront/internal/models"
)

// snapshot is the key-value export of the old storefront: vendors and
// products keyed by id.
type snapshot struct {
	Vendors  []models.Vendor  `json:"vendors"`
	Products []models.Product `json:"products"`
}

type catalogWriter interface {
	SaveVendor(ctx context.Context, v *models.Vendor) error
	SaveProduct(ctx context.Context, p *models.Product) error
}

func readSnapshot(r io.Reader) (*snapshot, error) {
	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// importSnapshot upserts vendors before products so vendor references resolve
func importSnapshot(ctx context.Context, w catalogWriter, snap *snapshot) (int, int, error) {
	now := time.Now().UTC()

	for i := range snap.Vendors {
		v := &snap.Vendors[i]
		if v.ID == "" {
			return 0, 0, fmt.Errorf("vendor %d has no id", i)
		}
		if v.CreatedAt.IsZero() {
			v.CreatedAt = now
		}
		v.UpdatedAt = now
		if err := w.SaveVendor(ctx, v); err != nil {
			return 0, 0, fmt.Errorf("failed to import vendor %s: %w", v.ID, err)
		}
	}

	for i := range snap.Products {
		p := &snap.Products[i]
		if p.ID == "" {
			return len(snap.Vendors), 0, fmt.Errorf("product %d has no id", i)
		}
		if p.Stock < 0 {
			p.Stock = 0
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		if err := w.SaveProduct(ctx, p); err != nil {
			return len(snap.Vendors), 0, fmt.Errorf("failed to import product %s: %w", p.ID, err)
		}
	}

	return len(snap.Vendors), len(snap.Products), nil
}
