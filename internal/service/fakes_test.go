package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.NewStore(store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedVendor(t *testing.T, repo Repository, id, name string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, repo.SaveVendor(context.Background(), &models.Vendor{
		ID: id, VendorName: name, BusinessName: name + " Farms", CreatedAt: now, UpdatedAt: now,
	}))
}

func seedProduct(t *testing.T, repo Repository, id, vendorID, price string, stock int) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, repo.SaveProduct(context.Background(), &models.Product{
		ID:        id,
		Name:      "Product " + id,
		Category:  "produce",
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		VendorID:  models.StringPtr(vendorID),
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

type fakeGuard struct {
	mu      sync.Mutex
	locks   map[string]bool
	keys    map[string]string
	lockErr error
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{locks: map[string]bool{}, keys: map[string]string{}}
}

func (g *fakeGuard) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lockErr != nil {
		return false, g.lockErr
	}
	if g.locks[lockKey] {
		return false, nil
	}
	g.locks[lockKey] = true
	return true, nil
}

func (g *fakeGuard) ReleaseLock(ctx context.Context, lockKey string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.locks, lockKey)
	return nil
}

func (g *fakeGuard) GetIdempotentOrder(ctx context.Context, key string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.keys[key], nil
}

func (g *fakeGuard) SetIdempotentOrder(ctx context.Context, key, orderID string, ttl time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.keys[key] = orderID
	return nil
}

type fakePublisher struct {
	mu            sync.Mutex
	created       []*models.OrderCreatedEvent
	itemChanges   []*models.OrderItemStatusChangedEvent
	statusChanges []*models.OrderStatusChangedEvent
	paid          []*models.PaymentSuccessEvent
	failed        []*models.PaymentFailedEvent
	err           error
	// hang makes PublishOrderCreated wait for its context, like an unreachable broker
	hang bool
}

func (p *fakePublisher) PublishOrderCreated(ctx context.Context, e *models.OrderCreatedEvent) error {
	p.mu.Lock()
	p.created = append(p.created, e)
	hang := p.hang
	p.mu.Unlock()
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return p.err
}

func (p *fakePublisher) PublishOrderItemStatusChanged(ctx context.Context, e *models.OrderItemStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.itemChanges = append(p.itemChanges, e)
	return p.err
}

func (p *fakePublisher) PublishOrderStatusChanged(ctx context.Context, e *models.OrderStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusChanges = append(p.statusChanges, e)
	return p.err
}

func (p *fakePublisher) PublishPaymentSuccess(ctx context.Context, e *models.PaymentSuccessEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paid = append(p.paid, e)
	return p.err
}

func (p *fakePublisher) PublishPaymentFailed(ctx context.Context, e *models.PaymentFailedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, e)
	return p.err
}

var errBrokerDown = errors.New("broker down")
