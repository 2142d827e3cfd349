package main

import (
	"context"
	"strings"
	"testing"

	"storefront/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSnapshot = `{
  "vendors": [{"id": "v1", "vendorName": "Alpha Farms", "isApproved": true}],
  "products": [
    {"id": "rice", "name": "Rice", "price": "12.50", "stock": 7, "vendorId": "v1"},
    {"id": "yarn", "name": "Yarn", "price": 4, "stock": -3, "vendorId": null}
  ]
}`

func TestImportSnapshot(t *testing.T) {
	ctx := context.Background()
	db, err := store.NewStore(store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate(ctx))

	snap, err := readSnapshot(strings.NewReader(sampleSnapshot))
	require.NoError(t, err)

	vendors, products, err := importSnapshot(ctx, db, snap)
	require.NoError(t, err)
	assert.Equal(t, 1, vendors)
	assert.Equal(t, 2, products)

	rice, err := db.GetProductByID(ctx, "rice")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.5").Equal(rice.Price))
	require.NotNil(t, rice.VendorID)
	assert.Equal(t, "v1", *rice.VendorID)

	yarn, err := db.GetProductByID(ctx, "yarn")
	require.NoError(t, err)
	assert.Equal(t, 0, yarn.Stock)
	assert.Nil(t, yarn.VendorID)

	// re-importing upserts rather than duplicating
	_, _, err = importSnapshot(ctx, db, snap)
	require.NoError(t, err)
}

func TestReadSnapshot_Invalid(t *testing.T) {
	_, err := readSnapshot(strings.NewReader("{not json"))
	assert.Error(t, err)

	snap, err := readSnapshot(strings.NewReader(`{"vendors":[{"vendorName":"x"}]}`))
	require.NoError(t, err)
	_, _, err = importSnapshot(context.Background(), nil, snap)
	assert.Error(t, err)
}
