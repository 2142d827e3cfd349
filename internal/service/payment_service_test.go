package service

import (
	"context"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPaymentService(repo PaymentRepository, events PaymentEventPublisher, outcome float64) *PaymentService {
	ps := NewPaymentService(repo, events, 0.9)
	ps.roll = func() float64 { return outcome }
	ps.delay = func() time.Duration { return 0 }
	return ps
}

func placeTestOrder(t *testing.T) (*orderFixture, *models.Order) {
	t.Helper()
	f := newOrderFixture(t)
	f.fillCart(t, "cart-1")
	order, err := f.orders.CreateOrder(context.Background(), "cart-1", jane, "")
	require.NoError(t, err)
	return f, order
}

func TestPaymentService_Success(t *testing.T) {
	f, order := placeTestOrder(t)
	ctx := context.Background()
	ps := newTestPaymentService(f.repo, f.events, 0.1)

	require.NoError(t, ps.HandleOrderCreated(ctx, f.events.created[0]))

	payment, err := ps.GetPayment(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, payment.Status)
	assert.NotEmpty(t, payment.ProviderTxID)
	assert.True(t, decimal.RequireFromString("312.5").Equal(payment.Amount))

	require.Len(t, f.events.paid, 1)
	assert.Equal(t, order.ID, f.events.paid[0].OrderID)
	assert.Empty(t, f.events.failed)
}

func TestPaymentService_RedeliveredOrderCreatedChargesOnce(t *testing.T) {
	f, order := placeTestOrder(t)
	ctx := context.Background()
	ps := newTestPaymentService(f.repo, f.events, 0.1)

	event := f.events.created[0]
	require.NoError(t, ps.HandleOrderCreated(ctx, event))
	require.NoError(t, ps.HandleOrderCreated(ctx, event))

	var payments int
	require.NoError(t, f.db.GetDB().GetContext(ctx, &payments,
		"SELECT COUNT(*) FROM payments WHERE order_id = ?", order.ID))
	assert.Equal(t, 1, payments)
	assert.Len(t, f.events.paid, 1)
}

func TestPaymentService_Declined(t *testing.T) {
	f, order := placeTestOrder(t)
	ctx := context.Background()
	ps := newTestPaymentService(f.repo, f.events, 0.95)

	require.NoError(t, ps.ProcessPayment(ctx, order.ID, order.Total))

	payment, err := ps.GetPayment(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	require.Len(t, f.events.failed, 1)
	assert.Equal(t, "mock_payment_declined", f.events.failed[0].Reason)
}

func TestPaymentReconciler(t *testing.T) {
	f, order := placeTestOrder(t)
	ctx := context.Background()
	reconciler := NewPaymentReconciler(f.repo)

	failed := &models.PaymentFailedEvent{
		BaseEvent: newBaseEvent(models.EventTypePaymentFailed),
		OrderID:   order.ID,
	}
	require.NoError(t, reconciler.HandlePaymentFailed(ctx, failed))

	got, _, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, got.PaymentStatus)
	assert.Equal(t, models.StatusPending, got.Status, "payment outcome never moves fulfillment status")

	paid := &models.PaymentSuccessEvent{
		BaseEvent: newBaseEvent(models.EventTypePaymentSuccess),
		OrderID:   order.ID,
	}
	require.NoError(t, reconciler.HandlePaymentSuccess(ctx, paid))

	got, _, err = f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)

	// replaying the failure is a no-op
	require.NoError(t, reconciler.HandlePaymentFailed(ctx, failed))
	got, _, err = f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
}

func TestPaymentReconciler_UnknownOrder(t *testing.T) {
	repo := newTestStore(t)
	reconciler := NewPaymentReconciler(repo)
	ctx := context.Background()

	event := &models.PaymentSuccessEvent{
		BaseEvent: newBaseEvent(models.EventTypePaymentSuccess),
		OrderID:   "CBDEADBEEF",
	}
	require.NoError(t, reconciler.HandlePaymentSuccess(ctx, event))

	processed, err := repo.IsEventProcessed(ctx, event.EventID)
	require.NoError(t, err)
	assert.True(t, processed)
}
