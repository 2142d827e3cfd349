package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService handles payment processing (mocked)
type PaymentService struct {
	repo           PaymentRepository
	eventPublisher PaymentEventPublisher
	logger         *zap.Logger
	successRate    float64
	roll           func() float64
	delay          func() time.Duration
}

// NewPaymentService creates a new payment service. successRate is the
// probability in [0, 1] that a mocked charge succeeds.
func NewPaymentService(repo PaymentRepository, eventPublisher PaymentEventPublisher, successRate float64) *PaymentService {
	return &PaymentService{
		repo:           repo,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
		successRate:    successRate,
		roll:           rand.Float64,
		delay: func() time.Duration {
			return time.Duration(100+rand.Intn(400)) * time.Millisecond
		},
	}
}

// ProcessPayment charges an order's total (mocked), records the payment and
// publishes the outcome. The order itself is updated by PaymentReconciler.
func (ps *PaymentService) ProcessPayment(ctx context.Context, orderID string, amount decimal.Decimal) error {
	ctx, span := util.StartSpan(ctx, "PaymentService.ProcessPayment", "order_id", orderID)
	defer span.End()

	util.PaymentAttemptsTotal.Inc()
	start := time.Now()
	defer func() {
		util.PaymentProcessingLatency.Observe(time.Since(start).Seconds())
	}()

	ps.logger.Info("Processing payment",
		zap.String("order_id", orderID),
		zap.String("amount", amount.StringFixed(2)))

	now := time.Now().UTC()
	payment := &models.Payment{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		Status:    models.PaymentStatusPending,
		Amount:    amount,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := ps.repo.CreatePayment(ctx, payment); err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	select {
	case <-time.After(ps.delay()):
	case <-ctx.Done():
		return ctx.Err()
	}

	if ps.roll() < ps.successRate {
		providerTxID := fmt.Sprintf("TXN-%s", uuid.New().String()[:8])
		ps.logger.Info("Payment succeeded",
			zap.String("order_id", orderID),
			zap.String("tx_id", providerTxID))

		if err := ps.repo.UpdatePayment(ctx, payment.ID, models.PaymentStatusPaid, providerTxID); err != nil {
			return fmt.Errorf("failed to update payment status: %w", err)
		}

		util.PaymentSuccessTotal.Inc()

		event := &models.PaymentSuccessEvent{
			BaseEvent: newBaseEvent(models.EventTypePaymentSuccess),
			OrderID:   orderID,
			PaymentID: payment.ID,
			Amount:    amount,
			TxID:      providerTxID,
		}
		if err := ps.eventPublisher.PublishPaymentSuccess(ctx, event); err != nil {
			ps.logger.Error("Failed to publish PaymentSuccess event", zap.Error(err))
		}
		return nil
	}

	ps.logger.Warn("Payment failed", zap.String("order_id", orderID))

	if err := ps.repo.UpdatePayment(ctx, payment.ID, models.PaymentStatusFailed, ""); err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	util.PaymentFailedTotal.Inc()

	event := &models.PaymentFailedEvent{
		BaseEvent: newBaseEvent(models.EventTypePaymentFailed),
		OrderID:   orderID,
		PaymentID: payment.ID,
		Reason:    "mock_payment_declined",
	}
	if err := ps.eventPublisher.PublishPaymentFailed(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
	}
	return nil
}

// HandleOrderCreated charges a newly created order. Redelivered events are
// skipped so an order is charged at most once per event.
func (ps *PaymentService) HandleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	processed, err := ps.repo.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		ps.logger.Info("Event already processed",
			zap.String("event_id", event.EventID),
			zap.String("order_id", event.OrderID))
		return nil
	}

	if err := ps.ProcessPayment(ctx, event.OrderID, event.Total); err != nil {
		return err
	}

	if err := ps.repo.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		ps.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}

// GetPayment retrieves the latest payment for an order
func (ps *PaymentService) GetPayment(ctx context.Context, orderID string) (*models.Payment, error) {
	payment, err := ps.repo.GetPaymentByOrderID(ctx, orderID)
	if err != nil {
		return nil, mapNotFound(err, ErrOrderNotFound)
	}
	return payment, nil
}
