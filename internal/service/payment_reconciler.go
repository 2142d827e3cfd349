package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// PaymentReconciler applies payment outcomes to orders. Only the order's
// payment status changes; fulfillment status is left to vendors.
type PaymentReconciler struct {
	repo   PaymentRepository
	logger *zap.Logger
}

// NewPaymentReconciler creates a new payment reconciler
func NewPaymentReconciler(repo PaymentRepository) *PaymentReconciler {
	return &PaymentReconciler{repo: repo, logger: util.GetLogger()}
}

// HandlePaymentSuccess marks the order paid
func (pr *PaymentReconciler) HandlePaymentSuccess(ctx context.Context, event *models.PaymentSuccessEvent) error {
	ctx, span := util.StartSpan(ctx, "PaymentReconciler.HandlePaymentSuccess", "order_id", event.OrderID)
	defer span.End()

	return pr.apply(ctx, event.EventID, event.EventType, event.OrderID, models.PaymentStatusPaid,
		zap.String("tx_id", event.TxID))
}

// HandlePaymentFailed marks the order's payment failed
func (pr *PaymentReconciler) HandlePaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	ctx, span := util.StartSpan(ctx, "PaymentReconciler.HandlePaymentFailed", "order_id", event.OrderID)
	defer span.End()

	return pr.apply(ctx, event.EventID, event.EventType, event.OrderID, models.PaymentStatusFailed,
		zap.String("reason", event.Reason))
}

func (pr *PaymentReconciler) apply(ctx context.Context, eventID, eventType, orderID, paymentStatus string, detail zap.Field) error {
	processed, err := pr.repo.IsEventProcessed(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		pr.logger.Info("Event already processed", zap.String("event_id", eventID))
		return nil
	}

	if _, err := pr.repo.GetOrderByID(ctx, orderID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to load order: %w", err)
		}
		// Deleted orders have nothing to reconcile.
		pr.logger.Warn("Payment event for unknown order",
			zap.String("order_id", orderID),
			zap.String("event_id", eventID))
	} else {
		if err := pr.repo.UpdatePaymentStatus(ctx, orderID, paymentStatus); err != nil {
			return fmt.Errorf("failed to update payment status: %w", err)
		}
		pr.logger.Info("Order payment reconciled",
			zap.String("order_id", orderID),
			zap.String("payment_status", paymentStatus),
			detail)
	}

	if err := pr.repo.MarkEventProcessed(ctx, eventID, eventType); err != nil {
		pr.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}
