package worker

import (
	"context"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// MessageSource is implemented by *broker.Consumer
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// PaymentOutcomeHandler applies payment results to orders
type PaymentOutcomeHandler interface {
	HandlePaymentSuccess(ctx context.Context, event *models.PaymentSuccessEvent) error
	HandlePaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
}

// OrderCreatedHandler charges newly created orders
type OrderCreatedHandler interface {
	HandleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
}

// OrderWorker applies payment outcomes to orders
type OrderWorker struct {
	consumer     MessageSource
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewOrderWorker creates a new order worker
func NewOrderWorker(consumer MessageSource, reconciler PaymentOutcomeHandler) *OrderWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnPaymentSuccess(reconciler.HandlePaymentSuccess)
	eventHandler.OnPaymentFailed(reconciler.HandlePaymentFailed)

	return &OrderWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start blocks consuming events until ctx is cancelled
func (w *OrderWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting order worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *OrderWorker) Stop() error {
	w.logger.Info("Stopping order worker")
	return w.consumer.Close()
}

// PaymentWorker charges orders as they are created
type PaymentWorker struct {
	consumer     MessageSource
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewPaymentWorker creates a new payment worker
func NewPaymentWorker(consumer MessageSource, payments OrderCreatedHandler) *PaymentWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(payments.HandleOrderCreated)

	return &PaymentWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start blocks consuming events until ctx is cancelled
func (pw *PaymentWorker) Start(ctx context.Context) error {
	pw.logger.Info("Starting payment worker")
	return pw.consumer.StartConsuming(ctx, pw.eventHandler.HandleMessage)
}

// Stop stops the payment worker
func (pw *PaymentWorker) Stop() error {
	pw.logger.Info("Stopping payment worker")
	return pw.consumer.Close()
}
