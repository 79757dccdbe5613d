package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invoice-sync-service/internal/domain"
	"invoice-sync-service/internal/ebay"
	"invoice-sync-service/internal/repository"
	"invoice-sync-service/internal/validator"

	log "github.com/sirupsen/logrus"
)

type TokenProvider interface {
	EnsureValidToken(ctx context.Context) (string, error)
	Invalidate()
}

type OrderFetcher interface {
	FetchOrders(ctx context.Context, token string, since time.Time) ([]ebay.Order, error)
}

type OrderStore interface {
	FindOrderByPlatformOrderID(ctx context.Context, platformOrderID string) (*domain.Order, error)
	MarkOrderPaid(ctx context.Context, platformOrderID string, paymentDate time.Time) (bool, error)
	InTx(ctx context.Context, fn func(w repository.OrderWriter) error) error
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeMarkedPaid
	outcomeUnchanged
)

// OrderSyncResult counts what one order sync cycle did.
type OrderSyncResult struct {
	Fetched    int
	Created    int
	MarkedPaid int
	Unchanged  int
	Failed     int
}

type OrderSyncService struct {
	tokens   TokenProvider
	fetcher  OrderFetcher
	store    OrderStore
	lookback time.Duration
	now      func() time.Time
}

func NewOrderSyncService(tokens TokenProvider, fetcher OrderFetcher, store OrderStore, lookback time.Duration) *OrderSyncService {
	return &OrderSyncService{
		tokens:   tokens,
		fetcher:  fetcher,
		store:    store,
		lookback: lookback,
		now:      time.Now,
	}
}

// Run pulls the orders created within the lookback window and reconciles each against the store.
// Token and listing failures abort the cycle; a failing order only skips itself.
func (s *OrderSyncService) Run(ctx context.Context) (OrderSyncResult, error) {
	var result OrderSyncResult

	token, err := s.tokens.EnsureValidToken(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to obtain marketplace token: %w", err)
	}

	since := s.now().Add(-s.lookback)
	orders, err := s.fetcher.FetchOrders(ctx, token, since)
	if err != nil {
		if errors.Is(err, domain.ErrAuth) {
			s.tokens.Invalidate()
		}
		return result, fmt.Errorf("failed to fetch orders: %w", err)
	}
	result.Fetched = len(orders)

	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		logCtx := log.WithField("platform_order_id", o.OrderID)
		res, err := s.reconcile(ctx, o)
		if err != nil {
			result.Failed++
			logCtx.WithError(err).Error("Failed to sync order, skipping")
			continue
		}
		switch res {
		case outcomeCreated:
			result.Created++
			logCtx.Info("Order created")
		case outcomeMarkedPaid:
			result.MarkedPaid++
			logCtx.Info("Order marked as paid")
		default:
			result.Unchanged++
			logCtx.Debug("Order skipped, nothing to update")
		}
	}

	log.WithFields(log.Fields{
		"fetched":     result.Fetched,
		"created":     result.Created,
		"marked_paid": result.MarkedPaid,
		"unchanged":   result.Unchanged,
		"failed":      result.Failed,
	}).Info("Order sync finished")
	return result, nil
}

func (s *OrderSyncService) reconcile(ctx context.Context, o ebay.Order) (outcome, error) {
	existing, err := s.store.FindOrderByPlatformOrderID(ctx, o.OrderID)
	if errors.Is(err, domain.ErrNotFound) {
		return s.create(ctx, o)
	}
	if err != nil {
		return outcomeUnchanged, err
	}

	if existing.Paid || o.OrderPaymentStatus != domain.PaymentStatusPaid {
		return outcomeUnchanged, nil
	}
	return s.markPaid(ctx, o, existing)
}

func (s *OrderSyncService) create(ctx context.Context, o ebay.Order) (outcome, error) {
	if err := validator.ValidateOrder(o); err != nil {
		return outcomeUnchanged, err
	}

	order, err := ebay.MapOrder(o)
	if err != nil {
		return outcomeUnchanged, err
	}
	customer, err := ebay.MapCustomer(*o.ShippingAddress(), o.Buyer.Username)
	if err != nil {
		return outcomeUnchanged, err
	}
	items, err := ebay.MapOrderItems(o.LineItems)
	if err != nil {
		return outcomeUnchanged, err
	}

	err = s.store.InTx(ctx, func(w repository.OrderWriter) error {
		customerID, err := w.InsertCustomer(ctx, &customer)
		if err != nil {
			return err
		}
		order.CustomerID = customerID

		orderID, err := w.InsertOrder(ctx, &order)
		if err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = orderID
		}
		return w.InsertOrderItems(ctx, items)
	})
	if errors.Is(err, domain.ErrDuplicateOrder) {
		// Another instance stored the order between the lookup and the insert.
		return outcomeUnchanged, nil
	}
	if err != nil {
		return outcomeUnchanged, err
	}
	return outcomeCreated, nil
}

func (s *OrderSyncService) markPaid(ctx context.Context, o ebay.Order, existing *domain.Order) (outcome, error) {
	paymentDate, err := ebay.PaymentDate(o)
	if err != nil {
		paymentDate = existing.OrderDate
		log.WithError(err).WithFields(log.Fields{
			"platform_order_id": o.OrderID,
			"data_integrity":    true,
			"payment_date":      paymentDate,
		}).Warn("Paid order has no usable payment date, falling back to creation date")
	}

	updated, err := s.store.MarkOrderPaid(ctx, o.OrderID, paymentDate)
	if err != nil {
		return outcomeUnchanged, err
	}
	if !updated {
		return outcomeUnchanged, nil
	}
	return outcomeMarkedPaid, nil
}

// Job adapts Run to the scheduler's job signature.
func (s *OrderSyncService) Job(ctx context.Context) error {
	_, err := s.Run(ctx)
	return err
}
