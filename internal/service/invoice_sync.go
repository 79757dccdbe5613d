package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invoice-sync-service/internal/domain"
	"invoice-sync-service/internal/events"
	"invoice-sync-service/internal/ing"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type InvoiceStore interface {
	FindPaidOrdersMissingInvoice(ctx context.Context) ([]domain.Order, error)
	RecordInvoiceID(ctx context.Context, orderID, invoiceID int64) error
}

type InvoiceBuilder interface {
	Build(ctx context.Context, order domain.Order) (*ing.Invoice, error)
}

type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, invoice *ing.Invoice) (int64, error)
}

type InvoiceSyncService struct {
	store     InvoiceStore
	builder   InvoiceBuilder
	creator   InvoiceCreator
	publisher events.Publisher
	now       func() time.Time
}

func NewInvoiceSyncService(store InvoiceStore, builder InvoiceBuilder, creator InvoiceCreator, publisher events.Publisher) *InvoiceSyncService {
	return &InvoiceSyncService{
		store:     store,
		builder:   builder,
		creator:   creator,
		publisher: publisher,
		now:       time.Now,
	}
}

// Run invoices every paid order that has no invoice yet and publishes the ids created in this cycle
// as one batch. It returns nil when no invoice was created.
//
// Orders whose stored data cannot produce an invoice get domain.SkippedInvoiceID so they are not
// retried. Storage and accounting-service failures leave the invoice id empty, so the order is
// picked up again next cycle.
func (s *InvoiceSyncService) Run(ctx context.Context) (*events.InvoicesCreated, error) {
	orders, err := s.store.FindPaidOrdersMissingInvoice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders awaiting invoice: %w", err)
	}

	runID := uuid.New()
	var created []int64
	skipped, failed := 0, 0

	for _, order := range orders {
		if err := ctx.Err(); err != nil {
			break
		}

		logCtx := log.WithFields(log.Fields{
			"run_id":            runID,
			"order_id":          order.ID,
			"platform_order_id": order.PlatformOrderID,
		})

		invoice, err := s.builder.Build(ctx, order)
		if errors.Is(err, domain.ErrInvoiceIncomplete) {
			skipped++
			logCtx.WithError(err).Warn("Cannot build invoice, marking order as skipped")
			if err := s.store.RecordInvoiceID(ctx, order.ID, domain.SkippedInvoiceID); err != nil {
				logCtx.WithError(err).Error("Failed to mark order as skipped")
			}
			continue
		}
		if err != nil {
			failed++
			logCtx.WithError(err).Error("Failed to build invoice, will retry next cycle")
			continue
		}

		invoiceID, err := s.creator.CreateInvoice(ctx, invoice)
		if err != nil {
			failed++
			logCtx.WithError(err).Error("Failed to create invoice, will retry next cycle")
			continue
		}

		logCtx = logCtx.WithField("invoice_id", invoiceID)
		created = append(created, invoiceID)
		if err := s.store.RecordInvoiceID(ctx, order.ID, invoiceID); err != nil {
			// The invoice exists remotely; it is still notified even though the order row lags behind.
			logCtx.WithError(err).Error("Failed to record invoice id")
			continue
		}
		logCtx.Info("Invoice created")
	}

	log.WithFields(log.Fields{
		"run_id":  runID,
		"pending": len(orders),
		"created": len(created),
		"skipped": skipped,
		"failed":  failed,
	}).Info("Invoice sync finished")

	if len(created) == 0 {
		return nil, nil
	}

	event := events.InvoicesCreated{
		RunID:      runID,
		InvoiceIDs: created,
		CreatedAt:  s.now(),
	}
	// The cycle context may already be spent; the batch must still go out.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.publisher.PublishInvoicesCreated(pubCtx, event); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"run_id":      runID,
			"invoice_ids": created,
		}).Error("Failed to publish invoices created event, invoices will not be mailed")
		return &event, fmt.Errorf("failed to publish invoices created event: %w", err)
	}
	return &event, nil
}

func (s *InvoiceSyncService) Job(ctx context.Context) error {
	_, err := s.Run(ctx)
	return err
}
