// Package events carries the batch of newly created invoices from the invoice sync to the notification dispatcher.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var ErrBusClosed = errors.New("event bus closed")

// InvoicesCreated is emitted once per invoice cycle that created at least one invoice.
type InvoicesCreated struct {
	RunID      uuid.UUID `json:"run_id"`
	InvoiceIDs []int64   `json:"invoice_ids"`
	CreatedAt  time.Time `json:"created_at"`
}

type Publisher interface {
	PublishInvoicesCreated(ctx context.Context, event InvoicesCreated) error
}

type Handler interface {
	HandleInvoicesCreated(ctx context.Context, event InvoicesCreated) error
}

// ChannelBus is an in-process Publisher backed by a buffered channel.
type ChannelBus struct {
	ch     chan InvoicesCreated
	closed chan struct{}
}

func NewChannelBus(buffer int) *ChannelBus {
	return &ChannelBus{
		ch:     make(chan InvoicesCreated, buffer),
		closed: make(chan struct{}),
	}
}

func (b *ChannelBus) PublishInvoicesCreated(ctx context.Context, event InvoicesCreated) error {
	select {
	case <-b.closed:
		return ErrBusClosed
	default:
	}

	select {
	case b.ch <- event:
		return nil
	case <-b.closed:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start delivers events to h one at a time until ctx is cancelled or the bus is closed.
// Events still buffered at that point are logged and dropped.
func (b *ChannelBus) Start(ctx context.Context, h Handler) error {
	for !b.stopped(ctx) {
		select {
		case <-ctx.Done():
		case <-b.closed:
		case event := <-b.ch:
			logCtx := log.WithFields(log.Fields{
				"run_id":      event.RunID,
				"invoice_ids": event.InvoiceIDs,
			})
			logCtx.Info("Processing invoices created event")
			if err := h.HandleInvoicesCreated(ctx, event); err != nil {
				logCtx.WithError(err).Error("Failed to handle invoices created event")
			}
		}
	}

	b.dropPending()
	if err := ctx.Err(); err != nil {
		log.Info("Invoice event bus stopping due to context cancellation")
		return err
	}
	return nil
}

func (b *ChannelBus) stopped(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-b.closed:
		return true
	default:
		return false
	}
}

// dropPending logs every event still buffered so its invoices can be mailed by hand.
func (b *ChannelBus) dropPending() {
	for {
		select {
		case event := <-b.ch:
			log.WithFields(log.Fields{
				"run_id":      event.RunID,
				"invoice_ids": event.InvoiceIDs,
			}).Error("Dropping undelivered invoices created event, invoices will not be mailed")
		default:
			return
		}
	}
}

func (b *ChannelBus) Close() error {
	select {
	case <-b.closed:
	default:
		close(b.closed)
	}
	return nil
}
