package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"invoice-sync-service/internal/events"
)

var ErrEmptyBatch = errors.New("invoices created event has no invoice ids")

type invoicesCreatedHandler struct {
	dispatcher events.Handler
}

func NewInvoicesCreatedHandler(dispatcher events.Handler) *invoicesCreatedHandler {
	return &invoicesCreatedHandler{dispatcher: dispatcher}
}

func (h *invoicesCreatedHandler) HandleMessage(ctx context.Context, message []byte) error {
	var event events.InvoicesCreated
	if err := json.Unmarshal(message, &event); err != nil {
		return fmt.Errorf("failed to unmarshal invoices created event: %w", err)
	}
	if len(event.InvoiceIDs) == 0 {
		return ErrEmptyBatch
	}
	return h.dispatcher.HandleInvoicesCreated(ctx, event)
}
