package handler

import (
	"context"
	"testing"

	"invoice-sync-service/internal/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatcherStub struct {
	got []events.InvoicesCreated
}

func (d *dispatcherStub) HandleInvoicesCreated(_ context.Context, e events.InvoicesCreated) error {
	d.got = append(d.got, e)
	return nil
}

func TestHandleMessage(t *testing.T) {
	d := &dispatcherStub{}
	h := NewInvoicesCreatedHandler(d)
	runID := uuid.MustParse("3f1c8e8e-4a7b-4c55-9b39-0a4f1d2c6e11")

	err := h.HandleMessage(context.Background(), []byte(`{"run_id":"3f1c8e8e-4a7b-4c55-9b39-0a4f1d2c6e11","invoice_ids":[11,12],"created_at":"2025-01-08T09:00:00Z"}`))
	require.NoError(t, err)
	require.Len(t, d.got, 1)
	assert.Equal(t, runID, d.got[0].RunID)
	assert.Equal(t, []int64{11, 12}, d.got[0].InvoiceIDs)
}

func TestHandleMessage_Rejects(t *testing.T) {
	d := &dispatcherStub{}
	h := NewInvoicesCreatedHandler(d)

	assert.Error(t, h.HandleMessage(context.Background(), []byte(`not json`)))
	assert.ErrorIs(t, h.HandleMessage(context.Background(), []byte(`{"invoice_ids":[]}`)), ErrEmptyBatch)
	assert.Empty(t, d.got)
}
