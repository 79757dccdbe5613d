package ing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"invoice-sync-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInvoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, createInvoiceURI, r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get(apiKeyHeader))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var inv Invoice
		require.NoError(t, json.NewDecoder(r.Body).Decode(&inv))
		assert.Len(t, inv.Positions, 1)
		assert.Equal(t, "OTHER", inv.Payment.Method)

		_, _ = w.Write([]byte(`{"id": 9001}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "secret-key")
	id, err := c.CreateInvoice(context.Background(), &Invoice{
		Payment:   Payment{Method: paymentOther},
		Positions: []Position{{Name: "Mug"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9001), id)
}

func TestCreateInvoice_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid buyer"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.Client(), srv.URL, "k").CreateInvoice(context.Background(), &Invoice{})
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestDownloadInvoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/api/public/download-invoice/42/pdf", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get(apiKeyHeader))
		if r.URL.Path != "/v2/api/public/download-invoice/42/pdf" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	pdf, err := NewClient(srv.Client(), srv.URL, "k").DownloadInvoice(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), pdf)
}

func TestDownloadInvoice_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewClient(srv.Client(), srv.URL, "k").DownloadInvoice(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrTransport)
}
