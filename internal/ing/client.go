package ing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"invoice-sync-service/internal/domain"

	log "github.com/sirupsen/logrus"
)

const (
	apiKeyHeader     = "ApiUserCompanyRoleKey"
	createInvoiceURI = "/v2/api/public/create-invoice"
	downloadPDFURI   = "/v2/api/public/download-invoice/%d/pdf"
)

// Client talks to the accounting service's public invoice API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(httpClient *http.Client, baseURL, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// CreateInvoice submits the payload and returns the identifier assigned by the accounting service.
func (c *Client) CreateInvoice(ctx context.Context, invoice *Invoice) (int64, error) {
	payload, err := json.Marshal(invoice)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal invoice: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, createInvoiceURI, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: create invoice: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.WithFields(log.Fields{
			"status": resp.StatusCode,
			"body":   string(body),
		}).Warn("Could not create the invoice in the accounting service")
		return 0, fmt.Errorf("%w: create invoice returned %d", domain.ErrTransport, resp.StatusCode)
	}

	var created createInvoiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return 0, fmt.Errorf("%w: decode create invoice response: %v", domain.ErrTransport, err)
	}
	if created.ID <= 0 {
		return 0, fmt.Errorf("%w: create invoice returned id %d", domain.ErrTransport, created.ID)
	}
	return created.ID, nil
}

// DownloadInvoice fetches the rendered PDF document of an invoice.
func (c *Client) DownloadInvoice(ctx context.Context, invoiceID int64) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf(downloadPDFURI, invoiceID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download invoice %d: %v", domain.ErrTransport, invoiceID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: download invoice %d returned %d", domain.ErrTransport, invoiceID, resp.StatusCode)
	}

	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read invoice %d: %v", domain.ErrTransport, invoiceID, err)
	}
	return pdf, nil
}
