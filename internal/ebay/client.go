package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"invoice-sync-service/internal/domain"

	log "github.com/sirupsen/logrus"
)

const (
	ordersPath      = "/sell/fulfillment/v1/order"
	filterTimestamp = "2006-01-02T15:04:05.000Z"
)

// Client lists orders from the Fulfillment API.
type Client struct {
	httpClient *http.Client
	ordersURL  string
	pageSize   int
}

func NewClient(httpClient *http.Client, baseURL string, pageSize int) *Client {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Client{
		httpClient: httpClient,
		ordersURL:  strings.TrimRight(baseURL, "/") + ordersPath,
		pageSize:   pageSize,
	}
}

// FetchOrders returns every order created at or after since, following pagination.
func (c *Client) FetchOrders(ctx context.Context, token string, since time.Time) ([]Order, error) {
	filter := fmt.Sprintf("creationdate:[%s..]", since.UTC().Format(filterTimestamp))

	var orders []Order
	offset := 0
	for {
		page, err := c.fetchPage(ctx, token, filter, offset)
		if err != nil {
			return nil, err
		}
		orders = append(orders, page.Orders...)
		offset += len(page.Orders)
		if len(page.Orders) == 0 || offset >= page.Total {
			log.WithFields(log.Fields{
				"total":   page.Total,
				"fetched": len(orders),
			}).Info("Successfully fetched eBay orders details")
			return orders, nil
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, token, filter string, offset int) (*OrdersPage, error) {
	q := url.Values{}
	q.Set("filter", filter)
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("offset", strconv.Itoa(offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ordersURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build orders request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch orders: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: orders endpoint rejected token", domain.ErrAuth)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: orders endpoint returned %d: %s", domain.ErrTransport, resp.StatusCode, body)
	}

	var page OrdersPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: decode orders page: %v", domain.ErrTransport, err)
	}
	return &page, nil
}
