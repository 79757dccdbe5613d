// Package currency resolves historical exchange rates from the NBP table A API.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"invoice-sync-service/internal/domain"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

type rateTable struct {
	Code  string `json:"code"`
	Rates []struct {
		No            string          `json:"no"`
		EffectiveDate string          `json:"effectiveDate"`
		Mid           decimal.Decimal `json:"mid"`
	} `json:"rates"`
}

type Resolver struct {
	httpClient  *http.Client
	baseURL     string
	maxLookback int
	base        domain.Currency
	loc         *time.Location
}

func NewResolver(httpClient *http.Client, baseURL string, maxLookbackDays int, base domain.Currency, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		maxLookback: maxLookbackDays,
		base:        base,
		loc:         loc,
	}
}

// ResolveRate returns the mid rate published for the last business day strictly before asOf.
// Rates for a day are only published on the following business day, so the search starts at
// asOf-1 and steps back one calendar day per "not found" answer, at most maxLookback times.
func (r *Resolver) ResolveRate(ctx context.Context, currency domain.Currency, asOf time.Time) (*domain.ExchangeRate, error) {
	local := asOf.In(r.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.loc).AddDate(0, 0, -1)

	if currency == r.base {
		return &domain.ExchangeRate{Currency: currency, Rate: decimal.NewFromInt(1), QuotedDate: day}, nil
	}

	for i := 0; i < r.maxLookback; i++ {
		rate, err := r.fetch(ctx, currency, day)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"currency": currency,
				"date":     day.Format(dateLayout),
			}).Error("Error during fetching exchange rate")
			return nil, err
		}
		if rate != nil {
			return rate, nil
		}
		log.WithFields(log.Fields{
			"currency": currency,
			"date":     day.Format(dateLayout),
		}).Debug("No exchange rate published, stepping back one day")
		day = day.AddDate(0, 0, -1)
	}

	return nil, fmt.Errorf("%w: no %s rate within %d days before %s",
		domain.ErrNotFound, currency, r.maxLookback, local.Format(dateLayout))
}

// fetch returns nil without error when the table has no entry for day.
func (r *Resolver) fetch(ctx context.Context, currency domain.Currency, day time.Time) (*domain.ExchangeRate, error) {
	url := fmt.Sprintf("%s/api/exchangerates/rates/a/%s/%s/?format=json",
		r.baseURL, strings.ToLower(string(currency)), day.Format(dateLayout))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build rate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch rate: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: rate endpoint returned %d", domain.ErrTransport, resp.StatusCode)
	}

	var table rateTable
	if err := json.NewDecoder(resp.Body).Decode(&table); err != nil {
		return nil, fmt.Errorf("%w: decode rate table: %v", domain.ErrTransport, err)
	}
	if len(table.Rates) == 0 {
		return nil, nil
	}

	quoted := day
	if d, err := time.ParseInLocation(dateLayout, table.Rates[0].EffectiveDate, r.loc); err == nil && !d.After(day) {
		quoted = d
	}
	return &domain.ExchangeRate{
		Currency:   currency,
		Rate:       table.Rates[0].Mid,
		QuotedDate: quoted,
	}, nil
}
