package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"invoice-sync-service/internal/domain"
	"invoice-sync-service/internal/ebay"
	"invoice-sync-service/internal/events"
	"invoice-sync-service/internal/ing"
	"invoice-sync-service/internal/repository"
	"invoice-sync-service/internal/sender"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory stand-in for the Postgres repository.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	customers map[int64]domain.Customer
	orders    map[int64]domain.Order
	items     map[int64][]domain.OrderItem
	emailLogs []domain.EmailLog

	markPaidWrites int
	recorded       map[int64][]int64
	failCustomer   error
}

func newMemStore() *memStore {
	return &memStore{
		customers: map[int64]domain.Customer{},
		orders:    map[int64]domain.Order{},
		items:     map[int64][]domain.OrderItem{},
		recorded:  map[int64][]int64{},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) FindOrderByPlatformOrderID(_ context.Context, platformOrderID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.PlatformOrderID == platformOrderID {
			return &o, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) MarkOrderPaid(_ context.Context, platformOrderID string, paymentDate time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, o := range s.orders {
		if o.PlatformOrderID == platformOrderID && !o.Paid {
			o.Paid = true
			o.PaymentDate = sql.NullTime{Time: paymentDate, Valid: true}
			s.orders[id] = o
			s.markPaidWrites++
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) InTx(ctx context.Context, fn func(w repository.OrderWriter) error) error {
	return fn(s)
}

func (s *memStore) InsertCustomer(_ context.Context, c *domain.Customer) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	s.customers[c.ID] = *c
	return c.ID, nil
}

func (s *memStore) InsertOrder(_ context.Context, o *domain.Order) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.orders {
		if existing.Platform == o.Platform && existing.PlatformOrderID == o.PlatformOrderID {
			return 0, domain.ErrDuplicateOrder
		}
	}
	o.ID = s.id()
	s.orders[o.ID] = *o
	return o.ID, nil
}

func (s *memStore) InsertOrderItems(_ context.Context, items []domain.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		it.ID = s.id()
		s.items[it.OrderID] = append(s.items[it.OrderID], it)
	}
	return nil
}

func (s *memStore) FindPaidOrdersMissingInvoice(_ context.Context) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for id := int64(1); id <= s.nextID; id++ {
		if o, ok := s.orders[id]; ok && o.Paid && !o.InvoiceID.Valid {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memStore) RecordInvoiceID(_ context.Context, orderID, invoiceID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	s.recorded[orderID] = append(s.recorded[orderID], invoiceID)
	if !o.InvoiceID.Valid {
		o.InvoiceID = sql.NullInt64{Int64: invoiceID, Valid: true}
		s.orders[orderID] = o
	}
	return nil
}

func (s *memStore) FindCustomerByID(_ context.Context, id int64) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCustomer != nil {
		return nil, s.failCustomer
	}
	c, ok := s.customers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (s *memStore) FindOrderItemsByOrderID(_ context.Context, orderID int64) ([]domain.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OrderItem(nil), s.items[orderID]...), nil
}

func (s *memStore) FindCustomerByInvoiceID(_ context.Context, invoiceID int64) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.InvoiceID.Valid && o.InvoiceID.Int64 == invoiceID {
			c, ok := s.customers[o.CustomerID]
			if !ok {
				break
			}
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) SaveEmailLog(_ context.Context, l domain.EmailLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emailLogs = append(s.emailLogs, l)
	return nil
}

// hasInvoice reports whether the order carries a real accounting-service invoice id.
func hasInvoice(o domain.Order) bool {
	return o.InvoiceID.Valid && o.InvoiceID.Int64 > domain.SkippedInvoiceID
}

func (s *memStore) orderByPlatformID(platformOrderID string) domain.Order {
	o, _ := s.FindOrderByPlatformOrderID(context.Background(), platformOrderID)
	if o == nil {
		return domain.Order{}
	}
	return *o
}

type stubTokens struct {
	token       string
	err         error
	invalidated int
}

func (t *stubTokens) EnsureValidToken(context.Context) (string, error) {
	return t.token, t.err
}

func (t *stubTokens) Invalidate() { t.invalidated++ }

type stubFetcher struct {
	orders []ebay.Order
	err    error
	calls  int
	since  time.Time
}

func (f *stubFetcher) FetchOrders(_ context.Context, _ string, since time.Time) ([]ebay.Order, error) {
	f.calls++
	f.since = since
	return f.orders, f.err
}

type stubRates struct {
	rate decimal.Decimal
	err  error
}

func (r stubRates) ResolveRate(_ context.Context, c domain.Currency, asOf time.Time) (*domain.ExchangeRate, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &domain.ExchangeRate{Currency: c, Rate: r.rate, QuotedDate: asOf.AddDate(0, 0, -1)}, nil
}

type stubCreator struct {
	nextID   int64
	err      error
	invoices []*ing.Invoice
}

func (c *stubCreator) CreateInvoice(_ context.Context, invoice *ing.Invoice) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.invoices = append(c.invoices, invoice)
	c.nextID++
	return c.nextID, nil
}

type recordingPublisher struct {
	events []events.InvoicesCreated
	err    error
}

func (p *recordingPublisher) PublishInvoicesCreated(_ context.Context, e events.InvoicesCreated) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

type stubDownloader struct {
	missing map[int64]bool
}

func (d stubDownloader) DownloadInvoice(_ context.Context, id int64) ([]byte, error) {
	if d.missing[id] {
		return nil, errors.New("download failed")
	}
	return []byte(fmt.Sprintf("%%PDF-%d", id)), nil
}

type sentMail struct {
	to, subject, body string
	attachments       []sender.Attachment
}

type flakySender struct {
	failures int
	calls    int
	sent     []sentMail
}

func (s *flakySender) SendEmail(_ context.Context, to, subject, body string, attachments []sender.Attachment) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("smtp unavailable")
	}
	s.sent = append(s.sent, sentMail{to: to, subject: subject, body: body, attachments: attachments})
	return nil
}

func amount(v, currency string) *ebay.Amount {
	return &ebay.Amount{Value: decimal.RequireFromString(v), Currency: currency}
}

// usOrder is a paid USD order with one SKU-bearing item and one item without SKU.
func usOrder(id string) ebay.Order {
	return ebay.Order{
		OrderID:            id,
		CreationDate:       "2025-01-06T10:00:00.000Z",
		OrderPaymentStatus: domain.PaymentStatusPaid,
		PaymentSummary: ebay.PaymentSummary{Payments: []ebay.Payment{
			{PaymentDate: "2025-01-06T10:05:00.000Z", PaymentStatus: "PAID"},
		}},
		PricingSummary: ebay.PricingSummary{
			Total:        amount("51.00", "USD"),
			DeliveryCost: amount("5.00", "USD"),
		},
		Buyer: ebay.Buyer{Username: "buyer_" + id},
		FulfillmentStartInstructions: []ebay.FulfillmentStartInstruction{{
			ShippingStep: ebay.ShippingStep{ShipTo: &ebay.ShipTo{
				FullName: "John Smith",
				ContactAddress: ebay.ContactAddress{
					AddressLine1:    "5th Avenue 1",
					AddressLine2:    "Apt 2",
					City:            "New York",
					StateOrProvince: "NY",
					PostalCode:      "10001",
					CountryCode:     "US",
				},
			}},
		}},
		LineItems: []ebay.LineItem{
			{
				LegacyItemID:         id + "-1",
				SKU:                  "12MUG-US",
				LineItemCost:         ebay.Amount{Value: decimal.RequireFromString("36.00"), Currency: "USD"},
				Quantity:             2,
				ListingMarketplaceID: "EBAY_US",
			},
			{
				LegacyItemID:         id + "-2",
				LineItemCost:         ebay.Amount{Value: decimal.RequireFromString("10.00"), Currency: "USD"},
				Quantity:             1,
				ListingMarketplaceID: "EBAY_US",
			},
		},
	}
}

func unpaid(o ebay.Order) ebay.Order {
	o.OrderPaymentStatus = "PENDING"
	o.PaymentSummary.Payments = nil
	return o
}
