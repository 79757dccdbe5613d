package ing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invoice-sync-service/internal/domain"

	log "github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

type Store interface {
	FindCustomerByID(ctx context.Context, id int64) (*domain.Customer, error)
	FindOrderItemsByOrderID(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
}

type RateResolver interface {
	ResolveRate(ctx context.Context, currency domain.Currency, asOf time.Time) (*domain.ExchangeRate, error)
}

type BuilderConfig struct {
	IssuePlace  string
	Description string
	BuyerEmail  string
}

// Builder assembles create-invoice payloads from paid orders.
type Builder struct {
	store     Store
	rates     RateResolver
	positions PositionNames
	cfg       BuilderConfig
	loc       *time.Location
	now       func() time.Time
}

func NewBuilder(store Store, rates RateResolver, positions PositionNames, cfg BuilderConfig, loc *time.Location) *Builder {
	if loc == nil {
		loc = time.UTC
	}
	return &Builder{
		store:     store,
		rates:     rates,
		positions: positions,
		cfg:       cfg,
		loc:       loc,
		now:       time.Now,
	}
}

func incomplete(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvoiceIncomplete, fmt.Sprintf(format, args...))
}

// Build returns the invoice payload for order. Errors wrapping domain.ErrInvoiceIncomplete mean the
// stored data can never produce an invoice; any other error is a storage failure worth retrying.
func (b *Builder) Build(ctx context.Context, order domain.Order) (*Invoice, error) {
	if !order.PaymentDate.Valid {
		return nil, incomplete("order %d has no payment date", order.ID)
	}
	paymentDate := order.PaymentDate.Time

	rate, err := b.rates.ResolveRate(ctx, order.Currency, paymentDate)
	if err != nil {
		return nil, incomplete("currency %s: %v", order.Currency, err)
	}

	buyer, err := b.buyer(ctx, order.CustomerID)
	if err != nil {
		return nil, err
	}

	positions, err := b.positionsFor(ctx, order)
	if err != nil {
		return nil, err
	}

	return &Invoice{
		IssuePlace:  b.cfg.IssuePlace,
		IssueDate:   b.formatDate(b.now()),
		ServiceDate: b.formatDate(paymentDate),
		Description: b.cfg.Description,
		Currency: &Currency{
			Code: string(rate.Currency),
			Rate: rate.Rate.InexactFloat64(),
		},
		Payment: Payment{
			Method:       paymentOther,
			DeadlineDate: b.formatDate(paymentDate),
			PaidAmount:   order.TotalPrice.InexactFloat64(),
		},
		Buyer:     *buyer,
		Positions: positions,
	}, nil
}

func (b *Builder) buyer(ctx context.Context, customerID int64) (*Buyer, error) {
	customer, err := b.store.FindCustomerByID(ctx, customerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, incomplete("customer %d not found", customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load customer %d: %w", customerID, err)
	}

	return &Buyer{
		Email:          b.cfg.BuyerEmail,
		FullName:       customer.FullName,
		AddressStreet:  customer.AddressStreet.String,
		City:           customer.City.String,
		PostCode:       customer.PostalCode.String,
		CountryCode:    customer.CountryCode.String,
		TaxNumber:      placeholder,
		TaxCountryCode: customer.CountryCode.String,
	}, nil
}

// positionsFor turns SKU-bearing items with a known product family into invoice lines and appends
// the shipping line. Items without a SKU or with an unknown family are left off the invoice.
func (b *Builder) positionsFor(ctx context.Context, order domain.Order) ([]Position, error) {
	items, err := b.store.FindOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load items of order %d: %w", order.ID, err)
	}

	positions := make([]Position, 0, len(items)+1)
	for _, item := range items {
		if !item.SKU.Valid || item.SKU.String == "" {
			continue
		}
		name, ok := b.positions.NameForSKU(item.SKU.String)
		if !ok {
			log.WithFields(log.Fields{
				"order_id": order.ID,
				"sku":      item.SKU.String,
			}).Debug("No position name for SKU, leaving item off the invoice")
			continue
		}
		price := item.TotalPrice.InexactFloat64()
		positions = append(positions, Position{
			Name:     name,
			Code:     ProductCode(item.SKU.String),
			Quantity: item.Quantity,
			Unit:     unitPiece,
			Net:      price,
			Gross:    price,
			TaxStake: taxStakeNP,
		})
	}

	if len(positions) == 0 {
		return nil, incomplete("order %d has no invoiceable items", order.ID)
	}

	shipping := order.TotalDelivery.InexactFloat64()
	positions = append(positions, Position{
		Name:     b.positions.Shipping(),
		Code:     shippingCode,
		Quantity: 1,
		Unit:     unitPiece,
		Net:      shipping,
		Gross:    shipping,
		TaxStake: taxStakeNP,
	})
	return positions, nil
}

func (b *Builder) formatDate(t time.Time) string {
	return t.In(b.loc).Format(dateLayout)
}
