package ebay

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"invoice-sync-service/internal/domain"
)

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func mappingError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMapping, fmt.Sprintf(format, args...))
}

// MapCustomer projects a ship-to address and buyer handle onto a Customer.
func MapCustomer(shipTo ShipTo, username string) (domain.Customer, error) {
	if strings.TrimSpace(shipTo.FullName) == "" {
		return domain.Customer{}, mappingError("customer full name is empty")
	}

	addr := shipTo.ContactAddress
	street := addr.AddressLine1
	if addr.AddressLine2 != "" {
		street += " " + addr.AddressLine2
	}

	postalCode, city := addr.PostalCode, addr.City
	if addr.StateOrProvince != "" {
		if addr.CountryCode == domain.CountryUS {
			postalCode = strings.TrimSpace(addr.StateOrProvince + " " + addr.PostalCode)
		} else {
			city = addr.City + ", " + addr.StateOrProvince
		}
	}

	customer := domain.Customer{
		Username:      nullString(username),
		FullName:      shipTo.FullName,
		AddressStreet: nullString(street),
		City:          nullString(city),
		PostalCode:    nullString(postalCode),
	}

	if addr.CountryCode != "" {
		if !domain.ValidCountryCode(addr.CountryCode) {
			return domain.Customer{}, mappingError("unsupported country code %q", addr.CountryCode)
		}
		customer.CountryCode = nullString(addr.CountryCode)
	}
	return customer, nil
}

// MapOrderItems projects every line item onto an OrderItem; OrderID is wired by the caller after the order is stored.
func MapOrderItems(lineItems []LineItem) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(lineItems))
	for _, li := range lineItems {
		platform := domain.Platform(li.ListingMarketplaceID)
		if !platform.Valid() {
			return nil, mappingError("line item %s: unsupported marketplace %q", li.LegacyItemID, li.ListingMarketplaceID)
		}
		items = append(items, domain.OrderItem{
			Platform:       platform,
			PlatformItemID: li.LegacyItemID,
			SKU:            nullString(li.SKU),
			Quantity:       li.Quantity,
			TotalPrice:     li.LineItemCost.Value,
		})
	}
	return items, nil
}

// MapOrder projects the order header. A PAID order must carry at least one payment record.
func MapOrder(o Order) (domain.Order, error) {
	if o.PricingSummary.Total == nil {
		return domain.Order{}, mappingError("order %s has no pricing total", o.OrderID)
	}
	currency := domain.Currency(o.PricingSummary.Total.Currency)
	platform, ok := domain.PlatformForCurrency(currency)
	if !ok {
		return domain.Order{}, mappingError("order %s: no platform for currency %q", o.OrderID, currency)
	}

	orderDate, err := time.Parse(time.RFC3339, o.CreationDate)
	if err != nil {
		return domain.Order{}, mappingError("order %s: creation date %q: %v", o.OrderID, o.CreationDate, err)
	}

	order := domain.Order{
		Platform:        platform,
		PlatformOrderID: o.OrderID,
		OrderDate:       orderDate,
		Paid:            o.OrderPaymentStatus == domain.PaymentStatusPaid,
		TotalPrice:      o.PricingSummary.Total.Value,
		Currency:        currency,
	}
	if o.PricingSummary.DeliveryCost != nil {
		order.TotalDelivery = o.PricingSummary.DeliveryCost.Value
	}

	if order.Paid {
		paymentDate, err := PaymentDate(o)
		if err != nil {
			return domain.Order{}, err
		}
		order.PaymentDate = sql.NullTime{Time: paymentDate, Valid: true}
	}
	return order, nil
}

// PaymentDate parses the date of the first payment record.
func PaymentDate(o Order) (time.Time, error) {
	if len(o.PaymentSummary.Payments) == 0 {
		return time.Time{}, mappingError("order %s is %s but has no payment records", o.OrderID, o.OrderPaymentStatus)
	}
	raw := o.PaymentSummary.Payments[0].PaymentDate
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, mappingError("order %s: payment date %q: %v", o.OrderID, raw, err)
	}
	return t, nil
}
