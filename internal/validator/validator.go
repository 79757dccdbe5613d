package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"invoice-sync-service/internal/domain"
	"invoice-sync-service/internal/ebay"
)

var (
	ErrEmptyEmail          = errors.New("email is empty")
	ErrInvalidEmailFormat  = errors.New("invalid email format")
	ErrEmptyOrderID        = errors.New("order ID is empty")
	ErrEmptyCreationDate   = errors.New("creation date is empty")
	ErrMissingPricingTotal = errors.New("pricing total is missing")
	ErrMissingShipTo       = errors.New("shipping address is missing")
	ErrEmptyFullName       = errors.New("buyer full name is empty")
	ErrEmptyItemID         = errors.New("line item ID is empty")
	ErrInvalidQuantity     = errors.New("line item quantity must be greater than 0")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return ErrEmptyEmail
	}
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmailFormat
	}
	return nil
}

func validateLineItem(item ebay.LineItem) error {
	if strings.TrimSpace(item.LegacyItemID) == "" {
		return ErrEmptyItemID
	}
	if item.Quantity <= 0 {
		return fmt.Errorf("item %s: %w", item.LegacyItemID, ErrInvalidQuantity)
	}
	return nil
}

// ValidateOrder checks the fields a new order cannot be stored without.
// Every failure wraps domain.ErrMapping.
func ValidateOrder(order ebay.Order) error {
	if err := validateOrder(order); err != nil {
		return fmt.Errorf("%w: order %q: %w", domain.ErrMapping, order.OrderID, err)
	}
	return nil
}

func validateOrder(order ebay.Order) error {
	if strings.TrimSpace(order.OrderID) == "" {
		return ErrEmptyOrderID
	}
	if strings.TrimSpace(order.CreationDate) == "" {
		return ErrEmptyCreationDate
	}
	if order.PricingSummary.Total == nil || order.PricingSummary.Total.Currency == "" {
		return ErrMissingPricingTotal
	}
	shipTo := order.ShippingAddress()
	if shipTo == nil {
		return ErrMissingShipTo
	}
	if strings.TrimSpace(shipTo.FullName) == "" {
		return ErrEmptyFullName
	}
	for _, item := range order.LineItems {
		if err := validateLineItem(item); err != nil {
			return err
		}
	}
	return nil
}
