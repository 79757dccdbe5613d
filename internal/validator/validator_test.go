package validator

import (
	"testing"

	"invoice-sync-service/internal/domain"
	"invoice-sync-service/internal/ebay"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("books@example.com"))
	assert.ErrorIs(t, ValidateEmail("  "), ErrEmptyEmail)
	assert.ErrorIs(t, ValidateEmail("not-an-email"), ErrInvalidEmailFormat)
}

func validOrder() ebay.Order {
	return ebay.Order{
		OrderID:        "12-34567-89012",
		CreationDate:   "2025-01-01T10:00:00.000Z",
		PricingSummary: ebay.PricingSummary{Total: &ebay.Amount{Currency: "USD"}},
		FulfillmentStartInstructions: []ebay.FulfillmentStartInstruction{
			{ShippingStep: ebay.ShippingStep{ShipTo: &ebay.ShipTo{FullName: "Jane Smith"}}},
		},
		LineItems: []ebay.LineItem{{LegacyItemID: "1", Quantity: 1}},
	}
}

func TestValidateOrder(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *ebay.Order)
		want   error
	}{
		{name: "valid", mutate: func(o *ebay.Order) {}},
		{name: "empty id", mutate: func(o *ebay.Order) { o.OrderID = "" }, want: ErrEmptyOrderID},
		{name: "no creation date", mutate: func(o *ebay.Order) { o.CreationDate = "" }, want: ErrEmptyCreationDate},
		{name: "no pricing", mutate: func(o *ebay.Order) { o.PricingSummary.Total = nil }, want: ErrMissingPricingTotal},
		{name: "no ship to", mutate: func(o *ebay.Order) { o.FulfillmentStartInstructions = nil }, want: ErrMissingShipTo},
		{name: "blank name", mutate: func(o *ebay.Order) {
			o.FulfillmentStartInstructions[0].ShippingStep.ShipTo.FullName = " "
		}, want: ErrEmptyFullName},
		{name: "item without id", mutate: func(o *ebay.Order) { o.LineItems[0].LegacyItemID = "" }, want: ErrEmptyItemID},
		{name: "zero quantity", mutate: func(o *ebay.Order) { o.LineItems[0].Quantity = 0 }, want: ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validOrder()
			tt.mutate(&o)
			err := ValidateOrder(o)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, domain.ErrMapping)
		})
	}
}
