package ebay

import "github.com/shopspring/decimal"

type Amount struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
}

type ContactAddress struct {
	AddressLine1    string `json:"addressLine1"`
	AddressLine2    string `json:"addressLine2,omitempty"`
	City            string `json:"city"`
	StateOrProvince string `json:"stateOrProvince,omitempty"`
	PostalCode      string `json:"postalCode,omitempty"`
	CountryCode     string `json:"countryCode"`
}

type ShipTo struct {
	FullName       string         `json:"fullName"`
	ContactAddress ContactAddress `json:"contactAddress"`
	Email          string         `json:"email,omitempty"`
}

type Buyer struct {
	Username                 string  `json:"username"`
	BuyerRegistrationAddress *ShipTo `json:"buyerRegistrationAddress,omitempty"`
}

type ShippingStep struct {
	ShipTo *ShipTo `json:"shipTo,omitempty"`
}

type FulfillmentStartInstruction struct {
	ShippingStep ShippingStep `json:"shippingStep"`
}

type Payment struct {
	PaymentDate   string `json:"paymentDate"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
	PaymentStatus string `json:"paymentStatus,omitempty"`
}

type PaymentSummary struct {
	Payments []Payment `json:"payments"`
}

type PricingSummary struct {
	Total        *Amount `json:"total,omitempty"`
	DeliveryCost *Amount `json:"deliveryCost,omitempty"`
}

type LineItem struct {
	LineItemID                string `json:"lineItemId"`
	LegacyItemID              string `json:"legacyItemId"`
	SKU                       string `json:"sku,omitempty"`
	Title                     string `json:"title"`
	LineItemCost              Amount `json:"lineItemCost"`
	Quantity                  int    `json:"quantity"`
	ListingMarketplaceID      string `json:"listingMarketplaceId"`
	PurchaseMarketplaceID     string `json:"purchaseMarketplaceId"`
	LineItemFulfillmentStatus string `json:"lineItemFulfillmentStatus"`
}

// Order is the subset of the Fulfillment API order resource the sync consumes.
type Order struct {
	OrderID                      string                        `json:"orderId"`
	CreationDate                 string                        `json:"creationDate"`
	OrderPaymentStatus           string                        `json:"orderPaymentStatus"`
	PaymentSummary               PaymentSummary                `json:"paymentSummary"`
	PricingSummary               PricingSummary                `json:"pricingSummary"`
	Buyer                        Buyer                         `json:"buyer"`
	FulfillmentStartInstructions []FulfillmentStartInstruction `json:"fulfillmentStartInstructions"`
	LineItems                    []LineItem                    `json:"lineItems"`
}

// ShippingAddress returns the first fulfillment ship-to, or the buyer's registration address when none is present.
func (o Order) ShippingAddress() *ShipTo {
	for _, fi := range o.FulfillmentStartInstructions {
		if fi.ShippingStep.ShipTo != nil {
			return fi.ShippingStep.ShipTo
		}
	}
	return o.Buyer.BuyerRegistrationAddress
}

type OrdersPage struct {
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Orders []Order `json:"orders"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}
