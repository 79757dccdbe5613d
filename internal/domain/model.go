package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SkippedInvoiceID marks an order whose invoice could not be built from the stored data.
const SkippedInvoiceID int64 = 0

const PaymentStatusPaid = "PAID"

type Customer struct {
	ID            int64
	Username      sql.NullString
	FullName      string
	AddressStreet sql.NullString
	City          sql.NullString
	PostalCode    sql.NullString
	CountryCode   sql.NullString
}

type Order struct {
	ID              int64
	Platform        Platform
	PlatformOrderID string
	OrderDate       time.Time
	PaymentDate     sql.NullTime
	Paid            bool
	TotalPrice      decimal.Decimal
	TotalDelivery   decimal.Decimal
	Currency        Currency
	CustomerID      int64
	InvoiceID       sql.NullInt64
}

type OrderItem struct {
	ID             int64
	Platform       Platform
	PlatformItemID string
	SKU            sql.NullString
	Quantity       int
	TotalPrice     decimal.Decimal
	OrderID        int64
}

type ExchangeRate struct {
	Currency   Currency
	Rate       decimal.Decimal
	QuotedDate time.Time
}

type EmailStatus string

const (
	StatusSent   EmailStatus = "sent"
	StatusFailed EmailStatus = "failed"
)

type EmailLog struct {
	RunID          uuid.UUID
	RecipientEmail string
	Subject        string
	InvoiceIDs     []int64
	Status         EmailStatus
	ErrorMessage   sql.NullString
}
