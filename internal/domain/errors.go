package domain

import "errors"

var (
	// ErrAuth means the marketplace access token could not be refreshed; the cycle is skipped.
	ErrAuth = errors.New("authorization failed")
	// ErrTransport covers network failures and unexpected HTTP statuses.
	ErrTransport = errors.New("transport failure")
	// ErrMapping means an external payload was malformed or incomplete; only that record is skipped.
	ErrMapping = errors.New("mapping failure")

	ErrNotFound          = errors.New("resource not found")
	ErrDuplicateOrder    = errors.New("order already exists")
	ErrInvoiceIncomplete = errors.New("invoice data incomplete")
)
