package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"invoice-sync-service/internal/domain"

	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

const queryTimeout = 5 * time.Second

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OrderWriter is the set of writes that create a new order graph.
type OrderWriter interface {
	InsertCustomer(ctx context.Context, c *domain.Customer) (int64, error)
	InsertOrder(ctx context.Context, o *domain.Order) (int64, error)
	InsertOrderItems(ctx context.Context, items []domain.OrderItem) error
}

type PostgresRepository struct {
	db *sql.DB
	q  querier
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, q: db}
}

// InTx runs fn against a repository bound to a single transaction, committing when fn succeeds.
func (r *PostgresRepository) InTx(ctx context.Context, fn func(w OrderWriter) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&PostgresRepository{db: r.db, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const orderColumns = `id, platform, platform_order_id, order_date, payment_date, paid,
	total_price, total_delivery, currency, customer_id, invoice_id`

func scanOrder(row interface{ Scan(dest ...any) error }) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.Platform, &o.PlatformOrderID, &o.OrderDate, &o.PaymentDate, &o.Paid,
		&o.TotalPrice, &o.TotalDelivery, &o.Currency, &o.CustomerID, &o.InvoiceID)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PostgresRepository) FindOrderByPlatformOrderID(ctx context.Context, platformOrderID string) (*domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE platform_order_id = $1 LIMIT 1`
	o, err := scanOrder(r.q.QueryRowContext(ctx, query, platformOrderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order %s: %w", platformOrderID, err)
	}
	return o, nil
}

// MarkOrderPaid flips an unpaid order to paid. It reports false when the order was already paid.
func (r *PostgresRepository) MarkOrderPaid(ctx context.Context, platformOrderID string, paymentDate time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `UPDATE orders SET paid = TRUE, payment_date = $2 WHERE platform_order_id = $1 AND paid = FALSE`
	res, err := r.q.ExecContext(ctx, query, platformOrderID, paymentDate)
	if err != nil {
		return false, fmt.Errorf("failed to mark order %s as paid: %w", platformOrderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark order %s as paid: %w", platformOrderID, err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) InsertCustomer(ctx context.Context, c *domain.Customer) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
        INSERT INTO customers (username, full_name, address_street, city, postal_code, country_code)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id;
    `
	var id int64
	if err := r.q.QueryRowContext(ctx, query, c.Username, c.FullName, c.AddressStreet, c.City, c.PostalCode, c.CountryCode).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert customer: %w", err)
	}
	return id, nil
}

// InsertOrder returns domain.ErrDuplicateOrder when the (platform, platform_order_id) pair is already stored.
func (r *PostgresRepository) InsertOrder(ctx context.Context, o *domain.Order) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
        INSERT INTO orders (platform, platform_order_id, order_date, payment_date, paid,
                            total_price, total_delivery, currency, customer_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (platform, platform_order_id) DO NOTHING
        RETURNING id;
    `
	var id int64
	err := r.q.QueryRowContext(ctx, query, string(o.Platform), o.PlatformOrderID, o.OrderDate, o.PaymentDate, o.Paid,
		o.TotalPrice, o.TotalDelivery, string(o.Currency), o.CustomerID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", domain.ErrDuplicateOrder, o.PlatformOrderID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert order %s: %w", o.PlatformOrderID, err)
	}
	return id, nil
}

func (r *PostgresRepository) InsertOrderItems(ctx context.Context, items []domain.OrderItem) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
        INSERT INTO order_items (platform, platform_item_id, sku, quantity, total_price, order_id)
        VALUES ($1, $2, $3, $4, $5, $6);
    `
	for _, it := range items {
		if _, err := r.q.ExecContext(ctx, query, string(it.Platform), it.PlatformItemID, it.SKU, it.Quantity, it.TotalPrice, it.OrderID); err != nil {
			return fmt.Errorf("failed to insert order item %s: %w", it.PlatformItemID, err)
		}
	}
	return nil
}

func (r *PostgresRepository) FindPaidOrdersMissingInvoice(ctx context.Context) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE paid = TRUE AND invoice_id IS NULL ORDER BY id`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query paid orders without invoice: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// RecordInvoiceID stores the invoice id, or domain.SkippedInvoiceID, for an order that has none yet.
func (r *PostgresRepository) RecordInvoiceID(ctx context.Context, orderID, invoiceID int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `UPDATE orders SET invoice_id = $2 WHERE id = $1 AND invoice_id IS NULL`
	res, err := r.q.ExecContext(ctx, query, orderID, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to record invoice id for order %d: %w", orderID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		log.WithFields(log.Fields{
			"order_id":   orderID,
			"invoice_id": invoiceID,
		}).Warn("Order already had an invoice id, nothing recorded")
	}
	return nil
}

const customerColumns = `c.id, c.username, c.full_name, c.address_street, c.city, c.postal_code, c.country_code`

func scanCustomer(row *sql.Row) (*domain.Customer, error) {
	var c domain.Customer
	if err := row.Scan(&c.ID, &c.Username, &c.FullName, &c.AddressStreet, &c.City, &c.PostalCode, &c.CountryCode); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresRepository) FindCustomerByID(ctx context.Context, id int64) (*domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + customerColumns + ` FROM customers c WHERE c.id = $1`
	c, err := scanCustomer(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find customer %d: %w", id, err)
	}
	return c, nil
}

func (r *PostgresRepository) FindCustomerByInvoiceID(ctx context.Context, invoiceID int64) (*domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + customerColumns + ` FROM customers c
        JOIN orders o ON o.customer_id = c.id
        WHERE o.invoice_id = $1 LIMIT 1`
	c, err := scanCustomer(r.q.QueryRowContext(ctx, query, invoiceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find customer for invoice %d: %w", invoiceID, err)
	}
	return c, nil
}

func (r *PostgresRepository) FindOrderItemsByOrderID(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const query = `
        SELECT id, platform, platform_item_id, sku, quantity, total_price, order_id
        FROM order_items WHERE order_id = $1 ORDER BY id
    `
	rows, err := r.q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items of order %d: %w", orderID, err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.Platform, &it.PlatformItemID, &it.SKU, &it.Quantity, &it.TotalPrice, &it.OrderID); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PostgresRepository) SaveEmailLog(ctx context.Context, l domain.EmailLog) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	log.WithFields(log.Fields{
		"run_id":          l.RunID,
		"recipient_email": l.RecipientEmail,
		"subject":         l.Subject,
		"invoice_ids":     l.InvoiceIDs,
		"status":          l.Status,
	}).Info("Saving email log to database")

	const query = `
        INSERT INTO email_logs (run_id, recipient_email, subject, invoice_ids, status, error_message)
        VALUES ($1, $2, $3, $4, $5, $6);
    `
	if _, err := r.q.ExecContext(ctx, query, l.RunID, l.RecipientEmail, l.Subject, pq.Array(l.InvoiceIDs), string(l.Status), nullStringOrNil(l.ErrorMessage)); err != nil {
		return fmt.Errorf("failed to insert email log: %w", err)
	}
	return nil
}

func nullStringOrNil(ns sql.NullString) interface{} {
	if ns.Valid {
		return ns.String
	}
	return nil
}
