package gateway

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// PostgresGateway implements the order, stock and customer gateways on
// PostgreSQL.
type PostgresGateway struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresGateway(config DatabaseConfig, logger *zap.Logger) (*PostgresGateway, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	g := &PostgresGateway{db: db, logger: logger}

	// Initialize database schema
	if err := g.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return g, nil
}

func (g *PostgresGateway) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	_, err = g.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (g *PostgresGateway) GetOrder(ctx context.Context, id int64) (*Order, error) {
	query := `
		SELECT id, customer_id, status, total, refunded_amount, created_at
		FROM orders
		WHERE id = $1`

	var o Order
	err := g.db.QueryRowContext(ctx, query, id).Scan(
		&o.ID, &o.CustomerID, &o.Status, &o.Total, &o.RefundedAmount, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error getting order: %v", err)
	}
	return &o, nil
}

func (g *PostgresGateway) UpdateStatus(ctx context.Context, id int64, status string) error {
	if !ValidStatus(status) {
		return fmt.Errorf("unknown status %q: %w", status, ErrNotAllowed)
	}

	result, err := g.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status <> $3`,
		id, status, StatusRefunded)
	if err != nil {
		return fmt.Errorf("error updating order status: %v", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error updating order status: %v", err)
	}
	if rows == 0 {
		if _, err := g.GetOrder(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("order %d is refunded: %w", id, ErrNotAllowed)
	}
	return nil
}

func (g *PostgresGateway) Refund(ctx context.Context, id int64, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("refund amount must be positive: %w", ErrNotAllowed)
	}

	// The balance check and the update run as one statement, so two
	// concurrent refunds cannot both pass the check.
	result, err := g.db.ExecContext(ctx, `
		UPDATE orders
		SET refunded_amount = refunded_amount + $2,
		    status = CASE WHEN refunded_amount + $2 >= total THEN $3 ELSE status END,
		    updated_at = NOW()
		WHERE id = $1 AND status <> $4 AND refunded_amount + $2 <= total`,
		id, amount, StatusRefunded, StatusCancelled)
	if err != nil {
		return fmt.Errorf("error refunding order: %v", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error refunding order: %v", err)
	}
	if rows == 0 {
		if _, err := g.GetOrder(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("refund of %.2f not allowed for order %d: %w", amount, id, ErrNotAllowed)
	}
	return nil
}

func (g *PostgresGateway) SearchOrders(ctx context.Context, q OrderQuery) ([]Order, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, customer_id, status, total, refunded_amount, created_at
		FROM orders
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = 0 OR customer_id = $2)
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := g.db.QueryContext(ctx, query, q.Status, q.CustomerID, limit)
	if err != nil {
		return nil, fmt.Errorf("error searching orders: %v", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.Status, &o.Total, &o.RefundedAmount, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning order: %v", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (g *PostgresGateway) SalesReport(ctx context.Context, since time.Time) (*SalesReport, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(total), 0), COALESCE(SUM(refunded_amount), 0)
		FROM orders
		WHERE created_at >= $1`

	var report SalesReport
	err := g.db.QueryRowContext(ctx, query, since).Scan(&report.Orders, &report.Revenue, &report.Refunded)
	if err != nil {
		return nil, fmt.Errorf("error building sales report: %v", err)
	}
	return &report, nil
}

func (g *PostgresGateway) GetItem(ctx context.Context, sku string) (*StockItem, error) {
	var item StockItem
	err := g.db.QueryRowContext(ctx,
		`SELECT sku, name, quantity FROM stock WHERE sku = $1`, sku).
		Scan(&item.SKU, &item.Name, &item.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sku %q: %w", sku, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error getting stock item: %v", err)
	}
	return &item, nil
}

func (g *PostgresGateway) AdjustStock(ctx context.Context, sku string, delta int) (int, error) {
	var quantity int
	err := g.db.QueryRowContext(ctx, `
		UPDATE stock
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE sku = $1 AND quantity + $2 >= 0
		RETURNING quantity`,
		sku, delta).Scan(&quantity)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := g.GetItem(ctx, sku); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("stock for %q cannot go below zero: %w", sku, ErrNotAllowed)
	}
	if err != nil {
		return 0, fmt.Errorf("error adjusting stock: %v", err)
	}
	return quantity, nil
}

func (g *PostgresGateway) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	var c Customer
	err := g.db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error getting customer: %v", err)
	}
	return &c, nil
}

func (g *PostgresGateway) Close() error {
	return g.db.Close()
}
