package gateway

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrNotAllowed means the target's current state forbids the action,
	// e.g. refunding a cancelled order or overdrawing stock.
	ErrNotAllowed = errors.New("not allowed")
)

// Order statuses. Transitions are validated by the gateway, not by the
// orchestration core.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
	StatusRefunded   = "refunded"
)

type Order struct {
	ID             int64     `json:"id"`
	CustomerID     int64     `json:"customer_id"`
	Status         string    `json:"status"`
	Total          float64   `json:"total"`
	RefundedAmount float64   `json:"refunded_amount"`
	CreatedAt      time.Time `json:"created_at"`
}

type StockItem struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type OrderQuery struct {
	Status     string
	CustomerID int64
	Limit      int
}

type SalesReport struct {
	Orders   int     `json:"orders"`
	Revenue  float64 `json:"revenue"`
	Refunded float64 `json:"refunded"`
}

// OrderGateway is the collaborator behind refund, status and reporting
// tools. Implementations own the business rules; the core only stages and
// confirms actions against it.
type OrderGateway interface {
	GetOrder(ctx context.Context, id int64) (*Order, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	Refund(ctx context.Context, id int64, amount float64) error
	SearchOrders(ctx context.Context, q OrderQuery) ([]Order, error)
	SalesReport(ctx context.Context, since time.Time) (*SalesReport, error)
}

type StockGateway interface {
	GetItem(ctx context.Context, sku string) (*StockItem, error)
	// AdjustStock applies a signed delta and returns the new quantity.
	AdjustStock(ctx context.Context, sku string, delta int) (int, error)
}

type CustomerGateway interface {
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}
