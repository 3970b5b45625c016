package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryGateway is an in-process implementation of all three gateway
// interfaces, used for tests and local runs without Postgres.
type MemoryGateway struct {
	mu        sync.RWMutex
	orders    map[int64]*Order
	stock     map[string]*StockItem
	customers map[int64]*Customer
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		orders:    make(map[int64]*Order),
		stock:     make(map[string]*StockItem),
		customers: make(map[int64]*Customer),
	}
}

func (g *MemoryGateway) PutOrder(o Order) {
	g.mu.Lock()
	defer g.mu.Unlock()
	copied := o
	g.orders[o.ID] = &copied
}

func (g *MemoryGateway) PutStock(item StockItem) {
	g.mu.Lock()
	defer g.mu.Unlock()
	copied := item
	g.stock[item.SKU] = &copied
}

func (g *MemoryGateway) PutCustomer(c Customer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	copied := c
	g.customers[c.ID] = &copied
}

func (g *MemoryGateway) GetOrder(ctx context.Context, id int64) (*Order, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	o, ok := g.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	copied := *o
	return &copied, nil
}

func (g *MemoryGateway) UpdateStatus(ctx context.Context, id int64, status string) error {
	if !ValidStatus(status) {
		return fmt.Errorf("unknown status %q: %w", status, ErrNotAllowed)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if o.Status == StatusRefunded {
		return fmt.Errorf("order %d is refunded: %w", id, ErrNotAllowed)
	}
	o.Status = status
	return nil
}

func (g *MemoryGateway) Refund(ctx context.Context, id int64, amount float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if o.Status == StatusCancelled {
		return fmt.Errorf("order %d is cancelled: %w", id, ErrNotAllowed)
	}
	if amount <= 0 || o.RefundedAmount+amount > o.Total {
		return fmt.Errorf("refund of %.2f exceeds refundable balance: %w", amount, ErrNotAllowed)
	}
	o.RefundedAmount += amount
	if o.RefundedAmount == o.Total {
		o.Status = StatusRefunded
	}
	return nil
}

func (g *MemoryGateway) SearchOrders(ctx context.Context, q OrderQuery) ([]Order, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []Order
	for _, o := range g.orders {
		if q.Status != "" && o.Status != q.Status {
			continue
		}
		if q.CustomerID != 0 && o.CustomerID != q.CustomerID {
			continue
		}
		out = append(out, *o)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

func (g *MemoryGateway) SalesReport(ctx context.Context, since time.Time) (*SalesReport, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	report := &SalesReport{}
	for _, o := range g.orders {
		if o.CreatedAt.Before(since) {
			continue
		}
		report.Orders++
		report.Revenue += o.Total
		report.Refunded += o.RefundedAmount
	}
	return report, nil
}

func (g *MemoryGateway) GetItem(ctx context.Context, sku string) (*StockItem, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	item, ok := g.stock[sku]
	if !ok {
		return nil, fmt.Errorf("sku %q: %w", sku, ErrNotFound)
	}
	copied := *item
	return &copied, nil
}

func (g *MemoryGateway) AdjustStock(ctx context.Context, sku string, delta int) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	item, ok := g.stock[sku]
	if !ok {
		return 0, fmt.Errorf("sku %q: %w", sku, ErrNotFound)
	}
	next := item.Quantity + delta
	if next < 0 {
		return item.Quantity, fmt.Errorf("stock for %q cannot go below zero: %w", sku, ErrNotAllowed)
	}
	item.Quantity = next
	return next, nil
}

func (g *MemoryGateway) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	copied := *c
	return &copied, nil
}
