package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xaenox/storebot/internal/clock"
	"github.com/xaenox/storebot/internal/draft"
	"github.com/xaenox/storebot/internal/gateway"
)

// Additional codes for the two-phase tools.
const (
	CodeDraftExpired        = "draft_expired"
	CodeDraftCreationFailed = "draft_creation_failed"
	CodeStorageFailure      = "storage_failure"
	CodeNotFound            = "not_found"
	CodeNotAllowed          = "not_allowed"
)

// Draft type namespaces.
const (
	DraftRefund     = "refund"
	DraftStock      = "stock"
	DraftStatus     = "status"
	DraftBulkStatus = "bulk_status"
)

// Commerce wires the store-management tools: every mutating operation is
// exposed as a prepare_*/confirm_* pair around the draft manager, read
// lookups return data directly. prepare_* never mutates; confirm_* claims
// the draft, re-validates against current state through the gateway, then
// applies the change.
type Commerce struct {
	drafts    *draft.Manager
	orders    gateway.OrderGateway
	stock     gateway.StockGateway
	customers gateway.CustomerGateway
	clock     clock.Clock
	logger    *zap.Logger
}

func NewCommerce(drafts *draft.Manager, orders gateway.OrderGateway, stock gateway.StockGateway, customers gateway.CustomerGateway, clk clock.Clock, logger *zap.Logger) *Commerce {
	return &Commerce{
		drafts:    drafts,
		orders:    orders,
		stock:     stock,
		customers: customers,
		clock:     clk,
		logger:    logger,
	}
}

type refundPayload struct {
	OrderID int64   `json:"order_id"`
	Amount  float64 `json:"amount"`
}

type stockPayload struct {
	SKU   string `json:"sku"`
	Delta int    `json:"delta"`
}

type statusPayload struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}

type bulkStatusPayload struct {
	OrderIDs []int64 `json:"order_ids"`
	Status   string  `json:"status"`
}

// BulkItemFailure is one failed target in a bulk confirmation report.
type BulkItemFailure struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

// Prepared is the uniform reply of every prepare_* tool.
type Prepared struct {
	DraftID          string `json:"draft_id"`
	Preview          string `json:"preview"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

// Register installs every commerce tool schema and executor.
func (c *Commerce) Register(registry *Registry, dispatcher *Dispatcher) error {
	entries := []struct {
		schema Schema
		ex     ExecutorFunc
	}{
		{refundPrepareSchema, c.prepareRefund},
		{confirmSchema("confirm_refund", "Execute a previously prepared refund. Takes the draft_id returned by prepare_refund."), c.confirmRefund},
		{stockPrepareSchema, c.prepareStockUpdate},
		{confirmSchema("confirm_stock_update", "Execute a previously prepared stock adjustment. Takes the draft_id returned by prepare_stock_update."), c.confirmStockUpdate},
		{statusPrepareSchema, c.prepareStatusUpdate},
		{confirmSchema("confirm_status_update", "Execute a previously prepared order status change. Takes the draft_id returned by prepare_status_update."), c.confirmStatusUpdate},
		{bulkStatusPrepareSchema, c.prepareBulkStatusUpdate},
		{confirmSchema("confirm_bulk_status_update", "Execute a previously prepared bulk status change. Takes the draft_id returned by prepare_bulk_status_update."), c.confirmBulkStatusUpdate},
		{searchOrdersSchema, c.searchOrders},
		{customerLookupSchema, c.customerLookup},
		{salesReportSchema, c.salesReport},
	}
	for _, e := range entries {
		if err := registry.Register(e.schema); err != nil {
			return err
		}
		dispatcher.Register(e.schema.Name, e.ex)
	}
	return nil
}

var refundPrepareSchema = Schema{
	Name:        "prepare_refund",
	Description: "Stage a refund for an order. Returns a draft_id and a preview; nothing is refunded until the draft is confirmed.",
	Fields: map[string]Field{
		"order_id": {Type: "integer", Description: "The order to refund", Required: true},
		"amount":   {Type: "number", Description: "Amount to refund; omit for the full refundable balance"},
	},
}

var stockPrepareSchema = Schema{
	Name:        "prepare_stock_update",
	Description: "Stage a stock quantity adjustment for a SKU. Returns a draft_id and a preview; nothing changes until confirmed.",
	Fields: map[string]Field{
		"sku":   {Type: "string", Description: "The stock item to adjust", Required: true},
		"delta": {Type: "integer", Description: "Signed quantity change, e.g. -3 or 10", Required: true},
	},
}

var statusPrepareSchema = Schema{
	Name:        "prepare_status_update",
	Description: "Stage an order status change. Returns a draft_id and a preview; nothing changes until confirmed.",
	Fields: map[string]Field{
		"order_id": {Type: "integer", Description: "The order to update", Required: true},
		"status":   {Type: "string", Description: "New status: pending, processing, shipped, delivered or cancelled", Required: true},
	},
}

var bulkStatusPrepareSchema = Schema{
	Name:        "prepare_bulk_status_update",
	Description: "Stage a status change for several orders at once. Returns a draft_id and a preview; nothing changes until confirmed.",
	Fields: map[string]Field{
		"order_ids": {Type: "array", Description: "Orders to update", Required: true},
		"status":    {Type: "string", Description: "New status for every order", Required: true},
	},
}

var searchOrdersSchema = Schema{
	Name:        "search_orders",
	Description: "Search orders by status and/or customer.",
	Fields: map[string]Field{
		"status":      {Type: "string", Description: "Filter by status"},
		"customer_id": {Type: "integer", Description: "Filter by customer"},
		"limit":       {Type: "integer", Description: "Maximum results, default 20"},
	},
}

var customerLookupSchema = Schema{
	Name:        "customer_lookup",
	Description: "Look up a customer's profile.",
	Fields: map[string]Field{
		"customer_id": {Type: "integer", Description: "The customer id", Required: true},
	},
}

var salesReportSchema = Schema{
	Name:        "sales_report",
	Description: "Summarize order count, revenue and refunds over a recent period.",
	Fields: map[string]Field{
		"days": {Type: "integer", Description: "Period length in days, default 30"},
	},
}

// confirmSchema builds the uniform confirm_* schema: a single required
// draft_id argument.
func confirmSchema(name, description string) Schema {
	return Schema{
		Name:        name,
		Description: description,
		Fields: map[string]Field{
			"draft_id": {Type: "string", Description: "The draft to confirm", Required: true},
		},
	}
}

func (c *Commerce) prepareRefund(ctx context.Context, args map[string]any) (any, error) {
	orderID, err := argInt64(args, "order_id")
	if err != nil {
		return nil, err
	}

	order, err := c.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, gatewayToolError(err)
	}
	if order.Status == gateway.StatusCancelled {
		return nil, &ToolError{Code: CodeNotAllowed, Message: fmt.Sprintf("order %d is cancelled and cannot be refunded", orderID)}
	}

	refundable := order.Total - order.RefundedAmount
	amount := refundable
	if raw, ok := args["amount"]; ok {
		amount, _ = raw.(float64)
	}
	if amount <= 0 || amount > refundable {
		return nil, &ToolError{Code: CodeNotAllowed, Message: fmt.Sprintf("refundable balance for order %d is $%.2f", orderID, refundable)}
	}

	preview := fmt.Sprintf("Refund $%.2f for order %d (customer %d)", amount, order.ID, order.CustomerID)
	return c.stage(ctx, DraftRefund, refundPayload{OrderID: orderID, Amount: amount}, preview)
}

func (c *Commerce) confirmRefund(ctx context.Context, args map[string]any) (any, error) {
	var payload refundPayload
	if err := c.claim(ctx, DraftRefund, args, &payload); err != nil {
		return nil, err
	}

	// State may have changed since prepare; the gateway re-validates.
	if err := c.orders.Refund(ctx, payload.OrderID, payload.Amount); err != nil {
		return nil, gatewayToolError(err)
	}
	return map[string]any{
		"order_id": payload.OrderID,
		"refunded": payload.Amount,
	}, nil
}

func (c *Commerce) prepareStockUpdate(ctx context.Context, args map[string]any) (any, error) {
	sku, err := argString(args, "sku")
	if err != nil {
		return nil, err
	}
	delta, err := argInt(args, "delta")
	if err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, &ToolError{Code: CodeNotAllowed, Message: "delta must be non-zero"}
	}

	item, err := c.stock.GetItem(ctx, sku)
	if err != nil {
		return nil, gatewayToolError(err)
	}
	if item.Quantity+delta < 0 {
		return nil, &ToolError{Code: CodeNotAllowed, Message: fmt.Sprintf("only %d units of %s in stock", item.Quantity, sku)}
	}

	preview := fmt.Sprintf("Change stock of %s (%s) by %+d to %d units", item.Name, sku, delta, item.Quantity+delta)
	return c.stage(ctx, DraftStock, stockPayload{SKU: sku, Delta: delta}, preview)
}

func (c *Commerce) confirmStockUpdate(ctx context.Context, args map[string]any) (any, error) {
	var payload stockPayload
	if err := c.claim(ctx, DraftStock, args, &payload); err != nil {
		return nil, err
	}

	quantity, err := c.stock.AdjustStock(ctx, payload.SKU, payload.Delta)
	if err != nil {
		return nil, gatewayToolError(err)
	}
	return map[string]any{
		"sku":      payload.SKU,
		"quantity": quantity,
	}, nil
}

func (c *Commerce) prepareStatusUpdate(ctx context.Context, args map[string]any) (any, error) {
	orderID, err := argInt64(args, "order_id")
	if err != nil {
		return nil, err
	}
	status, err := argString(args, "status")
	if err != nil {
		return nil, err
	}
	if !gateway.ValidStatus(status) {
		return nil, &ToolError{Code: CodeNotAllowed, Message: fmt.Sprintf("unknown status %q", status)}
	}

	order, err := c.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, gatewayToolError(err)
	}

	preview := fmt.Sprintf("Change order %d from %s to %s", order.ID, order.Status, status)
	return c.stage(ctx, DraftStatus, statusPayload{OrderID: orderID, Status: status}, preview)
}

func (c *Commerce) confirmStatusUpdate(ctx context.Context, args map[string]any) (any, error) {
	var payload statusPayload
	if err := c.claim(ctx, DraftStatus, args, &payload); err != nil {
		return nil, err
	}

	if err := c.orders.UpdateStatus(ctx, payload.OrderID, payload.Status); err != nil {
		return nil, gatewayToolError(err)
	}
	return map[string]any{
		"order_id": payload.OrderID,
		"status":   payload.Status,
	}, nil
}

func (c *Commerce) prepareBulkStatusUpdate(ctx context.Context, args map[string]any) (any, error) {
	orderIDs, err := argInt64Slice(args, "order_ids")
	if err != nil {
		return nil, err
	}
	if len(orderIDs) == 0 {
		return nil, &ToolError{Code: CodeNotAllowed, Message: "order_ids must not be empty"}
	}
	status, err := argString(args, "status")
	if err != nil {
		return nil, err
	}
	if !gateway.ValidStatus(status) {
		return nil, &ToolError{Code: CodeNotAllowed, Message: fmt.Sprintf("unknown status %q", status)}
	}

	preview := fmt.Sprintf("Change %d orders to %s", len(orderIDs), status)
	return c.stage(ctx, DraftBulkStatus, bulkStatusPayload{OrderIDs: orderIDs, Status: status}, preview)
}

// confirmBulkStatusUpdate applies the change to each order independently.
// One order's failure never rolls back or blocks the others; the result is
// an aggregate report.
func (c *Commerce) confirmBulkStatusUpdate(ctx context.Context, args map[string]any) (any, error) {
	var payload bulkStatusPayload
	if err := c.claim(ctx, DraftBulkStatus, args, &payload); err != nil {
		return nil, err
	}

	succeeded := []int64{}
	failed := []BulkItemFailure{}
	for _, id := range payload.OrderIDs {
		if err := c.orders.UpdateStatus(ctx, id, payload.Status); err != nil {
			failed = append(failed, BulkItemFailure{ID: id, Reason: err.Error()})
			continue
		}
		succeeded = append(succeeded, id)
	}

	c.logger.Info("bulk status update confirmed",
		zap.String("status", payload.Status),
		zap.Int("succeeded", len(succeeded)),
		zap.Int("failed", len(failed)))
	return map[string]any{
		"status":    payload.Status,
		"succeeded": succeeded,
		"failed":    failed,
	}, nil
}

func (c *Commerce) searchOrders(ctx context.Context, args map[string]any) (any, error) {
	q := gateway.OrderQuery{}
	if status, ok := args["status"].(string); ok {
		q.Status = status
	}
	if id, ok := args["customer_id"].(float64); ok {
		q.CustomerID = int64(id)
	}
	if limit, ok := args["limit"].(float64); ok {
		q.Limit = int(limit)
	}

	orders, err := c.orders.SearchOrders(ctx, q)
	if err != nil {
		return nil, gatewayToolError(err)
	}
	return map[string]any{"orders": orders, "count": len(orders)}, nil
}

func (c *Commerce) customerLookup(ctx context.Context, args map[string]any) (any, error) {
	id, err := argInt64(args, "customer_id")
	if err != nil {
		return nil, err
	}
	customer, err := c.customers.GetCustomer(ctx, id)
	if err != nil {
		return nil, gatewayToolError(err)
	}
	return customer, nil
}

func (c *Commerce) salesReport(ctx context.Context, args map[string]any) (any, error) {
	days := 30
	if raw, ok := args["days"].(float64); ok && raw > 0 {
		days = int(raw)
	}
	since := c.clock.Now().AddDate(0, 0, -days)

	report, err := c.orders.SalesReport(ctx, since)
	if err != nil {
		return nil, gatewayToolError(err)
	}
	return map[string]any{"days": days, "report": report}, nil
}

// stage creates the draft and shapes the uniform prepare_* reply.
func (c *Commerce) stage(ctx context.Context, draftType string, payload any, preview string) (any, error) {
	d, err := c.drafts.Create(ctx, draftType, payload, preview)
	if err != nil {
		return nil, &ToolError{Code: CodeDraftCreationFailed, Message: "could not stage the action, nothing was changed"}
	}
	return Prepared{
		DraftID:          d.ID,
		Preview:          d.Preview,
		ExpiresInSeconds: c.drafts.TTLSeconds(),
	}, nil
}

// claim resolves draft_id from args and converts the draft into the typed
// payload, at most once.
func (c *Commerce) claim(ctx context.Context, draftType string, args map[string]any, payload any) error {
	id, err := argString(args, "draft_id")
	if err != nil {
		return err
	}
	d, err := c.drafts.Claim(ctx, draftType, id)
	if errors.Is(err, draft.ErrExpired) {
		return &ToolError{Code: CodeDraftExpired, Message: "draft expired or was already used; prepare the action again"}
	}
	if err != nil {
		return &ToolError{Code: CodeStorageFailure, Message: "draft store unavailable, the action was not applied"}
	}
	if err := json.Unmarshal(d.Payload, payload); err != nil {
		return &ToolError{Code: CodeExecutionError, Message: fmt.Sprintf("corrupt draft payload: %v", err)}
	}
	return nil
}

func gatewayToolError(err error) error {
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		return &ToolError{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, gateway.ErrNotAllowed):
		return &ToolError{Code: CodeNotAllowed, Message: err.Error()}
	}
	return err
}

func argString(args map[string]any, name string) (string, error) {
	v, ok := args[name].(string)
	if !ok || v == "" {
		return "", &ToolError{Code: CodeValidationError, Message: fmt.Sprintf("%s is required", name)}
	}
	return v, nil
}

func argInt64(args map[string]any, name string) (int64, error) {
	v, ok := args[name].(float64)
	if !ok {
		return 0, &ToolError{Code: CodeValidationError, Message: fmt.Sprintf("%s is required", name)}
	}
	return int64(v), nil
}

func argInt(args map[string]any, name string) (int, error) {
	v, err := argInt64(args, name)
	return int(v), err
}

func argInt64Slice(args map[string]any, name string) ([]int64, error) {
	raw, ok := args[name].([]any)
	if !ok {
		return nil, &ToolError{Code: CodeValidationError, Message: fmt.Sprintf("%s is required", name)}
	}
	out := make([]int64, 0, len(raw))
	for _, item := range raw {
		n, ok := item.(float64)
		if !ok {
			return nil, &ToolError{Code: CodeValidationError, Message: fmt.Sprintf("%s must contain only order ids", name)}
		}
		out = append(out, int64(n))
	}
	return out, nil
}
