package tools

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/storebot/internal/clock"
	"github.com/xaenox/storebot/internal/draft"
	"github.com/xaenox/storebot/internal/gateway"
	"github.com/xaenox/storebot/internal/kvstore"
	"github.com/xaenox/storebot/internal/models"
)

type commerceFixture struct {
	dispatcher *Dispatcher
	gw         *gateway.MemoryGateway
	clk        *clock.Fake
}

func newCommerceFixture(t *testing.T) *commerceFixture {
	t.Helper()
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	drafts := draft.NewManager(draft.NewStore(kvstore.NewMemoryStore(clk)), clk, 15*time.Minute, zap.NewNop())

	gw := gateway.NewMemoryGateway()
	gw.PutCustomer(gateway.Customer{ID: 5, Name: "Ada", Email: "ada@example.com", CreatedAt: clk.Now()})
	gw.PutOrder(gateway.Order{ID: 42, CustomerID: 5, Status: gateway.StatusDelivered, Total: 50.00, CreatedAt: clk.Now()})
	gw.PutOrder(gateway.Order{ID: 43, CustomerID: 5, Status: gateway.StatusPending, Total: 10.00, CreatedAt: clk.Now()})
	gw.PutStock(gateway.StockItem{SKU: "A-100", Name: "Widget", Quantity: 7})

	registry := NewRegistry()
	dispatcher := NewDispatcher(registry, zap.NewNop())
	commerce := NewCommerce(drafts, gw, gw, gw, clk, zap.NewNop())
	require.NoError(t, commerce.Register(registry, dispatcher))

	return &commerceFixture{dispatcher: dispatcher, gw: gw, clk: clk}
}

func (f *commerceFixture) call(t *testing.T, name, args string) models.ToolResult {
	t.Helper()
	return f.dispatcher.Dispatch(context.Background(), models.ToolCall{Name: name, Arguments: args})
}

func draftID(t *testing.T, result models.ToolResult) string {
	t.Helper()
	require.True(t, result.Success, "expected success, got %s: %s", result.Code, result.Message)
	prepared, ok := result.Data.(Prepared)
	require.True(t, ok, "unexpected data %T", result.Data)
	require.NotEmpty(t, prepared.Preview)
	return prepared.DraftID
}

func TestRefundPrepareConfirmFlow(t *testing.T) {
	f := newCommerceFixture(t)

	prepared := f.call(t, "prepare_refund", `{"order_id": 42, "amount": 10.00}`)
	id := draftID(t, prepared)
	assert.Contains(t, prepared.Data.(Prepared).Preview, "Refund $10.00")

	// Prepare performs no mutation.
	order, err := f.gw.GetOrder(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 0.0, order.RefundedAmount)

	confirmed := f.call(t, "confirm_refund", fmt.Sprintf(`{"draft_id": %q}`, id))
	require.True(t, confirmed.Success, "%s: %s", confirmed.Code, confirmed.Message)

	order, err = f.gw.GetOrder(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 10.00, order.RefundedAmount)

	// A second confirm of the same draft must not refund twice.
	again := f.call(t, "confirm_refund", fmt.Sprintf(`{"draft_id": %q}`, id))
	assert.False(t, again.Success)
	assert.Equal(t, CodeDraftExpired, again.Code)

	order, err = f.gw.GetOrder(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 10.00, order.RefundedAmount)
}

func TestRefundDefaultsToFullBalance(t *testing.T) {
	f := newCommerceFixture(t)

	prepared := f.call(t, "prepare_refund", `{"order_id": 42}`)
	assert.Contains(t, prepared.Data.(Prepared).Preview, "Refund $50.00")
}

func TestRefundOverBalanceRejected(t *testing.T) {
	f := newCommerceFixture(t)

	result := f.call(t, "prepare_refund", `{"order_id": 42, "amount": 60.00}`)
	assert.False(t, result.Success)
	assert.Equal(t, CodeNotAllowed, result.Code)
}

func TestRefundUnknownOrder(t *testing.T) {
	f := newCommerceFixture(t)

	result := f.call(t, "prepare_refund", `{"order_id": 999}`)
	assert.False(t, result.Success)
	assert.Equal(t, CodeNotFound, result.Code)
}

func TestConfirmRevalidatesCurrentState(t *testing.T) {
	f := newCommerceFixture(t)

	prepared := f.call(t, "prepare_refund", `{"order_id": 42, "amount": 10.00}`)
	id := draftID(t, prepared)

	// The order is cancelled between prepare and confirm.
	require.NoError(t, f.gw.UpdateStatus(context.Background(), 42, gateway.StatusCancelled))

	confirmed := f.call(t, "confirm_refund", fmt.Sprintf(`{"draft_id": %q}`, id))
	assert.False(t, confirmed.Success)
	assert.Equal(t, CodeNotAllowed, confirmed.Code)
}

func TestConfirmExpiredDraft(t *testing.T) {
	f := newCommerceFixture(t)

	prepared := f.call(t, "prepare_refund", `{"order_id": 42, "amount": 5.00}`)
	id := draftID(t, prepared)

	f.clk.Advance(16 * time.Minute)

	confirmed := f.call(t, "confirm_refund", fmt.Sprintf(`{"draft_id": %q}`, id))
	assert.False(t, confirmed.Success)
	assert.Equal(t, CodeDraftExpired, confirmed.Code)
}

func TestStockUpdateFlow(t *testing.T) {
	f := newCommerceFixture(t)

	prepared := f.call(t, "prepare_stock_update", `{"sku": "A-100", "delta": -3}`)
	id := draftID(t, prepared)

	confirmed := f.call(t, "confirm_stock_update", fmt.Sprintf(`{"draft_id": %q}`, id))
	require.True(t, confirmed.Success, "%s: %s", confirmed.Code, confirmed.Message)
	data := confirmed.Data.(map[string]any)
	assert.Equal(t, 4, data["quantity"])
}

func TestStockUpdateCannotGoNegative(t *testing.T) {
	f := newCommerceFixture(t)

	result := f.call(t, "prepare_stock_update", `{"sku": "A-100", "delta": -8}`)
	assert.False(t, result.Success)
	assert.Equal(t, CodeNotAllowed, result.Code)
}

func TestStatusUpdateFlow(t *testing.T) {
	f := newCommerceFixture(t)

	prepared := f.call(t, "prepare_status_update", `{"order_id": 43, "status": "shipped"}`)
	id := draftID(t, prepared)

	confirmed := f.call(t, "confirm_status_update", fmt.Sprintf(`{"draft_id": %q}`, id))
	require.True(t, confirmed.Success)

	order, err := f.gw.GetOrder(context.Background(), 43)
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusShipped, order.Status)
}

func TestStatusUpdateRejectsUnknownStatus(t *testing.T) {
	f := newCommerceFixture(t)

	result := f.call(t, "prepare_status_update", `{"order_id": 43, "status": "teleported"}`)
	assert.False(t, result.Success)
	assert.Equal(t, CodeNotAllowed, result.Code)
}

func TestBulkStatusUpdatePartialFailure(t *testing.T) {
	f := newCommerceFixture(t)

	// Order 2 does not exist; 42 and 43 do.
	prepared := f.call(t, "prepare_bulk_status_update", `{"order_ids": [42, 2, 43], "status": "processing"}`)
	id := draftID(t, prepared)

	confirmed := f.call(t, "confirm_bulk_status_update", fmt.Sprintf(`{"draft_id": %q}`, id))
	require.True(t, confirmed.Success, "partial failure is still a success envelope")

	data := confirmed.Data.(map[string]any)
	assert.ElementsMatch(t, []int64{42, 43}, data["succeeded"])

	failed := data["failed"].([]BulkItemFailure)
	require.Len(t, failed, 1)
	assert.Equal(t, int64(2), failed[0].ID)
	assert.NotEmpty(t, failed[0].Reason)
}

func TestSearchOrdersReadOnly(t *testing.T) {
	f := newCommerceFixture(t)

	result := f.call(t, "search_orders", `{"status": "pending"}`)
	require.True(t, result.Success)
	data := result.Data.(map[string]any)
	assert.Equal(t, 1, data["count"])
}

func TestCustomerLookup(t *testing.T) {
	f := newCommerceFixture(t)

	result := f.call(t, "customer_lookup", `{"customer_id": 5}`)
	require.True(t, result.Success)
	customer := result.Data.(*gateway.Customer)
	assert.Equal(t, "Ada", customer.Name)

	missing := f.call(t, "customer_lookup", `{"customer_id": 99}`)
	assert.False(t, missing.Success)
	assert.Equal(t, CodeNotFound, missing.Code)
}

func TestSalesReport(t *testing.T) {
	f := newCommerceFixture(t)

	result := f.call(t, "sales_report", `{"days": 7}`)
	require.True(t, result.Success)
	data := result.Data.(map[string]any)
	report := data["report"].(*gateway.SalesReport)
	assert.Equal(t, 2, report.Orders)
	assert.Equal(t, 60.00, report.Revenue)
}
