package engine

import (
	"github.com/xaenox/storebot/internal/models"
)

// StaticHandler is a plain declaration of intents, prompt and tools.
type StaticHandler struct {
	ForIntents []models.Intent
	Prompt     string
	ToolNames  []string
}

func (h StaticHandler) Intents() []models.Intent { return h.ForIntents }
func (h StaticHandler) SystemPrompt() string     { return h.Prompt }
func (h StaticHandler) Tools() []string          { return h.ToolNames }

const basePrompt = "You are a store operations assistant. Mutating actions are staged first: call the prepare_* tool, show the returned preview and draft_id to the operator, and call the matching confirm_* tool only when the operator explicitly confirms. Never invent order ids or amounts."

// FallbackHandler answers anything that did not classify, with read-only
// tools only.
var FallbackHandler = StaticHandler{
	ForIntents: []models.Intent{models.IntentFallback},
	Prompt:     basePrompt + " If the request is unclear, ask the operator what they want to do.",
	ToolNames:  []string{"search_orders", "customer_lookup", "sales_report"},
}

// RegisterDefaults installs one handler per commerce intent.
func RegisterDefaults(r *HandlerRegistry) {
	r.Register(StaticHandler{
		ForIntents: []models.Intent{models.IntentRefund},
		Prompt:     basePrompt + " The operator wants to refund an order.",
		ToolNames:  []string{"prepare_refund", "confirm_refund", "search_orders"},
	})
	r.Register(StaticHandler{
		ForIntents: []models.Intent{models.IntentStatusUpdate},
		Prompt:     basePrompt + " The operator wants to change one order's status.",
		ToolNames:  []string{"prepare_status_update", "confirm_status_update", "search_orders"},
	})
	r.Register(StaticHandler{
		ForIntents: []models.Intent{models.IntentBulkStatusUpdate},
		Prompt:     basePrompt + " The operator wants to change the status of several orders at once.",
		ToolNames:  []string{"prepare_bulk_status_update", "confirm_bulk_status_update", "search_orders"},
	})
	r.Register(StaticHandler{
		ForIntents: []models.Intent{models.IntentStockUpdate},
		Prompt:     basePrompt + " The operator wants to adjust stock quantities.",
		ToolNames:  []string{"prepare_stock_update", "confirm_stock_update"},
	})
	r.Register(StaticHandler{
		ForIntents: []models.Intent{models.IntentEmailDraft},
		Prompt:     basePrompt + " Draft the requested customer email and show it to the operator. Do not send anything.",
		ToolNames:  []string{"customer_lookup", "search_orders"},
	})
	r.Register(StaticHandler{
		ForIntents: []models.Intent{models.IntentAnalytics},
		Prompt:     basePrompt + " Answer with numbers from the sales report, not estimates.",
		ToolNames:  []string{"sales_report", "search_orders"},
	})
	r.Register(StaticHandler{
		ForIntents: []models.Intent{models.IntentCustomerLookup},
		Prompt:     basePrompt + " Look the customer up and summarize their profile.",
		ToolNames:  []string{"customer_lookup", "search_orders"},
	})
	r.Register(StaticHandler{
		ForIntents: []models.Intent{models.IntentSearch},
		Prompt:     basePrompt + " Find the orders the operator asked for.",
		ToolNames:  []string{"search_orders"},
	})
}
