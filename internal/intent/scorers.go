package intent

import (
	"strings"

	"github.com/xaenox/storebot/internal/models"
)

// KeywordScorer scores by keyword hits: the first strong hit is worth 0.6
// and each further strong hit 0.1, each weak hit 0.15, capped at 0.95.
type KeywordScorer struct {
	name   string
	intent models.Intent
	strong []string
	weak   []string
}

func NewKeywordScorer(name string, intent models.Intent, strong, weak []string) *KeywordScorer {
	return &KeywordScorer{
		name:   name,
		intent: intent,
		strong: strong,
		weak:   weak,
	}
}

func (s *KeywordScorer) Name() string {
	return s.name
}

func (s *KeywordScorer) Score(text string, context map[string]any) (models.Intent, float64) {
	score := 0.0
	first := true
	for _, kw := range s.strong {
		if strings.Contains(text, kw) {
			if first {
				score += 0.6
				first = false
			} else {
				score += 0.1
			}
		}
	}
	for _, kw := range s.weak {
		if strings.Contains(text, kw) {
			score += 0.15
		}
	}
	if score > 0.95 {
		score = 0.95
	}
	return s.intent, score
}

// RegisterDefaults installs the built-in commerce scorers. The bulk scorer
// is registered before the single-order status scorer so the tie-break
// favors the bulk path when both match equally.
func RegisterDefaults(c *Classifier) {
	c.Register(NewKeywordScorer("refund-keywords", models.IntentRefund,
		[]string{"refund", "reimburse", "money back", "chargeback"},
		[]string{"order", "$", "amount"}))
	c.Register(NewKeywordScorer("bulk-status-keywords", models.IntentBulkStatusUpdate,
		[]string{"bulk", "all orders", "all pending", "all of them", "every order"},
		[]string{"mark", "status", "shipped", "delivered", "cancelled"}))
	c.Register(NewKeywordScorer("status-keywords", models.IntentStatusUpdate,
		[]string{"status", "mark order", "set order"},
		[]string{"shipped", "delivered", "cancelled", "processing", "order"}))
	c.Register(NewKeywordScorer("stock-keywords", models.IntentStockUpdate,
		[]string{"stock", "inventory", "restock"},
		[]string{"units", "sku", "add", "remove", "set"}))
	c.Register(NewKeywordScorer("email-keywords", models.IntentEmailDraft,
		[]string{"email", "write to"},
		[]string{"customer", "send", "reply", "apolog"}))
	c.Register(NewKeywordScorer("analytics-keywords", models.IntentAnalytics,
		[]string{"sales report", "analytics", "revenue", "how many"},
		[]string{"sales", "report", "week", "month", "top"}))
	c.Register(NewKeywordScorer("customer-keywords", models.IntentCustomerLookup,
		[]string{"customer", "who is"},
		[]string{"profile", "history", "lookup", "email address"}))
	c.Register(NewKeywordScorer("search-keywords", models.IntentSearch,
		[]string{"find", "search", "show me", "list"},
		[]string{"orders", "order", "recent"}))
}
