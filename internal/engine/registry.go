package engine

import (
	"github.com/xaenox/storebot/internal/models"
)

// Handler declares the intents it serves, the system prompt for the model
// and the tools the model may call while serving them.
type Handler interface {
	Intents() []models.Intent
	SystemPrompt() string
	Tools() []string
}

// DynamicHandler additionally matches intents not known at registration
// time. Resolution falls back to a linear scan over these.
type DynamicHandler interface {
	Handler
	CanHandle(intent models.Intent) bool
}

// HandlerRegistry resolves an intent to its handler: O(1) through the
// static map, then a scan over dynamic handlers, then the fallback.
type HandlerRegistry struct {
	static   map[models.Intent]Handler
	dynamic  []DynamicHandler
	fallback Handler
}

func NewHandlerRegistry(fallback Handler) *HandlerRegistry {
	return &HandlerRegistry{
		static:   make(map[models.Intent]Handler),
		fallback: fallback,
	}
}

// Register indexes the handler under each of its declared intents. A
// DynamicHandler with no declared intents joins the scan list.
func (r *HandlerRegistry) Register(h Handler) {
	for _, intent := range h.Intents() {
		r.static[intent] = h
	}
	if dh, ok := h.(DynamicHandler); ok {
		r.dynamic = append(r.dynamic, dh)
	}
}

func (r *HandlerRegistry) Resolve(intent models.Intent) Handler {
	if h, ok := r.static[intent]; ok {
		return h
	}
	for _, dh := range r.dynamic {
		if dh.CanHandle(intent) {
			return dh
		}
	}
	return r.fallback
}
