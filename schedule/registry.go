package schedule

import (
	"context"
	"database/sql"
	"sync"

	"github.com/Renagang21/o4o-platform-sub086/failqueue"
)

// Handler defines the interface for executing one action type of one
// target service. Domain packages implement this interface and register
// with the Registry, keeping the scheduling infrastructure decoupled
// from business logic.
type Handler interface {
	// Service returns the target service this handler belongs to
	// (e.g., "commission", "content").
	Service() string

	// Action returns the action type this handler performs within its
	// service (e.g., "recalculate", "expire").
	Action() string

	// Execute runs the action. The handler should:
	// - Read its parameters from run.Config
	// - Use run.Tx for database work scoped to the execution
	// - Report item-level failures through run.FailureQueue
	// - Return a Result describing the outcome, or an error for
	//   infrastructure-level failures
	//
	// Handlers MUST check ctx.Done() periodically; long-running work is
	// cancelled on shutdown and on execution timeout.
	Execute(ctx context.Context, run *Run) (*Result, error)
}

// Run carries everything a handler needs for one execution attempt.
type Run struct {
	ExecutionID     string
	Job             *Job
	Config          map[string]interface{}
	IsManualTrigger bool
	TriggeredBy     string

	// Tx is scoped to this execution: committed when the handler
	// returns, rolled back when it errors or panics.
	Tx *sql.Tx

	// FailureQueue lets handlers enqueue item-level failures for later
	// retry without failing the whole execution.
	FailureQueue *failqueue.Queue
}

// Result describes the outcome of a handler execution.
type Result struct {
	Success        bool
	ItemsProcessed int
	ItemsSucceeded int
	ItemsFailed    int
	Summary        string
	Error          string
	Details        map[string]interface{}
}

// handlerKey identifies a handler by (service, action) pair.
type handlerKey struct {
	service string
	action  string
}

// Registry manages handlers keyed by (service, action).
// Thread-safe for concurrent registration and lookup.
type Registry struct {
	handlers map[handlerKey]Handler
	mu       sync.RWMutex
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[handlerKey]Handler),
	}
}

// Register adds a handler under its (service, action) key. Registering
// a second handler for the same key silently replaces the first, so
// re-registration at startup is idempotent.
func (r *Registry) Register(handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[handlerKey{service: handler.Service(), action: handler.Action()}] = handler
}

// Resolve returns the handler for a (service, action) pair.
func (r *Registry) Resolve(service, action string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[handlerKey{service: service, action: action}]
	return h, ok
}

// Keys returns the registered (service, action) pairs as
// "service.action" strings, in no particular order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k.service+"."+k.action)
	}
	return keys
}

// Count returns the number of registered handlers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.handlers)
}
