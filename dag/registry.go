package dag

import (
	"context"
	"sort"
	"sync"
)

// Handler performs the operation behind one intent type. Parameters arrive
// with every template already resolved. Errors should be *errors.AppError
// values with Retryable set when another attempt could succeed; any other
// error is final.
type Handler interface {
	Execute(ctx context.Context, params map[string]any) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, params map[string]any) (any, error)

// Execute calls f.
func (f HandlerFunc) Execute(ctx context.Context, params map[string]any) (any, error) {
	return f(ctx, params)
}

// Call identifies the handler invocation a context belongs to.
type Call struct {
	ExecutionID string
	NodeID      string
	Type        IntentType
	Attempt     int
}

// IdempotencyKey is stable across retries of the same node.
func (c Call) IdempotencyKey() string {
	return c.ExecutionID + ":" + c.NodeID
}

type callKey struct{}

// ContextWithCall stores c in ctx. The engine does this for every handler
// invocation.
func ContextWithCall(ctx context.Context, c Call) context.Context {
	return context.WithValue(ctx, callKey{}, c)
}

// CallFromContext returns the invocation stored by ContextWithCall.
func CallFromContext(ctx context.Context) (Call, bool) {
	c, ok := ctx.Value(callKey{}).(Call)
	return c, ok
}

// Middleware decorates the handler registered for an intent type.
type Middleware func(t IntentType, next Handler) Handler

// Registry maps intent types to handlers. Middleware is applied lazily on
// first lookup, outermost first.
type Registry struct {
	mu         sync.RWMutex
	handlers   map[IntentType]Handler
	wrapped    map[IntentType]Handler
	middleware []Middleware
}

// NewRegistry creates an empty registry.
func NewRegistry(mw ...Middleware) *Registry {
	return &Registry{
		handlers:   make(map[IntentType]Handler),
		wrapped:    make(map[IntentType]Handler),
		middleware: mw,
	}
}

// Register binds h to t, replacing any earlier handler.
func (r *Registry) Register(t IntentType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = h
	delete(r.wrapped, t)
}

// RegisterFunc binds a function to t.
func (r *Registry) RegisterFunc(t IntentType, fn func(ctx context.Context, params map[string]any) (any, error)) {
	r.Register(t, HandlerFunc(fn))
}

// Use appends middleware. It applies to every handler, including those
// registered earlier.
func (r *Registry) Use(mw ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw...)
	clear(r.wrapped)
}

// Lookup returns the decorated handler for t.
func (r *Registry) Lookup(t IntentType) (Handler, bool) {
	r.mu.RLock()
	h, ok := r.wrapped[t]
	r.mu.RUnlock()
	if ok {
		return h, true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.wrapped[t]; ok {
		return h, true
	}
	base, ok := r.handlers[t]
	if !ok {
		return nil, false
	}
	h = base
	for i := len(r.middleware) - 1; i >= 0; i-- {
		h = r.middleware[i](t, h)
	}
	r.wrapped[t] = h
	return h, true
}

// Has reports whether a handler is registered for t.
func (r *Registry) Has(t IntentType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[t]
	return ok
}

// Types returns the registered intent types, sorted.
func (r *Registry) Types() []IntentType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]IntentType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
