package dag

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/kbukum/intentflow/dag/expr"
)

// ResultStore holds the result of every succeeded node of one execution.
// Each key is written at most once. It is safe for concurrent use.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]any
	views   map[string]any
}

// NewResultStore creates an empty store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		results: make(map[string]any),
		views:   make(map[string]any),
	}
}

// Put records the result of node id. A second write for the same id
// returns ErrResultExists and leaves the first value in place.
func (s *ResultStore) Put(id string, result any) error {
	view := plainView(result)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.results[id]; exists {
		return ErrResultExists
	}
	s.results[id] = result
	s.views[id] = view
	return nil
}

// Get returns the result recorded for id.
func (s *ResultStore) Get(id string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.results[id]
	return v, ok
}

// Has reports whether id has a recorded result.
func (s *ResultStore) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Len returns the number of recorded results.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

// Resolve looks up a reference. A bare node id yields the result as the
// handler returned it; a path walks the JSON form of the result.
func (s *ResultStore) Resolve(ref expr.Reference) (any, bool) {
	s.mu.RLock()
	raw, ok := s.results[ref.Node]
	view := s.views[ref.Node]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if len(ref.Path) == 0 {
		return raw, true
	}

	cur := view
	for _, step := range ref.Path {
		switch c := cur.(type) {
		case map[string]any:
			cur, ok = c[step]
		case []any:
			var i int
			i, ok = listIndex(step, len(c))
			if ok {
				cur = c[i]
			}
		default:
			ok = false
		}
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

var _ expr.Resolver = (*ResultStore)(nil)

func listIndex(step string, n int) (int, bool) {
	i, err := strconv.Atoi(step)
	if err != nil || i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

// plainView converts a handler result into JSON-shaped values so paths can
// address struct fields by their json names.
func plainView(v any) any {
	switch v.(type) {
	case nil, string, bool, float64, int, int64, map[string]any, []any:
		if isPlain(v) {
			return v
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func isPlain(v any) bool {
	switch val := v.(type) {
	case nil, string, bool, float64, int, int64:
		return true
	case map[string]any:
		for _, item := range val {
			if !isPlain(item) {
				return false
			}
		}
		return true
	case []any:
		for _, item := range val {
			if !isPlain(item) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
