package api

import (
	"context"
	"time"

	"github.com/kbukum/intentflow/dag"
	"github.com/kbukum/intentflow/redis"
)

// DefaultResultPrefix namespaces stored responses in Redis.
const DefaultResultPrefix = "intentflow:execution"

// ResultStore keeps finished responses for GET /v1/executions/:id. Load
// returns nil, nil for an unknown id.
type ResultStore interface {
	Load(ctx context.Context, id string) (*dag.Response, error)
	Save(ctx context.Context, id string, resp *dag.Response, ttl time.Duration) error
}

// NewRedisResultStore stores responses as JSON under prefix.
func NewRedisResultStore(client *redis.Client, prefix string) ResultStore {
	if prefix == "" {
		prefix = DefaultResultPrefix
	}
	return redis.NewTypedStore[dag.Response](client, prefix)
}
