package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Bulkhead errors.
var (
	ErrBulkheadFull    = errors.New("bulkhead is full")
	ErrBulkheadTimeout = errors.New("bulkhead wait timeout")
)

// BulkheadConfig configures a bulkhead.
type BulkheadConfig struct {
	// Name identifies this bulkhead in logs.
	Name string
	// MaxConcurrent is the maximum number of concurrent calls. Defaults to 10.
	MaxConcurrent int
	// MaxWait bounds the wait for a slot. Zero rejects at once when full.
	MaxWait time.Duration
	// OnReject is called when a call is rejected.
	OnReject func(name string)
}

// Bulkhead caps concurrent calls into one intent type. Waiters are served
// in arrival order.
type Bulkhead struct {
	name     string
	capacity int64
	maxWait  time.Duration
	onReject func(string)

	sem   *semaphore.Weighted
	inUse atomic.Int64
}

// NewBulkhead creates a bulkhead.
func NewBulkhead(cfg BulkheadConfig) *Bulkhead {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	return &Bulkhead{
		name:     cfg.Name,
		capacity: int64(cfg.MaxConcurrent),
		maxWait:  cfg.MaxWait,
		onReject: cfg.OnReject,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// Execute runs fn while holding a slot. When no slot frees up it returns
// ErrBulkheadFull, ErrBulkheadTimeout or the context error, without
// calling fn.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	if err := b.acquire(ctx); err != nil {
		if b.onReject != nil {
			b.onReject(b.name)
		}
		return err
	}
	b.inUse.Add(1)
	defer func() {
		b.inUse.Add(-1)
		b.sem.Release(1)
	}()
	return fn()
}

func (b *Bulkhead) acquire(ctx context.Context) error {
	if b.sem.TryAcquire(1) {
		return nil
	}
	if b.maxWait <= 0 {
		return ErrBulkheadFull
	}

	waitCtx, cancel := context.WithTimeout(ctx, b.maxWait)
	defer cancel()
	if err := b.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrBulkheadTimeout
	}
	return nil
}

// InUse returns the number of calls currently holding a slot.
func (b *Bulkhead) InUse() int {
	return int(b.inUse.Load())
}

// Available returns the number of free slots.
func (b *Bulkhead) Available() int {
	return int(b.capacity - b.inUse.Load())
}
