package dag

import (
	"context"
	"errors"
	"sync"
)

// DefaultPoolSize is the number of workers in a pool created without an
// explicit size.
const DefaultPoolSize = 64

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("dag: worker pool closed")

// Pool is a fixed set of workers shared by every execution of an engine.
// Executions bound their own share through their in-flight limit.
type Pool struct {
	tasks chan func()
	quit  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
	size  int
}

// NewPool starts size workers.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	p := &Pool{
		tasks: make(chan func()),
		quit:  make(chan struct{}),
		size:  size,
	}
	p.wg.Add(size)
	for range size {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.tasks:
			task()
		case <-p.quit:
			return
		}
	}
}

// Submit hands task to an idle worker, waiting until one is free, ctx is
// done or the pool is closed.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	select {
	case <-p.quit:
		return ErrPoolClosed
	default:
	}
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return ErrPoolClosed
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Close stops accepting tasks and waits for running tasks to return or ctx
// to end.
func (p *Pool) Close(ctx context.Context) error {
	p.once.Do(func() { close(p.quit) })
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
