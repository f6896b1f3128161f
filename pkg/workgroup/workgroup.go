// Package workgroup provides a bounded concurrent task group whose Push
// operation hands back a per-task handle. Handles resolve with the task's
// result once it has run, which lets a caller submit work in one order and
// await completion in the same order regardless of how tasks interleave.
package workgroup

import (
	"context"
	"fmt"
	"sync"
)

// Result carries the outcome of one pushed task.
type Result[R any] struct {
	Value R
	Err   error
}

// Group concurrently applies a unit of work over pushed inputs.
//
// Push sends a value to the Group for processing and returns a receive
// channel that emits exactly one Result for the associated input. Push may
// block while the Group is at its concurrency limit. If the Group has been
// closed, or the context has been canceled, the handle resolves with that
// error instead.
//
// Close signals that no further work will be pushed and blocks until all
// running tasks have completed.
type Group[T, R any] interface {
	Push(context.Context, T) <-chan Result[R]
	Close() error
}

// boundGroup processes input by spawning a goroutine per input, up to a
// fixed limit. When no input is waiting, no goroutines are running.
type boundGroup[T, R any] struct {
	wg      sync.WaitGroup
	limiter chan struct{}
	fn      func(T) (R, error)
	once    sync.Once
	ctx     context.Context
	cancel  func()
}

func (g *boundGroup[T, R]) Push(ctx context.Context, t T) <-chan Result[R] {
	ch := make(chan Result[R], 1)

	if g.ctx.Err() != nil {
		ch <- Result[R]{Err: g.ctx.Err()}
		return ch
	}

	if ctx.Err() != nil {
		ch <- Result[R]{Err: ctx.Err()}
		return ch
	}

	select {
	case <-g.ctx.Done():
		ch <- Result[R]{Err: g.ctx.Err()}
	case <-ctx.Done():
		ch <- Result[R]{Err: ctx.Err()}
	case g.limiter <- struct{}{}:
		g.wg.Add(1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					ch <- Result[R]{Err: fmt.Errorf("task panic: %v", r)}
				}
				<-g.limiter
				close(ch)
				g.wg.Done()
			}()
			v, err := g.fn(t)
			ch <- Result[R]{Value: v, Err: err}
		}()
	}
	return ch
}

func (g *boundGroup[T, R]) Close() error {
	g.once.Do(g.cancel)
	g.wg.Wait()
	return nil
}

// Bound returns a Group that applies fn to each pushed input with at most
// limit tasks running concurrently. The handle returned by Push resolves
// with fn's result, or with the panic converted to an error if fn panics.
func Bound[T, R any](limit int, fn func(T) (R, error)) Group[T, R] {
	if limit < 1 {
		limit = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &boundGroup[T, R]{
		limiter: make(chan struct{}, limit),
		fn:      fn,
		ctx:     ctx,
		cancel:  cancel,
	}
}
