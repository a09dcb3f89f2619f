// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package future provides a minimal promise/future primitive for wiring
// completion callbacks onto pending asynchronous operations.
package future

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Future is the pending result of an asynchronous operation. It resolves
// exactly once, either with a value or with an error, and any number of
// continuations may be attached to it independently.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

// New creates an unresolved future and the one-shot function that resolves
// it. Calling complete more than once is a no-op.
func New[T any]() (*Future[T], func(T, error)) {
	f := &Future[T]{done: make(chan struct{})}
	return f, f.complete
}

// Completed returns a future already resolved with val.
func Completed[T any](val T) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	f.complete(val, nil)
	return f
}

// Failed returns a future already resolved with err.
func Failed[T any](err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	var zero T
	f.complete(zero, err)
	return f
}

func (f *Future[T]) complete(val T, err error) {
	f.once.Do(func() {
		f.val = val
		f.err = err
		close(f.done)
	})
}

// OnComplete attaches a continuation and returns a derived future that
// resolves with the original outcome only after the continuation has run.
// Either callback may be nil. Continuations attached to the same future run
// concurrently with each other, each on its own goroutine.
func (f *Future[T]) OnComplete(onSuccess func(T), onFailure func(error)) *Future[T] {
	derived := &Future[T]{done: make(chan struct{})}
	go func() {
		<-f.done
		if f.err != nil {
			if onFailure != nil {
				onFailure(f.err)
			}
		} else if onSuccess != nil {
			onSuccess(f.val)
		}
		derived.complete(f.val, f.err)
	}()
	return derived
}

// Wait blocks until the future resolves or ctx expires. A ctx expiry is
// reported as the ctx error; the future itself stays pending.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel closed when the future resolves.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// WaitAll blocks until every future in futs has resolved or ctx expires.
// A future that resolved with an error still counts as resolved; only ctx
// expiry makes WaitAll return an error.
func WaitAll[T any](ctx context.Context, futs ...*Future[T]) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range futs {
		g.Go(func() error {
			select {
			case <-f.done:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	return g.Wait()
}
