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

package future

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteOnce(t *testing.T) {
	f, complete := New[int]()
	complete(42, nil)
	complete(99, errors.New("late")) // ignored

	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestCompletedAndFailed(t *testing.T) {
	v, err := Completed("hello").Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	want := errors.New("boom")
	_, err = Failed[string](want).Wait(context.Background())
	assert.ErrorIs(t, err, want)
}

func TestOnCompleteSuccess(t *testing.T) {
	f, complete := New[int]()

	var got atomic.Int64
	derived := f.OnComplete(func(v int) {
		got.Store(int64(v))
	}, func(error) {
		t.Error("failure callback must not run")
	})

	complete(7, nil)

	v, err := derived.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	// Derived resolves only after the continuation ran.
	assert.Equal(t, int64(7), got.Load())
}

func TestOnCompleteFailure(t *testing.T) {
	f, complete := New[int]()
	want := errors.New("lookup failed")

	var got atomic.Value
	derived := f.OnComplete(func(int) {
		t.Error("success callback must not run")
	}, func(err error) {
		got.Store(err)
	})

	complete(0, want)

	_, err := derived.Wait(context.Background())
	assert.ErrorIs(t, err, want)
	assert.Equal(t, want, got.Load())
}

func TestOnCompleteNilCallbacks(t *testing.T) {
	f, complete := New[int]()
	derived := f.OnComplete(nil, nil)
	complete(1, nil)

	v, err := derived.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestMultipleIndependentContinuations(t *testing.T) {
	f, complete := New[string]()

	var ran atomic.Int64
	const n = 5
	derived := make([]*Future[string], 0, n)
	for range n {
		derived = append(derived, f.OnComplete(func(string) {
			ran.Add(1)
		}, nil))
	}

	complete("v", nil)

	require.NoError(t, WaitAll(context.Background(), derived...))
	assert.Equal(t, int64(n), ran.Load())
}

func TestWaitContextExpiry(t *testing.T) {
	f, _ := New[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitAllIgnoresFailedFutures(t *testing.T) {
	ok := Completed(1)
	bad := Failed[int](errors.New("remote error"))

	// A resolved-with-error future still counts as resolved.
	assert.NoError(t, WaitAll(context.Background(), ok, bad))
}

func TestWaitAllContextExpiry(t *testing.T) {
	pending, _ := New[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := WaitAll(ctx, Completed(1), pending)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
