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

package lookup

// Outcome is the per-element result of a lookup: either a resolved value or
// the error that prevented resolution. Failure outcomes are ordinary emitted
// values, not stage failures; the host decides what to do with them.
type Outcome[V any] struct {
	value V
	err   error
}

// Success wraps a resolved value.
func Success[V any](value V) Outcome[V] {
	return Outcome[V]{value: value}
}

// Failure wraps a lookup error.
func Failure[V any](err error) Outcome[V] {
	return Outcome[V]{err: err}
}

// OK reports whether the outcome carries a value.
func (o Outcome[V]) OK() bool {
	return o.err == nil
}

// Value returns the resolved value; the zero value on failure outcomes.
func (o Outcome[V]) Value() V {
	return o.value
}

// Err returns the lookup error, or nil on success outcomes.
func (o Outcome[V]) Err() error {
	return o.err
}

// KV pairs a lookup key with its value as decoded from a batch response.
type KV[V any] struct {
	Key   string
	Value V
}

// Result is one routed output: the original input element, its untouched
// pass-through metadata, and the outcome of its lookup.
type Result[In, V any] struct {
	Input   In
	Meta    any
	Outcome Outcome[V]
}

// Emit receives routed results on the ingestion goroutine, during Process and
// Finish calls. Implementations typically forward to the host pipeline's
// output channel.
type Emit[In, V any] func(Result[In, V])
