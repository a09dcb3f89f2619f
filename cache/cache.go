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

// Package cache defines the keyed lookup cache shared by the lookup stages,
// plus the built-in no-op and TTL-bounded implementations.
package cache

// Cache maps lookup keys to previously resolved values. Implementations must
// be safe for concurrent use: Put is called from async completion callbacks
// while Get runs on the ingestion path.
type Cache[V any] interface {
	Get(key string) (V, bool)
	Put(key string, value V)
}

// Supplier constructs a cache for one worker-scoped resource. Eviction policy
// is entirely the supplier's concern.
type Supplier[V any] func() Cache[V]

// Nop is a cache that stores nothing. Every Get misses, so every lookup goes
// to the remote client.
type Nop[V any] struct{}

func (Nop[V]) Get(string) (V, bool) {
	var zero V
	return zero, false
}

func (Nop[V]) Put(string, V) {}

// NopSupplier returns a Supplier producing Nop caches. It is the default when
// a stage is configured without a cache.
func NopSupplier[V any]() Supplier[V] {
	return func() Cache[V] { return Nop[V]{} }
}
