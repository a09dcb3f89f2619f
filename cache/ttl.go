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

package cache

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// TTL is a bounded, expiring cache backed by ttlcache. Entries live for a
// fixed TTL; when the capacity is reached the least recently used entry is
// evicted.
type TTL[V any] struct {
	inner *ttlcache.Cache[string, V]
}

// NewTTL creates a TTL cache holding at most capacity entries, each expiring
// ttl after insertion. A capacity of 0 means unbounded. The expiration
// janitor runs until Close is called.
func NewTTL[V any](capacity uint64, ttl time.Duration) *TTL[V] {
	inner := ttlcache.New(
		ttlcache.WithTTL[string, V](ttl),
		ttlcache.WithCapacity[string, V](capacity),
	)
	go inner.Start()
	return &TTL[V]{inner: inner}
}

func (c *TTL[V]) Get(key string) (V, bool) {
	item := c.inner.Get(key, ttlcache.WithDisableTouchOnHit[string, V]())
	if item == nil {
		var zero V
		return zero, false
	}
	return item.Value(), true
}

func (c *TTL[V]) Put(key string, value V) {
	c.inner.Set(key, value, ttlcache.DefaultTTL)
}

// Len returns the number of live entries.
func (c *TTL[V]) Len() int {
	return c.inner.Len()
}

// Close stops the expiration janitor. The cache remains usable afterward but
// expired entries are only dropped lazily on access.
func (c *TTL[V]) Close() error {
	c.inner.Stop()
	return nil
}

// NewTTLSupplier returns a Supplier producing independent TTL caches with the
// given bounds.
func NewTTLSupplier[V any](capacity uint64, ttl time.Duration) Supplier[V] {
	return func() Cache[V] { return NewTTL[V](capacity, ttl) }
}
