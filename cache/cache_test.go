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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopAlwaysMisses(t *testing.T) {
	c := Nop[string]{}
	c.Put("a", "value")

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestNopSupplier(t *testing.T) {
	c := NopSupplier[int]()()
	require.NotNil(t, c)

	c.Put("k", 1)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestTTLGetPut(t *testing.T) {
	c := NewTTL[string](16, time.Minute)
	defer func() { _ = c.Close() }()

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Put("a", "A")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "A", v)
}

func TestTTLExpiry(t *testing.T) {
	c := NewTTL[string](16, 20*time.Millisecond)
	defer func() { _ = c.Close() }()

	c.Put("a", "A")
	assert.Eventually(t, func() bool {
		_, ok := c.Get("a")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestTTLCapacityEviction(t *testing.T) {
	c := NewTTL[int](2, time.Minute)
	defer func() { _ = c.Close() }()

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	assert.Equal(t, 2, c.Len())

	// The newest entries survive.
	v, ok := c.Get("c")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestTTLSupplierIndependence(t *testing.T) {
	supplier := NewTTLSupplier[int](8, time.Minute)
	c1 := supplier()
	c2 := supplier()

	c1.Put("k", 1)
	_, ok := c2.Get("k")
	assert.False(t, ok, "caches from one supplier must not share entries")
}
