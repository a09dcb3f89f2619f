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

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// permitPool caps the number of concurrently outstanding dispatches. A fresh
// pool is built at every unit start, so a unit abandoned with permits held
// does not leak capacity into the retry.
type permitPool struct {
	sem *semaphore.Weighted
}

func newPermitPool(capacity int) *permitPool {
	return &permitPool{sem: semaphore.NewWeighted(int64(capacity))}
}

// acquire blocks until a permit is available or ctx expires. An acquisition
// failure is fatal to the unit; no release is owed for it.
func (p *permitPool) acquire(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("lookup: acquiring dispatch permit: %w", err)
	}
	return nil
}

func (p *permitPool) release() {
	p.sem.Release(1)
}
