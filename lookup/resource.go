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
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/batchlookup/cache"
)

// Resource bundles the worker-scoped collaborators shared by every
// sequential processing unit on one worker: the external client and the
// lookup cache. It outlives unit resets and is never shared across workers.
type Resource[C, V any] struct {
	Client C
	Cache  cache.Cache[V]

	closeClient func(C) error
}

// NewResource creates the worker resource. newClient is invoked once;
// closeClient may be nil for clients without teardown. A nil supplier
// disables caching.
func NewResource[C, V any](newClient func() (C, error), closeClient func(C) error, supplier cache.Supplier[V]) (*Resource[C, V], error) {
	client, err := newClient()
	if err != nil {
		return nil, fmt.Errorf("lookup: creating client: %w", err)
	}
	if supplier == nil {
		supplier = cache.NopSupplier[V]()
	}
	return &Resource[C, V]{
		Client:      client,
		Cache:       supplier(),
		closeClient: closeClient,
	}, nil
}

// Close tears down the client and, when the cache has its own lifecycle,
// closes it too. All teardown errors are reported together.
func (r *Resource[C, V]) Close() error {
	var errs *multierror.Error
	if r.closeClient != nil {
		errs = multierror.Append(errs, r.closeClient(r.Client))
	}
	if closer, ok := r.Cache.(io.Closer); ok {
		errs = multierror.Append(errs, closer.Close())
	}
	return errs.ErrorOrNil()
}
