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
	"log"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	batchesDispatched metric.Int64Counter
	keysDispatched    metric.Int64Counter
	batchFailures     metric.Int64Counter
	cacheHits         metric.Int64Counter
	cacheMisses       metric.Int64Counter
	unmatchedKeys     metric.Int64Counter
	strayResponseKeys metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/batchlookup/lookup")

	var err error

	batchesDispatched, err = meter.Int64Counter(
		"batchlookup.batches_dispatched",
		metric.WithDescription("Number of lookup requests dispatched to the client"),
	)
	if err != nil {
		log.Fatalf("failed to create batches_dispatched counter: %v", err)
	}

	keysDispatched, err = meter.Int64Counter(
		"batchlookup.keys_dispatched",
		metric.WithDescription("Number of distinct keys sent in dispatched requests"),
	)
	if err != nil {
		log.Fatalf("failed to create keys_dispatched counter: %v", err)
	}

	batchFailures, err = meter.Int64Counter(
		"batchlookup.batch_failures",
		metric.WithDescription("Number of dispatched requests that failed as a whole"),
	)
	if err != nil {
		log.Fatalf("failed to create batch_failures counter: %v", err)
	}

	cacheHits, err = meter.Int64Counter(
		"batchlookup.cache_hits",
		metric.WithDescription("Number of elements resolved from the lookup cache"),
	)
	if err != nil {
		log.Fatalf("failed to create cache_hits counter: %v", err)
	}

	cacheMisses, err = meter.Int64Counter(
		"batchlookup.cache_misses",
		metric.WithDescription("Number of elements not found in the lookup cache"),
	)
	if err != nil {
		log.Fatalf("failed to create cache_misses counter: %v", err)
	}

	unmatchedKeys, err = meter.Int64Counter(
		"batchlookup.unmatched_keys",
		metric.WithDescription("Number of requested keys missing from their batch response"),
	)
	if err != nil {
		log.Fatalf("failed to create unmatched_keys counter: %v", err)
	}

	strayResponseKeys, err = meter.Int64Counter(
		"batchlookup.stray_response_keys",
		metric.WithDescription("Number of response keys that were never requested"),
	)
	if err != nil {
		log.Fatalf("failed to create stray_response_keys counter: %v", err)
	}
}

func registerInFlightGauge(inFlight *atomic.Int64) {
	meter := otel.Meter("github.com/cardinalhq/batchlookup/lookup")
	_, err := meter.Int64ObservableGauge(
		"batchlookup.inflight_requests",
		metric.WithDescription("Number of outstanding lookup requests"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(inFlight.Load())
			return nil
		}),
	)
	if err != nil {
		log.Fatalf("failed to create inflight_requests gauge: %v", err)
	}
}

func recordDispatched(keys int) {
	batchesDispatched.Add(context.Background(), 1)
	keysDispatched.Add(context.Background(), int64(keys))
}

func recordBatchFailure() {
	batchFailures.Add(context.Background(), 1)
}

func recordCacheHit() {
	cacheHits.Add(context.Background(), 1)
}

func recordCacheMiss() {
	cacheMisses.Add(context.Background(), 1)
}

func recordUnmatchedKey() {
	unmatchedKeys.Add(context.Background(), 1)
}

func recordStrayResponseKey() {
	strayResponseKeys.Add(context.Background(), 1)
}
