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

// Package lookup implements asynchronous, batched, deduplicated remote
// lookups for per-element pipeline stages. A stage consumes elements on a
// single ingestion goroutine, groups cache-missing elements into batches of
// distinct keys, dispatches each batch to an external async client under a
// bounded permit pool, and routes every completion back to one outcome per
// consumed element. Every unit is accounted: finish fails unless the number
// of emitted outcomes equals the number of consumed elements.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/cardinalhq/batchlookup/future"
	"github.com/cardinalhq/batchlookup/internal/logctx"
)

type stagePhase int

const (
	phaseIdle stagePhase = iota
	phaseActive
	phaseDraining
	phaseClosed
)

// Config fixes the shape of one batched lookup stage.
//
// In is the input element type, Req and Resp the aggregate request/response
// types of the remote batch call, V the looked-up value type, and C the
// client type. The three user functions must be pure and safe to call from
// async completion goroutines.
type Config[In, Req, Resp, V, C any] struct {
	// BatchSize is the maximum number of distinct keys per outbound request.
	BatchSize int

	// MaxPendingRequests caps the number of concurrently outstanding batch
	// requests. Ingestion blocks while the cap is reached.
	MaxPendingRequests int

	// BatchRequestFn builds one outbound request from a batch of
	// representative elements, one per distinct key.
	BatchRequestFn func([]In) Req

	// BatchResponseFn decomposes a response into key/value pairs.
	BatchResponseFn func(Resp) []KV[V]

	// IDExtractorFn derives the deduplication and cache key of an element.
	// A returned error or empty key is fatal to the unit.
	IDExtractorFn func(In) (string, error)

	// Lookup starts the asynchronous batch call on the external client and
	// returns its pending response.
	Lookup func(ctx context.Context, client C, req Req) *future.Future[Resp]
}

func (c *Config[In, Req, Resp, V, C]) validate() error {
	if c.BatchSize <= 0 {
		return errors.New("lookup: BatchSize must be positive")
	}
	if c.MaxPendingRequests <= 0 {
		return errors.New("lookup: MaxPendingRequests must be positive")
	}
	if c.BatchRequestFn == nil {
		return errors.New("lookup: BatchRequestFn is required")
	}
	if c.BatchResponseFn == nil {
		return errors.New("lookup: BatchResponseFn is required")
	}
	if c.IDExtractorFn == nil {
		return errors.New("lookup: IDExtractorFn is required")
	}
	if c.Lookup == nil {
		return errors.New("lookup: Lookup is required")
	}
	return nil
}

// BatchStage is the processing-unit controller for batched async lookups.
//
// Begin, Process, and Finish must be driven from a single ingestion
// goroutine; completion callbacks run concurrently on the client's
// goroutines. One stage serves many sequential units against the same
// worker Resource.
type BatchStage[In, Req, Resp, V, C any] struct {
	cfg Config[In, Req, Resp, V, C]
	res *Resource[C, V]

	// Ingestion-goroutine state.
	phase       stagePhase
	batch       []In
	batchIDs    []string
	inputCount  int64
	outputCount int64
	permits     *permitPool

	// Swapped wholesale at unit start. Callbacks hold the generation they
	// were dispatched under, so late completions from an abandoned unit
	// mutate only that stale generation.
	unit *unitState[In, Resp, V]

	// Gauge source. Not reset by Begin: batches abandoned mid-unit are still
	// genuinely outstanding until the client resolves them.
	inFlight atomic.Int64
}

// NewBatchStage validates cfg and creates a stage bound to the worker
// resource. The stage starts idle; call Begin before the first Process.
func NewBatchStage[In, Req, Resp, V, C any](res *Resource[C, V], cfg Config[In, Req, Resp, V, C]) (*BatchStage[In, Req, Resp, V, C], error) {
	if res == nil {
		return nil, errors.New("lookup: resource is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s := &BatchStage[In, Req, Resp, V, C]{
		cfg:  cfg,
		res:  res,
		unit: newUnitState[In, Resp, V](),
	}
	registerInFlightGauge(&s.inFlight)
	return s, nil
}

// Begin starts a processing unit. All per-unit state from a previous or
// abandoned unit is discarded and the permit pool is restored to full
// capacity, so a host retrying a failed unit always starts clean.
func (s *BatchStage[In, Req, Resp, V, C]) Begin() {
	s.unit = newUnitState[In, Resp, V]()
	s.batch = nil
	s.batchIDs = nil
	s.inputCount = 0
	s.outputCount = 0
	s.permits = newPermitPool(s.cfg.MaxPendingRequests)
	s.phase = phaseActive
}

// Process ingests one element. Results of already-completed batches are
// emitted first. A cache hit resolves the element immediately; otherwise it
// is buffered under its key, and a full batch of distinct keys triggers an
// async dispatch. The call blocks while all dispatch permits are held.
//
// meta is opaque pass-through metadata echoed on the element's result.
// Returned errors are fatal to the unit.
func (s *BatchStage[In, Req, Resp, V, C]) Process(ctx context.Context, input In, meta any, emit Emit[In, V]) error {
	if s.phase != phaseActive {
		return ErrStageState
	}
	s.inputCount++
	s.drain(emit)

	id, err := s.cfg.IDExtractorFn(input)
	if err != nil {
		return fmt.Errorf("lookup: extracting id: %w", err)
	}
	if id == "" {
		return ErrEmptyKey
	}

	if v, ok := s.res.Cache.Get(id); ok {
		recordCacheHit()
		emit(Result[In, V]{Input: input, Meta: meta, Outcome: Success(v)})
		s.outputCount++
		return nil
	}
	recordCacheMiss()

	if s.unit.addOccurrence(id, occurrence[In]{input: input, meta: meta}) {
		s.batch = append(s.batch, input)
		s.batchIDs = append(s.batchIDs, id)
	}

	if len(s.batch) >= s.cfg.BatchSize {
		return s.dispatch(ctx)
	}
	return nil
}

// Finish dispatches any partial batch, blocks until every outstanding
// request has completed, drains all remaining results, and verifies that
// every consumed element produced exactly one outcome. The join is bounded
// by ctx: a deadline or cancellation surfaces as an error, never a hang.
func (s *BatchStage[In, Req, Resp, V, C]) Finish(ctx context.Context, emit Emit[In, V]) error {
	if s.phase != phaseActive {
		return ErrStageState
	}
	s.phase = phaseDraining

	if len(s.batch) > 0 {
		if err := s.dispatch(ctx); err != nil {
			return err
		}
	}
	if outstanding := s.unit.outstanding(); len(outstanding) > 0 {
		if err := future.WaitAll(ctx, outstanding...); err != nil {
			return fmt.Errorf("lookup: waiting for in-flight requests: %w", err)
		}
	}
	s.drain(emit)
	s.phase = phaseClosed

	if s.inputCount != s.outputCount {
		return &CountMismatchError{Inputs: s.inputCount, Outputs: s.outputCount}
	}
	return nil
}

// Counts reports the elements consumed and outcomes emitted within the
// current unit. Valid on the ingestion goroutine only.
func (s *BatchStage[In, Req, Resp, V, C]) Counts() (inputs, outputs int64) {
	return s.inputCount, s.outputCount
}

// dispatch snapshots the current batch, builds the request, acquires a
// permit, starts the async call, and wires its three completion callbacks:
// cache fill, permit release, and result routing. Only the routed future is
// tracked for the finish join.
func (s *BatchStage[In, Req, Resp, V, C]) dispatch(ctx context.Context) error {
	st := s.unit
	elems := make([]In, len(s.batch))
	copy(elems, s.batch)
	ids := make([]string, len(s.batchIDs))
	copy(ids, s.batchIDs)
	req := s.cfg.BatchRequestFn(elems)

	// No release on acquisition failure: the unit is dead and the next Begin
	// rebuilds the pool at full capacity.
	if err := s.permits.acquire(ctx); err != nil {
		return err
	}

	fut := s.cfg.Lookup(ctx, s.res.Client, req)
	token := uuid.New()
	s.inFlight.Add(1)
	recordDispatched(len(ids))

	// Cache fill is fire and forget; a failed batch fills nothing.
	fut.OnComplete(func(resp Resp) {
		for _, kv := range s.cfg.BatchResponseFn(resp) {
			s.res.Cache.Put(kv.Key, kv.Value)
		}
	}, nil)

	pool := s.permits
	released := fut.OnComplete(
		func(Resp) {
			s.inFlight.Add(-1)
			pool.release()
		},
		func(error) {
			s.inFlight.Add(-1)
			pool.release()
		},
	)

	st.track(token, s.route(ctx, released, st, ids, token))

	s.batch = s.batch[:0]
	s.batchIDs = s.batchIDs[:0]
	return nil
}

// route attaches the result-routing callback, producing the tracked future.
// The callback runs on the client's completion goroutine and assumes nothing
// about the unit still being live: a missing occurrence entry is logged and
// skipped, and the finish accounting check surfaces any real loss.
func (s *BatchStage[In, Req, Resp, V, C]) route(ctx context.Context, fut *future.Future[Resp], st *unitState[In, Resp, V], ids []string, token uuid.UUID) *future.Future[Resp] {
	log := logctx.Component(ctx, "batchlookup")
	return fut.OnComplete(
		func(resp Resp) {
			requested := make(map[string]struct{}, len(ids))
			for _, id := range ids {
				requested[id] = struct{}{}
			}
			keyed := make(map[string]V, len(ids))
			for _, kv := range s.cfg.BatchResponseFn(resp) {
				if _, ok := requested[kv.Key]; !ok {
					recordStrayResponseKey()
					log.Error("batch response contains a key that was never requested",
						slog.String("key", kv.Key))
					continue
				}
				keyed[kv.Key] = kv.Value
			}

			group := resultGroup[In, V]{token: token}
			for _, id := range ids {
				occs := st.takeOccurrences(id)
				if occs == nil {
					log.Error("no buffered occurrences for requested key; the finish accounting check will surface this",
						slog.String("key", id))
					continue
				}
				value, answered := keyed[id]
				for _, o := range occs {
					out := Success(value)
					if !answered {
						recordUnmatchedKey()
						out = Failure[V](&UnmatchedKeyError{Key: id})
					}
					group.results = append(group.results, Result[In, V]{Input: o.input, Meta: o.meta, Outcome: out})
				}
			}
			st.push(group)
		},
		func(cause error) {
			recordBatchFailure()
			group := resultGroup[In, V]{token: token}
			for _, id := range ids {
				occs := st.takeOccurrences(id)
				if occs == nil {
					log.Error("no buffered occurrences for key in failed batch",
						slog.String("key", id))
					continue
				}
				for _, o := range occs {
					group.results = append(group.results, Result[In, V]{Input: o.input, Meta: o.meta, Outcome: Failure[V](cause)})
				}
			}
			st.push(group)
		},
	)
}

func (s *BatchStage[In, Req, Resp, V, C]) drain(emit Emit[In, V]) {
	s.outputCount += drainQueue(s.unit, emit)
}
