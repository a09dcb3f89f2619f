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
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/cardinalhq/batchlookup/future"
	"github.com/cardinalhq/batchlookup/internal/logctx"
)

// SingleConfig fixes the shape of a per-element (non-batched) lookup stage.
type SingleConfig[In, V, C any] struct {
	// MaxPendingRequests caps concurrently outstanding lookups.
	MaxPendingRequests int

	// IDExtractorFn derives the deduplication and cache key of an element.
	// A returned error or empty key is fatal to the unit.
	IDExtractorFn func(In) (string, error)

	// Lookup starts one asynchronous lookup on the external client.
	Lookup func(ctx context.Context, client C, input In) *future.Future[V]
}

func (c *SingleConfig[In, V, C]) validate() error {
	if c.MaxPendingRequests <= 0 {
		return errors.New("lookup: MaxPendingRequests must be positive")
	}
	if c.IDExtractorFn == nil {
		return errors.New("lookup: IDExtractorFn is required")
	}
	if c.Lookup == nil {
		return errors.New("lookup: Lookup is required")
	}
	return nil
}

// SingleStage resolves elements one key at a time. Elements sharing a key
// with an in-flight lookup collapse onto it and share its outcome; the
// lifecycle, caching, permit, and accounting rules match BatchStage.
type SingleStage[In, V, C any] struct {
	cfg SingleConfig[In, V, C]
	res *Resource[C, V]

	phase       stagePhase
	inputCount  int64
	outputCount int64
	permits     *permitPool

	unit *unitState[In, V, V]

	inFlight atomic.Int64
}

// NewSingleStage validates cfg and creates a stage bound to the worker
// resource. The stage starts idle; call Begin before the first Process.
func NewSingleStage[In, V, C any](res *Resource[C, V], cfg SingleConfig[In, V, C]) (*SingleStage[In, V, C], error) {
	if res == nil {
		return nil, errors.New("lookup: resource is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s := &SingleStage[In, V, C]{
		cfg:  cfg,
		res:  res,
		unit: newUnitState[In, V, V](),
	}
	registerInFlightGauge(&s.inFlight)
	return s, nil
}

// Begin starts a processing unit, discarding all per-unit state and
// restoring the permit pool to full capacity.
func (s *SingleStage[In, V, C]) Begin() {
	s.unit = newUnitState[In, V, V]()
	s.inputCount = 0
	s.outputCount = 0
	s.permits = newPermitPool(s.cfg.MaxPendingRequests)
	s.phase = phaseActive
}

// Process ingests one element. A cache hit resolves it immediately; a key
// with an in-flight lookup gains an extra waiter; otherwise a new lookup is
// dispatched under a permit.
func (s *SingleStage[In, V, C]) Process(ctx context.Context, input In, meta any, emit Emit[In, V]) error {
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
		return s.dispatch(ctx, id, input)
	}
	// Collapsed onto the in-flight lookup for this key.
	return nil
}

// Finish blocks until every outstanding lookup has completed, drains all
// remaining results, and verifies the input/output accounting.
func (s *SingleStage[In, V, C]) Finish(ctx context.Context, emit Emit[In, V]) error {
	if s.phase != phaseActive {
		return ErrStageState
	}
	s.phase = phaseDraining

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
func (s *SingleStage[In, V, C]) Counts() (inputs, outputs int64) {
	return s.inputCount, s.outputCount
}

func (s *SingleStage[In, V, C]) dispatch(ctx context.Context, id string, input In) error {
	st := s.unit

	if err := s.permits.acquire(ctx); err != nil {
		return err
	}

	fut := s.cfg.Lookup(ctx, s.res.Client, input)
	token := uuid.New()
	s.inFlight.Add(1)
	recordDispatched(1)

	fut.OnComplete(func(v V) {
		s.res.Cache.Put(id, v)
	}, nil)

	pool := s.permits
	released := fut.OnComplete(
		func(V) {
			s.inFlight.Add(-1)
			pool.release()
		},
		func(error) {
			s.inFlight.Add(-1)
			pool.release()
		},
	)

	log := logctx.Component(ctx, "singlelookup")
	tracked := released.OnComplete(
		func(v V) {
			occs := st.takeOccurrences(id)
			if occs == nil {
				log.Error("no buffered occurrences for completed lookup; the finish accounting check will surface this",
					slog.String("key", id))
				return
			}
			group := resultGroup[In, V]{token: token}
			for _, o := range occs {
				group.results = append(group.results, Result[In, V]{Input: o.input, Meta: o.meta, Outcome: Success(v)})
			}
			st.push(group)
		},
		func(cause error) {
			recordBatchFailure()
			occs := st.takeOccurrences(id)
			if occs == nil {
				log.Error("no buffered occurrences for failed lookup",
					slog.String("key", id))
				return
			}
			group := resultGroup[In, V]{token: token}
			for _, o := range occs {
				group.results = append(group.results, Result[In, V]{Input: o.input, Meta: o.meta, Outcome: Failure[V](cause)})
			}
			st.push(group)
		},
	)
	st.track(token, tracked)
	return nil
}

func (s *SingleStage[In, V, C]) drain(emit Emit[In, V]) {
	s.outputCount += drainQueue(s.unit, emit)
}
