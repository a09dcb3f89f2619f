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
	"sync"

	"github.com/google/uuid"

	"github.com/cardinalhq/batchlookup/future"
)

// occurrence is one buffered input element with its pass-through metadata.
type occurrence[In any] struct {
	input In
	meta  any
}

// resultGroup is the routed output of one completed dispatch, tagged by its
// dispatch token.
type resultGroup[In, V any] struct {
	token   uuid.UUID
	results []Result[In, V]
}

// unitState holds everything owned by one processing unit that async
// completion callbacks touch: the occurrence index, the in-flight future set,
// and the result queue. Begin swaps in a fresh generation; callbacks from an
// abandoned unit keep operating on the old generation harmlessly.
//
// F is the payload type of the tracked futures: the batch response for the
// batch stage, the looked-up value for the single stage.
type unitState[In, F, V any] struct {
	mu          sync.Mutex
	occurrences map[string][]occurrence[In]
	futures     map[uuid.UUID]*future.Future[F]
	queue       []resultGroup[In, V]
}

func newUnitState[In, F, V any]() *unitState[In, F, V] {
	return &unitState[In, F, V]{
		occurrences: make(map[string][]occurrence[In]),
		futures:     make(map[uuid.UUID]*future.Future[F]),
	}
}

// addOccurrence buffers one element under its key and reports whether the key
// is new to the pending window. A key that is already pending or in-flight
// collapses onto the existing entry.
func (s *unitState[In, F, V]) addOccurrence(key string, occ occurrence[In]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.occurrences[key]
	s.occurrences[key] = append(existing, occ)
	return !ok
}

// takeOccurrences removes and returns every buffered occurrence for key, in
// arrival order. Returns nil when the key has no entry.
func (s *unitState[In, F, V]) takeOccurrences(key string) []occurrence[In] {
	s.mu.Lock()
	defer s.mu.Unlock()
	occs := s.occurrences[key]
	delete(s.occurrences, key)
	return occs
}

func (s *unitState[In, F, V]) track(token uuid.UUID, f *future.Future[F]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.futures[token] = f
}

func (s *unitState[In, F, V]) untrack(token uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.futures, token)
}

// outstanding snapshots the tracked in-flight futures for the finish join.
func (s *unitState[In, F, V]) outstanding() []*future.Future[F] {
	s.mu.Lock()
	defer s.mu.Unlock()
	futs := make([]*future.Future[F], 0, len(s.futures))
	for _, f := range s.futures {
		futs = append(futs, f)
	}
	return futs
}

func (s *unitState[In, F, V]) push(g resultGroup[In, V]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, g)
}

func (s *unitState[In, F, V]) pop() (resultGroup[In, V], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return resultGroup[In, V]{}, false
	}
	g := s.queue[0]
	s.queue = s.queue[1:]
	return g, true
}

// drainQueue empties the result queue, emitting every routed pair and
// retiring the owning dispatch tokens. Returns the number of pairs emitted.
func drainQueue[In, F, V any](st *unitState[In, F, V], emit Emit[In, V]) int64 {
	var emitted int64
	for {
		g, ok := st.pop()
		if !ok {
			return emitted
		}
		for _, r := range g.results {
			emit(r)
		}
		emitted += int64(len(g.results))
		st.untrack(g.token)
	}
}
