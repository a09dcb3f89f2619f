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
	"errors"
	"fmt"
)

var (
	// ErrStageState is returned when Process or Finish is called on a stage
	// that is not in an active unit.
	ErrStageState = errors.New("lookup: stage is not in an active processing unit")

	// ErrEmptyKey is returned when the id extractor produces an empty key.
	ErrEmptyKey = errors.New("lookup: id extractor returned an empty key")
)

// UnmatchedKeyError marks an occurrence whose key was sent in a batch request
// but missing from the response. This is a contract violation by the remote
// service; it fails only the affected occurrences, never the whole batch.
type UnmatchedKeyError struct {
	Key string
}

func (e *UnmatchedKeyError) Error() string {
	return fmt.Sprintf("lookup: batch response has no value for requested key %q", e.Key)
}

// CountMismatchError is returned by Finish when the number of emitted
// outcomes does not equal the number of consumed elements. It signals a logic
// defect (or a misbehaving client that was logged earlier), not a transient
// fault; the host may retry the whole unit.
type CountMismatchError struct {
	Inputs  int64
	Outputs int64
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("lookup: consumed %d elements but emitted %d outcomes", e.Inputs, e.Outputs)
}
