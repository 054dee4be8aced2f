/*
Copyright © 2024 the gridconv authors.
This file is part of gridconv.

gridconv is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gridconv is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gridconv.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package mask derives and cross-checks the reference observed/missing mask
// for one depth level. The mask fixes which flattened (lat, lon)
// cells are rows in the output matrix; every file is expected to agree on it
// at a given level, which is the thing verify mode exists to check.
package mask

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/oceangrid/gridconv/input"
)

// Mask records, per flattened (lat, lon) cell, whether the cell is missing
// at a given depth level. Observed() is memoized since it is read once per
// level and reused by every downstream component (census, loader,
// redistributor, metadata).
type Mask struct {
	Missing  []bool
	observed []int32
}

// New wraps a raw per-cell missing vector.
func New(missing []bool) *Mask {
	return &Mask{Missing: missing}
}

// Observed returns the flattened indices of non-missing cells, in ascending
// order -- this ascending mask-flat-index order is the row order within a
// level.
func (m *Mask) Observed() []int32 {
	if m.observed != nil {
		return m.observed
	}
	out := make([]int32, 0, len(m.Missing))
	for i, miss := range m.Missing {
		if !miss {
			out = append(out, int32(i))
		}
	}
	m.observed = out
	return out
}

// NumObserved returns len(Observed()) without forcing allocation twice.
func (m *Mask) NumObserved() int {
	return len(m.Observed())
}

// MissingFlatIndices returns the flattened indices of missing cells, the
// inverse of Observed -- this is the missingLocations array the metadata
// emitter writes.
func (m *Mask) MissingFlatIndices() []int32 {
	out := make([]int32, 0)
	for i, miss := range m.Missing {
		if miss {
			out = append(out, int32(i))
		}
	}
	return out
}

// Reference derives the mask for level from one file, using its first time
// slice as the canonical slab, matching original_source/simplified.py's use
// of the first file's first time step to seed the reference mask.
func Reference(f input.Grid, varName string, level, numLats, numLons int) (*Mask, error) {
	missing, err := f.Mask(varName, level, 0, numLats, numLons)
	if err != nil {
		return nil, fmt.Errorf("mask: reference from %s: %w", f.Name(), err)
	}
	return New(missing), nil
}

// Digest returns a stable fingerprint of the mask suitable for the verify
// relay: two masks with equal Digest are considered identical without
// shipping the full bool vector between ranks.
func (m *Mask) Digest() string {
	h := sha256.New()
	buf := make([]byte, 8)
	for i, miss := range m.Missing {
		if miss {
			binary.LittleEndian.PutUint64(buf, uint64(i))
			h.Write(buf)
		}
	}
	return string(h.Sum(nil))
}
