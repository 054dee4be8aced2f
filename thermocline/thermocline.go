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

// Package thermocline implements the supplemental subset command described
// in original_source/extractThermocline.py: given a contiguous range of
// depth levels to keep, it copies the matching row range out of a
// converted matrix and its metadata into a smaller dataset. It is not part
// of the distributed converter's core; it runs single-process, streaming
// row chunks rather than holding the whole matrix in memory.
package thermocline

import (
	"fmt"

	"github.com/oceangrid/gridconv/metadata"
	"github.com/oceangrid/gridconv/output"
)

// streamRows is the number of output rows copied per ReadRows/WriteTile
// round trip.
const streamRows = 4096

// KeepRange returns the contiguous [start, end) row range whose
// observedLevelNumbers fall within [levelsToKeep[0], levelsToKeep[1]),
// matching extractThermocline.py's "the code assumes the levels kept form
// a contiguous submatrix" assumption. It errors if the matching rows are
// not in fact contiguous, since nothing downstream of this command can
// safely subset a non-contiguous set with a single row-range copy.
func KeepRange(observedLevelNumbers []int32, levelsToKeep [2]int) (start, end int, err error) {
	start, end = -1, -1
	for i, lvl := range observedLevelNumbers {
		keep := int(lvl) >= levelsToKeep[0] && int(lvl) < levelsToKeep[1]
		switch {
		case keep && start == -1:
			start = i
			end = i + 1
		case keep && start != -1:
			if i != end {
				return 0, 0, fmt.Errorf("thermocline: rows matching levels %v are not contiguous", levelsToKeep)
			}
			end = i + 1
		case !keep && start != -1 && i < end:
			return 0, 0, fmt.Errorf("thermocline: rows matching levels %v are not contiguous", levelsToKeep)
		}
	}
	if start == -1 {
		return 0, 0, fmt.Errorf("thermocline: no rows match levels %v", levelsToKeep)
	}
	return start, end, nil
}

// Subset streams rows [start, end) of inPath into a freshly created
// outPath via backend, and writes the corresponding filtered metadata
// archive to metadataOutDir.
func Subset(backend output.Backend, inPath, outPath string, numCols int, start, end int, full *metadata.Archive, metadataOutDir string) error {
	in, err := backend.Open(inPath)
	if err != nil {
		return fmt.Errorf("thermocline: %w", err)
	}
	defer in.Close()

	numRows := end - start
	if err := backend.Create(outPath, numRows, numCols); err != nil {
		return fmt.Errorf("thermocline: %w", err)
	}

	for r := start; r < end; r += streamRows {
		chunkEnd := r + streamRows
		if chunkEnd > end {
			chunkEnd = end
		}
		tile, err := in.ReadRows(r, chunkEnd, numCols)
		if err != nil {
			return fmt.Errorf("thermocline: %w", err)
		}
		if err := backend.WriteTile(outPath, r-start, tile); err != nil {
			return fmt.Errorf("thermocline: %w", err)
		}
	}
	if err := backend.Close(outPath); err != nil {
		return fmt.Errorf("thermocline: %w", err)
	}

	filtered := &metadata.Archive{
		ObservedLonCoords:    full.ObservedLonCoords[start:end],
		ObservedLatCoords:    full.ObservedLatCoords[start:end],
		ObservedLevelNumbers: full.ObservedLevelNumbers[start:end],
		ObservedLocations:    full.ObservedLocations[start:end],
	}
	if err := metadata.Write(metadataOutDir, filtered); err != nil {
		return fmt.Errorf("thermocline: %w", err)
	}
	return nil
}
