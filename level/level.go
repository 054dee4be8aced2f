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

// Package level implements the level loader: for one depth
// level, it reads every locally-held file's slab, applies the reference
// mask, and pastes the result into a per-rank (observed-cells x
// localCols) buffer.
package level

import (
	"fmt"
	"log"

	"github.com/oceangrid/gridconv/comm"
	"github.com/oceangrid/gridconv/config"
	"github.com/oceangrid/gridconv/input"
	"github.com/oceangrid/gridconv/mask"
	"github.com/oceangrid/gridconv/matbuf"
)

// FileSpec pairs a file with the expected column count the census already
// recorded for it, so a short read at this particular level can be
// detected and handled per the configured AnomalyPolicy.
type FileSpec struct {
	File     input.Grid
	Expected int
}

// Load reads the level-ℓ slab from every entry in files, masks it down to
// the observed cells, and pastes each file's columns into a single
// (numObserved x sum(Expected)) buffer in file-list order -- the
// column-ordering invariant (rank order, then file-list order). Reads are fanned out across a
// bounded worker pool (comm.RunPool), since per-file reads are independent
// I/O.
func Load(logger *log.Logger, readConcurrency int, files []FileSpec, varName string, lvl int, ref *mask.Mask, policy config.AnomalyPolicy, numLats, numLons int) (*matbuf.DenseF32, error) {
	observed := ref.Observed()
	numObserved := len(observed)

	totalCols := 0
	colOffsets := make([]int, len(files))
	for i, fs := range files {
		colOffsets[i] = totalCols
		totalCols += fs.Expected
	}

	out := matbuf.Zeros(numObserved, totalCols)

	err := comm.RunPool(readConcurrency, len(files), func(i int) error {
		fs := files[i]
		block, err := fs.File.ReadLevelBlock(varName, lvl, numLats, numLons)
		if err != nil {
			return fmt.Errorf("level: %s: %w", fs.File.Name(), err)
		}

		actualT := block.Rows
		if actualT < fs.Expected {
			logger.Printf("warning: %s: level %d: expected %d time slices, got %d; applying %s anomaly policy",
				fs.File.Name(), lvl, fs.Expected, actualT, policy)
		}

		src := matbuf.Zeros(numObserved, fs.Expected)
		for row, flat := range observed {
			for t := 0; t < fs.Expected; t++ {
				var v float32
				switch {
				case t < actualT:
					v = block.Get(t, int(flat))
				case policy == config.AnomalyReplicateFirst && actualT > 0:
					v = block.Get(0, int(flat))
				default: // AnomalyZeroFill, or actualT == 0
					v = 0
				}
				src.Set(row, t, v)
			}
		}
		out.PasteColumns(src, colOffsets[i])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
