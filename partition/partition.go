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

// Package partition discovers the input file set and assigns it across
// ranks, then derives each rank's column census.
package partition

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/oceangrid/gridconv/comm"
)

// Discover lists every file under dir matching pattern (e.g. "*.nc"),
// sorted lexically so that every rank computes the same global file order
// without needing to communicate it.
func Discover(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("partition: discover: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Assign returns the subset of files owned by rank, using round-robin
// assignment (file i belongs to rank i mod size). Round-robin keeps each
// rank's file count balanced regardless of file-size skew and preserves a
// simple, globally-derivable global column order: rank order, then each
// rank's local file-list order.
func Assign(files []string, rank, size int) []string {
	var out []string
	for i, f := range files {
		if i%size == rank {
			out = append(out, f)
		}
	}
	return out
}

// Census is one rank's column census: its own file-time-slice column
// count, the full rank-ordered vector of every rank's column count, and
// the exclusive prefix sum used to place a rank's columns in the global
// output column order.
type Census struct {
	NumLocalCols     int
	ColsPerProcess   []int
	OutputColOffsets []int
}

// RunCensus sums numTimeSlices (as already computed per file by the
// caller) into this rank's local column count, then all-gathers every
// rank's count via AllGatherInt and derives the exclusive prefix-sum
// offsets that place each rank's columns in the global column order.
func RunCensus(g *comm.Group, rank int, localTimeSlices []int) (*Census, error) {
	local := 0
	for _, n := range localTimeSlices {
		local += n
	}
	colsPerProcess, ok := g.AllGatherInt(rank, local)
	if !ok {
		return nil, fmt.Errorf("partition: census: aborted: %w", g.Err())
	}
	offsets := make([]int, len(colsPerProcess))
	total := 0
	for i, c := range colsPerProcess {
		offsets[i] = total
		total += c
	}
	return &Census{
		NumLocalCols:     local,
		ColsPerProcess:   colsPerProcess,
		OutputColOffsets: offsets,
	}, nil
}
