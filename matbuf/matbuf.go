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

// Package matbuf provides the flat, explicitly-typed dense buffers used
// throughout the converter: level slabs, gather send/receive buffers, and
// output write tiles. All of them are two-dimensional float32 arrays, so
// a single type suffices instead of the general N-dimensional, interface
// based array hierarchy used elsewhere in the grid-processing world (see
// ctessum/sparse.DenseArray, which this type's API is modeled on).
package matbuf

import "fmt"

// DenseF32 is a row-major dense 2-D array of float32 values. It plays the
// same role that sparse.DenseArray plays for the preprocessors this package
// is descended from, but is specialized to float32 (the output matrix's
// on-disk element type) and to exactly two dimensions, since nothing in
// this pipeline ever needs a third.
type DenseF32 struct {
	Elements []float32
	Rows     int
	Cols     int
}

// Zeros allocates a new rows x cols array initialized to zero.
func Zeros(rows, cols int) *DenseF32 {
	return &DenseF32{
		Elements: make([]float32, rows*cols),
		Rows:     rows,
		Cols:     cols,
	}
}

// Fix re-derives nothing (Rows/Cols are exported directly, unlike
// sparse.DenseArray's computed ndims/arrsize) but is kept for symmetry with
// values that cross process or RPC boundaries and need their invariants
// checked after transport.
func (d *DenseF32) Fix() error {
	if len(d.Elements) != d.Rows*d.Cols {
		return fmt.Errorf("matbuf: shape (%d, %d) does not match %d elements", d.Rows, d.Cols, len(d.Elements))
	}
	return nil
}

func (d *DenseF32) index(r, c int) int {
	if r < 0 || r >= d.Rows || c < 0 || c >= d.Cols {
		panic(fmt.Sprintf("matbuf: index (%d, %d) out of bounds for shape (%d, %d)", r, c, d.Rows, d.Cols))
	}
	return r*d.Cols + c
}

// Get returns the value at (row, col).
func (d *DenseF32) Get(r, c int) float32 { return d.Elements[d.index(r, c)] }

// Set stores val at (row, col).
func (d *DenseF32) Set(r, c int, val float32) { d.Elements[d.index(r, c)] = val }

// Row returns the backing slice for row r, without copying.
func (d *DenseF32) Row(r int) []float32 {
	start := d.index(r, 0)
	return d.Elements[start : start+d.Cols]
}

// SubRows returns a new DenseF32 sharing no memory with d, containing rows
// [start, end).
func (d *DenseF32) SubRows(start, end int) *DenseF32 {
	out := Zeros(end-start, d.Cols)
	copy(out.Elements, d.Elements[start*d.Cols:end*d.Cols])
	return out
}

// PasteColumns copies src into d at column offset colOffset, across all
// rows. src must have the same row count as d.
func (d *DenseF32) PasteColumns(src *DenseF32, colOffset int) {
	if src.Rows != d.Rows {
		panic(fmt.Sprintf("matbuf: PasteColumns row mismatch: dst has %d rows, src has %d", d.Rows, src.Rows))
	}
	for r := 0; r < d.Rows; r++ {
		copy(d.Row(r)[colOffset:colOffset+src.Cols], src.Row(r))
	}
}
