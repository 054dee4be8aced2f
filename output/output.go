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

// Package output defines the Backend abstraction for the output dataset
// creator and parallel writer. Two implementations are
// provided: netcdfbackend (the default, grounded on github.com/ctessum/cdf)
// and tiledbbackend (grounded on github.com/TileDB-Inc/TileDB-Go, as used
// in sixy6e-go-gsf's tiledb.go).
package output

import "github.com/oceangrid/gridconv/matbuf"

// Backend creates and writes to the on-disk dense matrix dataset.
type Backend interface {
	// Create allocates a new (numRows x numCols) dataset, never
	// zero-filling it -- equivalent to the storage library's
	// fill-time-never behavior.
	Create(path string, numRows, numCols int) error
	// Open reopens an existing dataset created by Create, for the
	// thermocline subset command.
	Open(path string) (Dataset, error)
	// WriteTile writes tile at output row range [rowStart, rowStart+tile.Rows)
	// and every column. Disjoint row ranges across writers never overlap,
	// so no locking is required at this layer.
	WriteTile(path string, rowStart int, tile *matbuf.DenseF32) error
	// Close finalizes the dataset after every level has been written.
	Close(path string) error
}

// Dataset is a previously created dataset, reopened for reading (used by
// the thermocline subset command to stream rows out of the full matrix).
type Dataset interface {
	ReadRows(rowStart, rowEnd, numCols int) (*matbuf.DenseF32, error)
	Close() error
}
