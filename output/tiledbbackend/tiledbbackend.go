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

// Package tiledbbackend is an alternate output.Backend storing the dense
// matrix as a TileDB dense array, grounded on sixy6e-go-gsf's tiledb.go
// (ArrayOpen, filter construction helpers). Where that file builds sparse,
// variable-length arrays for sounding records, this backend builds the
// simplest possible dense two-dimensional array: one "rows" x "cols"
// domain, one float32 attribute, row-major tile order -- matching the
// fixed-shape, append-free access pattern the converter needs.
package tiledbbackend

import (
	"fmt"

	tiledb "github.com/TileDB-Inc/TileDB-Go"

	"github.com/oceangrid/gridconv/matbuf"
	"github.com/oceangrid/gridconv/output"
)

const attrName = "matrix"

// Backend is an output.Backend backed by TileDB. compressionLevel, as
// passed to New, controls the Zstd filter applied to the matrix
// attribute; there is no default level, and a level of 0 writes the
// attribute uncompressed.
type Backend struct {
	ctx              *tiledb.Context
	compressionLevel int32
}

// New creates a Backend with a fresh TileDB context and the given Zstd
// compression level (0 disables compression).
func New(compressionLevel int32) (*Backend, error) {
	ctx, err := tiledb.NewContext(nil)
	if err != nil {
		return nil, fmt.Errorf("tiledbbackend: new context: %w", err)
	}
	return &Backend{ctx: ctx, compressionLevel: compressionLevel}, nil
}

// Create defines and creates a dense TileDB array of the given shape.
func (b *Backend) Create(path string, numRows, numCols int) error {
	rowDim, err := tiledb.NewDimension(b.ctx, "rows", tiledb.TILEDB_INT32, []int32{0, int32(numRows - 1)}, int32(numRows))
	if err != nil {
		return fmt.Errorf("tiledbbackend: row dimension: %w", err)
	}
	colDim, err := tiledb.NewDimension(b.ctx, "cols", tiledb.TILEDB_INT32, []int32{0, int32(numCols - 1)}, int32(numCols))
	if err != nil {
		return fmt.Errorf("tiledbbackend: col dimension: %w", err)
	}

	domain, err := tiledb.NewDomain(b.ctx)
	if err != nil {
		return fmt.Errorf("tiledbbackend: domain: %w", err)
	}
	if err := domain.AddDimensions(rowDim, colDim); err != nil {
		return fmt.Errorf("tiledbbackend: domain: %w", err)
	}

	schema, err := tiledb.NewArraySchema(b.ctx, tiledb.TILEDB_DENSE)
	if err != nil {
		return fmt.Errorf("tiledbbackend: schema: %w", err)
	}
	if err := schema.SetDomain(domain); err != nil {
		return fmt.Errorf("tiledbbackend: schema: %w", err)
	}
	if err := schema.SetCellOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return fmt.Errorf("tiledbbackend: schema: %w", err)
	}
	if err := schema.SetTileOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return fmt.Errorf("tiledbbackend: schema: %w", err)
	}

	attr, err := tiledb.NewAttribute(b.ctx, attrName, tiledb.TILEDB_FLOAT32)
	if err != nil {
		return fmt.Errorf("tiledbbackend: attribute: %w", err)
	}
	if b.compressionLevel > 0 {
		filterList, err := tiledb.NewFilterList(b.ctx)
		if err != nil {
			return fmt.Errorf("tiledbbackend: filter list: %w", err)
		}
		filter, err := tiledb.NewFilter(b.ctx, tiledb.TILEDB_FILTER_ZSTD)
		if err != nil {
			return fmt.Errorf("tiledbbackend: zstd filter: %w", err)
		}
		if err := filter.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, b.compressionLevel); err != nil {
			return fmt.Errorf("tiledbbackend: zstd filter: %w", err)
		}
		if err := filterList.AddFilter(filter); err != nil {
			return fmt.Errorf("tiledbbackend: filter list: %w", err)
		}
		if err := attr.SetFilterList(filterList); err != nil {
			return fmt.Errorf("tiledbbackend: filter list: %w", err)
		}
	}
	if err := schema.AddAttributes(attr); err != nil {
		return fmt.Errorf("tiledbbackend: schema: %w", err)
	}

	array, err := tiledb.NewArray(b.ctx, path)
	if err != nil {
		return fmt.Errorf("tiledbbackend: array: %w", err)
	}
	defer array.Free()
	if err := array.Create(schema); err != nil {
		return fmt.Errorf("tiledbbackend: create %s: %w", path, err)
	}
	return nil
}

// WriteTile writes tile into output rows [rowStart, rowStart+tile.Rows)
// across every column, in one subarray write query.
func (b *Backend) WriteTile(path string, rowStart int, tile *matbuf.DenseF32) error {
	array, err := tiledb.NewArray(b.ctx, path)
	if err != nil {
		return fmt.Errorf("tiledbbackend: array: %w", err)
	}
	defer array.Free()
	if err := array.Open(tiledb.TILEDB_WRITE); err != nil {
		return fmt.Errorf("tiledbbackend: open %s: %w", path, err)
	}
	defer array.Close()

	query, err := tiledb.NewQuery(b.ctx, array)
	if err != nil {
		return fmt.Errorf("tiledbbackend: query: %w", err)
	}
	defer query.Free()
	if err := query.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return fmt.Errorf("tiledbbackend: query: %w", err)
	}
	sub := []int32{int32(rowStart), int32(rowStart + tile.Rows - 1), 0, int32(tile.Cols - 1)}
	subarray, err := array.NewSubarray()
	if err != nil {
		return fmt.Errorf("tiledbbackend: subarray: %w", err)
	}
	defer subarray.Free()
	if err := subarray.SetSubArray(sub); err != nil {
		return fmt.Errorf("tiledbbackend: subarray: %w", err)
	}
	if err := query.SetSubarray(subarray); err != nil {
		return fmt.Errorf("tiledbbackend: query: %w", err)
	}
	if _, err := query.SetDataBuffer(attrName, tile.Elements); err != nil {
		return fmt.Errorf("tiledbbackend: query: %w", err)
	}
	if err := query.Submit(); err != nil {
		return fmt.Errorf("tiledbbackend: submit write at row %d: %w", rowStart, err)
	}
	return nil
}

// Close is a no-op: TileDB arrays are opened and closed per query rather
// than held open across the run.
func (b *Backend) Close(path string) error { return nil }

// Open reopens a dataset for reading, used by the thermocline subset
// command.
func (b *Backend) Open(path string) (output.Dataset, error) {
	array, err := tiledb.NewArray(b.ctx, path)
	if err != nil {
		return nil, fmt.Errorf("tiledbbackend: array: %w", err)
	}
	if err := array.Open(tiledb.TILEDB_READ); err != nil {
		array.Free()
		return nil, fmt.Errorf("tiledbbackend: open %s: %w", path, err)
	}
	return &dataset{ctx: b.ctx, array: array}, nil
}

type dataset struct {
	ctx   *tiledb.Context
	array *tiledb.Array
}

func (d *dataset) ReadRows(rowStart, rowEnd, numCols int) (*matbuf.DenseF32, error) {
	query, err := tiledb.NewQuery(d.ctx, d.array)
	if err != nil {
		return nil, fmt.Errorf("tiledbbackend: query: %w", err)
	}
	defer query.Free()
	if err := query.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, fmt.Errorf("tiledbbackend: query: %w", err)
	}
	sub := []int32{int32(rowStart), int32(rowEnd - 1), 0, int32(numCols - 1)}
	subarray, err := d.array.NewSubarray()
	if err != nil {
		return nil, fmt.Errorf("tiledbbackend: subarray: %w", err)
	}
	defer subarray.Free()
	if err := subarray.SetSubArray(sub); err != nil {
		return nil, fmt.Errorf("tiledbbackend: subarray: %w", err)
	}
	if err := query.SetSubarray(subarray); err != nil {
		return nil, fmt.Errorf("tiledbbackend: query: %w", err)
	}
	buf := make([]float32, (rowEnd-rowStart)*numCols)
	if _, err := query.SetDataBuffer(attrName, buf); err != nil {
		return nil, fmt.Errorf("tiledbbackend: query: %w", err)
	}
	if err := query.Submit(); err != nil {
		return nil, fmt.Errorf("tiledbbackend: submit read rows [%d,%d): %w", rowStart, rowEnd, err)
	}
	return &matbuf.DenseF32{Elements: buf, Rows: rowEnd - rowStart, Cols: numCols}, nil
}

func (d *dataset) Close() error {
	err := d.array.Close()
	d.array.Free()
	return err
}
