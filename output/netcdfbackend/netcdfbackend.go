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

// Package netcdfbackend is the default output.Backend, writing the dense
// matrix as a single two-dimensional netCDF-classic variable via
// github.com/ctessum/cdf -- the same library the rest of the module reads
// input grids with.
package netcdfbackend

import (
	"fmt"
	"os"
	"sync"

	"github.com/ctessum/cdf"

	"github.com/oceangrid/gridconv/matbuf"
	"github.com/oceangrid/gridconv/output"
)

const varName = "rows"

// Backend is a stateful output.Backend: it keeps each dataset's file
// handle open across repeated WriteTile calls (one per level's row
// chunks) rather than reopening the file every call.
type Backend struct {
	mu         sync.Mutex
	open       map[string]*handle
	stripeSize int64
}

type handle struct {
	raw *os.File
	f   *cdf.File
}

// New returns a ready-to-use Backend. stripeSize, when positive, is the
// parallel filesystem's stripe width (e.g. Lustre's lfs getstripe -d
// size, or a GPFS block group size): Create rounds the dataset's initial
// extent up to the next multiple of it, so the header and first data
// block land stripe-aligned instead of spanning a stripe boundary. 0
// disables the rounding.
func New(stripeSize int64) *Backend {
	return &Backend{open: make(map[string]*handle), stripeSize: stripeSize}
}

// Create allocates the dataset's header and defines it without filling,
// matching cdf.Create's behavior of never writing fill values -- the
// closest available analogue to the storage library's fill-time-never
// option downstream consumers expect.
func (b *Backend) Create(path string, numRows, numCols int) error {
	h := cdf.NewHeader(
		[]string{"rows", "cols"},
		[]int{numRows, numCols},
	)
	h.AddVariable(varName, []string{"rows", "cols"}, []float32{})
	h.Define()

	raw, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("netcdfbackend: create %s: %w", path, err)
	}
	f, err := cdf.Create(raw, h)
	if err != nil {
		raw.Close()
		return fmt.Errorf("netcdfbackend: create %s: %w", path, err)
	}

	if b.stripeSize > 0 {
		if err := alignToStripe(raw, b.stripeSize); err != nil {
			raw.Close()
			return fmt.Errorf("netcdfbackend: create %s: %w", path, err)
		}
	}

	b.mu.Lock()
	b.open[path] = &handle{raw: raw, f: f}
	b.mu.Unlock()
	return nil
}

// alignToStripe rounds raw's current extent up to the next multiple of
// stripeSize with Truncate. cdf.Create has already grown the file to the
// header plus the (unfilled) data region; syscall.Fallocate would reserve
// the same space without the content guarantees classic-format readers
// expect from Truncate, and neither cdf nor the rest of the pack expose
// ioctl-level striping control, so this is the closest available
// preallocation stand-in.
func alignToStripe(raw *os.File, stripeSize int64) error {
	info, err := raw.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	aligned := ((size + stripeSize - 1) / stripeSize) * stripeSize
	if aligned == size {
		return nil
	}
	return raw.Truncate(aligned)
}

func (b *Backend) get(path string) (*handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.open[path]
	if ok {
		return h, nil
	}
	raw, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("netcdfbackend: reopen %s: %w", path, err)
	}
	f, err := cdf.Open(raw)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("netcdfbackend: reopen %s: %w", path, err)
	}
	h = &handle{raw: raw, f: f}
	b.open[path] = h
	return h, nil
}

// WriteTile writes tile at output rows [rowStart, rowStart+tile.Rows),
// all columns, via a single strided hyperslab write.
func (b *Backend) WriteTile(path string, rowStart int, tile *matbuf.DenseF32) error {
	h, err := b.get(path)
	if err != nil {
		return err
	}
	begin := []int{rowStart, 0}
	end := []int{rowStart + tile.Rows, tile.Cols}
	w := h.f.Writer(varName, begin, end)
	if w == nil {
		return fmt.Errorf("netcdfbackend: %s: variable %q not found", path, varName)
	}
	if _, err := w.Write(tile.Elements); err != nil {
		return fmt.Errorf("netcdfbackend: %s: writing rows [%d,%d): %w", path, rowStart, rowStart+tile.Rows, err)
	}
	return nil
}

// Close flushes and closes the dataset's file handle.
func (b *Backend) Close(path string) error {
	b.mu.Lock()
	h, ok := b.open[path]
	delete(b.open, path)
	b.mu.Unlock()
	if !ok {
		return nil
	}
	return h.raw.Close()
}

// Open reopens a previously-created dataset for reading, used by the
// thermocline subset command.
func (b *Backend) Open(path string) (output.Dataset, error) {
	raw, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("netcdfbackend: open %s: %w", path, err)
	}
	f, err := cdf.Open(raw)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("netcdfbackend: open %s: %w", path, err)
	}
	return &dataset{raw: raw, f: f}, nil
}

type dataset struct {
	raw *os.File
	f   *cdf.File
}

func (d *dataset) ReadRows(rowStart, rowEnd, numCols int) (*matbuf.DenseF32, error) {
	r := d.f.Reader(varName, []int{rowStart, 0}, []int{rowEnd, numCols})
	if r == nil {
		return nil, fmt.Errorf("netcdfbackend: variable %q not found", varName)
	}
	buf := r.Zero((rowEnd - rowStart) * numCols)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("netcdfbackend: reading rows [%d,%d): %w", rowStart, rowEnd, err)
	}
	vals, ok := buf.([]float32)
	if !ok {
		return nil, fmt.Errorf("netcdfbackend: variable %q is not float32", varName)
	}
	return &matbuf.DenseF32{Elements: vals, Rows: rowEnd - rowStart, Cols: numCols}, nil
}

func (d *dataset) Close() error { return d.raw.Close() }
