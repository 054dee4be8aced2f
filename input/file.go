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

// Package input reads one input grid file per this converter's grid data model:
// a four-dimensional (time, level, lat, lon) float variable, a timestamp
// vector, and axis coordinate vectors. Files are netCDF-classic, read with
// github.com/ctessum/cdf -- the same library InMAP's own preprocessors
// (wrf2inmap/preproc.go, preproc.go) use to stream WRF and GEOS-Chem grids.
package input

import (
	"fmt"
	"os"

	"github.com/ctessum/cdf"

	"github.com/oceangrid/gridconv/matbuf"
)

// Grid is the interface the rest of the converter depends on. The real
// implementation, File, wraps a *cdf.File; internal/testgrid provides an
// in-memory fake satisfying the same interface for unit tests, so tests
// never need a real .nc fixture on disk.
type Grid interface {
	// Name identifies the file for diagnostics (usually its path).
	Name() string
	// NumTimeSlices returns the file's time-axis length for varName.
	NumTimeSlices(varName string) (int, error)
	// ReadLevelBlock reads the (T_f x H*W) raw block for varName at the
	// given depth level, row-major by time then flattened (lat, lon).
	ReadLevelBlock(varName string, level, numLats, numLons int) (*matbuf.DenseF32, error)
	// Mask returns the missing-cell mask (length H*W, true = missing) for
	// varName at the given level and time slice.
	Mask(varName string, level, timeSlice, numLats, numLons int) ([]bool, error)
	// Timestamps returns the file's timestamp vector.
	Timestamps(timeVarName string) ([]int64, error)
	// Coords returns the lat, lon and level axis coordinate vectors, when
	// present in the file.
	Coords() (lat, lon []float64, levels []int, err error)
	Close() error
}

// File is a Grid backed by a netCDF-classic file opened through
// github.com/ctessum/cdf.
type File struct {
	path string
	raw  *os.File
	cdf  *cdf.File
}

// Open opens path for reading and parses its netCDF header.
func Open(path string) (*File, error) {
	raw, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("input: opening %s: %w", path, err)
	}
	f, err := cdf.Open(raw)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("input: reading header of %s: %w", path, err)
	}
	return &File{path: path, raw: raw, cdf: f}, nil
}

func (f *File) Name() string { return f.path }

// NumTimeSlices returns the length of the record (time) dimension for
// varName. netCDF-classic record variables report a header length of 0;
// the true count is derived from the file size the way cdf.UpdateNumRecs
// does when writing.
func (f *File) NumTimeSlices(varName string) (int, error) {
	dims := f.cdf.Header.Lengths(varName)
	if len(dims) == 0 {
		return 0, fmt.Errorf("input: %s: variable %q not found", f.path, varName)
	}
	if dims[0] > 0 {
		return dims[0], nil
	}
	fi, err := f.raw.Stat()
	if err != nil {
		return 0, fmt.Errorf("input: %s: stat: %w", f.path, err)
	}
	return int(f.cdf.Header.NumRecs(fi.Size())), nil
}

// ReadLevelBlock reads the (T_f x numLats*numLons) slab for varName at the
// given depth level, following the same begin/end hyperslab pattern
// wrf2inmap/preproc.go's readNCF uses.
func (f *File) ReadLevelBlock(varName string, level, numLats, numLons int) (*matbuf.DenseF32, error) {
	tLen, err := f.NumTimeSlices(varName)
	if err != nil {
		return nil, err
	}
	if tLen == 0 {
		return matbuf.Zeros(0, numLats*numLons), nil
	}
	start := []int{0, level, 0, 0}
	end := []int{tLen, level + 1, numLats, numLons}
	r := f.cdf.Reader(varName, start, end)
	if r == nil {
		return nil, fmt.Errorf("input: %s: variable %q not found", f.path, varName)
	}
	buf := r.Zero(tLen * numLats * numLons)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("input: %s: reading level %d of %q: %w", f.path, level, varName, err)
	}
	vals, ok := buf.([]float32)
	if !ok {
		return nil, fmt.Errorf("input: %s: variable %q is not a float32 field", f.path, varName)
	}
	return &matbuf.DenseF32{Elements: vals, Rows: tLen, Cols: numLats * numLons}, nil
}

// Mask reports, for each flattened (lat, lon) cell, whether the variable's
// value at (timeSlice, level) equals the file's fill value -- the
// netCDF-classic convention for "missing", in place of the masked-array
// wrapper the original Python program got for free from netCDF4+numpy.
func (f *File) Mask(varName string, level, timeSlice, numLats, numLons int) ([]bool, error) {
	start := []int{timeSlice, level, 0, 0}
	end := []int{timeSlice + 1, level + 1, numLats, numLons}
	r := f.cdf.Reader(varName, start, end)
	if r == nil {
		return nil, fmt.Errorf("input: %s: variable %q not found", f.path, varName)
	}
	buf := r.Zero(numLats * numLons)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("input: %s: reading mask slice: %w", f.path, err)
	}
	vals, ok := buf.([]float32)
	if !ok {
		return nil, fmt.Errorf("input: %s: variable %q is not a float32 field", f.path, varName)
	}
	fill, _ := f.cdf.Header.FillValue(varName).(float32)
	mask := make([]bool, len(vals))
	for i, v := range vals {
		mask[i] = v == fill
	}
	return mask, nil
}

// Timestamps returns the file's timestamp vector, read whole.
func (f *File) Timestamps(timeVarName string) ([]int64, error) {
	dims := f.cdf.Header.Lengths(timeVarName)
	if len(dims) == 0 {
		return nil, fmt.Errorf("input: %s: timestamp variable %q not found", f.path, timeVarName)
	}
	n, err := f.NumTimeSlices(timeVarName)
	if err != nil {
		// timeVarName may not itself be a record variable; fall back to
		// its own declared length.
		n = dims[0]
	}
	r := f.cdf.Reader(timeVarName, []int{0}, []int{n})
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("input: %s: reading timestamps: %w", f.path, err)
	}
	out := make([]int64, n)
	switch vals := buf.(type) {
	case []int32:
		for i, v := range vals {
			out[i] = int64(v)
		}
	case []float64:
		for i, v := range vals {
			out[i] = int64(v)
		}
	case []float32:
		for i, v := range vals {
			out[i] = int64(v)
		}
	default:
		return nil, fmt.Errorf("input: %s: unsupported timestamp element type %T", f.path, buf)
	}
	return out, nil
}

// Coords reads the lat, lon and level0 axis coordinate vectors, used by
// the metadata coordinate join.
func (f *File) Coords() (lat, lon []float64, levels []int, err error) {
	lat, err = f.readFloatAxis("lat")
	if err != nil {
		return nil, nil, nil, err
	}
	lon, err = f.readFloatAxis("lon")
	if err != nil {
		return nil, nil, nil, err
	}
	levelF, err := f.readFloatAxis("level0")
	if err != nil {
		return nil, nil, nil, err
	}
	levels = make([]int, len(levelF))
	for i, v := range levelF {
		levels[i] = int(v)
	}
	return lat, lon, levels, nil
}

func (f *File) readFloatAxis(name string) ([]float64, error) {
	dims := f.cdf.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("input: %s: axis %q not found", f.path, name)
	}
	n := dims[0]
	r := f.cdf.Reader(name, []int{0}, []int{n})
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("input: %s: reading axis %q: %w", f.path, name, err)
	}
	out := make([]float64, n)
	switch vals := buf.(type) {
	case []float64:
		copy(out, vals)
	case []float32:
		for i, v := range vals {
			out[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("input: %s: unsupported axis element type %T", f.path, buf)
	}
	return out, nil
}

// Close closes the underlying OS file handle.
func (f *File) Close() error { return f.raw.Close() }
