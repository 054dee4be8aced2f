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

// Package testgrid provides an in-memory fake satisfying input.Grid, so
// packages built on top of input can be tested without a real netCDF
// fixture on disk. The fake is plain data plumbing: no file I/O, no cdf
// dependency.
package testgrid

import (
	"fmt"

	"github.com/oceangrid/gridconv/matbuf"
)

// Grid is a synthetic in-memory stand-in for *input.File. Values is indexed
// [varName][level][time*numLats*numLons + lat*numLons + lon]; any entry equal to
// FillValue is treated as missing, mirroring the real file's fill-value
// convention.
type Grid struct {
	NameV      string
	NumLats    int
	NumLons    int
	FillValue  float32
	Values     map[string][][]float32 // varName -> level -> flattened (time-major) values
	Stamps     map[string][]int64
	Lat        []float64
	Lon        []float64
	Levels     []int
}

// New builds an empty fake grid ready to have levels populated via SetLevel.
func New(name string, numLats, numLons int, fill float32) *Grid {
	return &Grid{
		NameV:     name,
		NumLats:   numLats,
		NumLons:   numLons,
		FillValue: fill,
		Values:    make(map[string][][]float32),
		Stamps:    make(map[string][]int64),
	}
}

// SetLevel installs the (numTimeSlices x numLats*numLons) time-major block
// for varName at the given level.
func (g *Grid) SetLevel(varName string, level int, block []float32) {
	levels := g.Values[varName]
	for len(levels) <= level {
		levels = append(levels, nil)
	}
	levels[level] = block
	g.Values[varName] = levels
}

func (g *Grid) Name() string { return g.NameV }

func (g *Grid) NumTimeSlices(varName string) (int, error) {
	levels, ok := g.Values[varName]
	if !ok || len(levels) == 0 || levels[0] == nil {
		return 0, fmt.Errorf("testgrid: %s: variable %q has no data", g.NameV, varName)
	}
	cell := g.NumLats * g.NumLons
	return len(levels[0]) / cell, nil
}

func (g *Grid) ReadLevelBlock(varName string, level, numLats, numLons int) (*matbuf.DenseF32, error) {
	levels, ok := g.Values[varName]
	if !ok || level >= len(levels) || levels[level] == nil {
		return nil, fmt.Errorf("testgrid: %s: no data for %q level %d", g.NameV, varName, level)
	}
	block := levels[level]
	cell := numLats * numLons
	rows := len(block) / cell
	out := make([]float32, len(block))
	copy(out, block)
	return &matbuf.DenseF32{Elements: out, Rows: rows, Cols: cell}, nil
}

func (g *Grid) Mask(varName string, level, timeSlice, numLats, numLons int) ([]bool, error) {
	levels, ok := g.Values[varName]
	if !ok || level >= len(levels) || levels[level] == nil {
		return nil, fmt.Errorf("testgrid: %s: no data for %q level %d", g.NameV, varName, level)
	}
	cell := numLats * numLons
	block := levels[level]
	start := timeSlice * cell
	if start+cell > len(block) {
		return nil, fmt.Errorf("testgrid: %s: time slice %d out of range", g.NameV, timeSlice)
	}
	mask := make([]bool, cell)
	for i := 0; i < cell; i++ {
		mask[i] = block[start+i] == g.FillValue
	}
	return mask, nil
}

func (g *Grid) Timestamps(timeVarName string) ([]int64, error) {
	out, ok := g.Stamps[timeVarName]
	if !ok {
		return nil, fmt.Errorf("testgrid: %s: no timestamps for %q", g.NameV, timeVarName)
	}
	return out, nil
}

func (g *Grid) Coords() (lat, lon []float64, levels []int, err error) {
	return g.Lat, g.Lon, g.Levels, nil
}

func (g *Grid) Close() error { return nil }
