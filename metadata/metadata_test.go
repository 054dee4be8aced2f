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

package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/oceangrid/gridconv/mask"
)

func TestWriteThenReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := &Archive{
		MissingLocations:     []int32{3, 7},
		TimeStamps:           []int64{100, 200, 300},
		ObservedLatCoords:    []float64{1.5, 2.5},
		ObservedLonCoords:    []float64{10.5, 20.5},
		ObservedLevelNumbers: []int32{0, 1},
		ObservedLocations:    []int32{0, 1},
		LatList:              []float64{1.5, 2.5},
		LonList:              []float64{10.5, 20.5},
		DepthList:            []float64{5000, 4800},
	}
	if err := Write(dir, a); err != nil {
		t.Fatal(err)
	}
	if _, err := filepath.Glob(filepath.Join(dir, "manifest.json")); err != nil {
		t.Fatal(err)
	}

	got, err := Read(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.ObservedLevelNumbers) != 2 || got.ObservedLevelNumbers[1] != 1 {
		t.Fatalf("got %v, want [0 1]", got.ObservedLevelNumbers)
	}
	if len(got.ObservedLatCoords) != 2 || got.ObservedLatCoords[0] != 1.5 {
		t.Fatalf("got %v, want [1.5 2.5]", got.ObservedLatCoords)
	}
}

func TestJoinAppendsCoordinatesForObservedCells(t *testing.T) {
	a := &Archive{}
	m := mask.New([]bool{false, true, false, false}) // 3 observed cells in a 2x2 grid
	lat := []float64{10, 20}
	lon := []float64{100, 200}
	Join(a, m, 5, lat, lon, 2, nil)

	if len(a.ObservedLatCoords) != 3 {
		t.Fatalf("got %d entries, want 3", len(a.ObservedLatCoords))
	}
	for _, lvl := range a.ObservedLevelNumbers {
		if lvl != 5 {
			t.Fatalf("got level %d, want 5", lvl)
		}
	}
	// flat index 0 -> (row 0, col 0) -> lat[0]=10, lon[0]=100
	if a.ObservedLatCoords[0] != 10 || a.ObservedLonCoords[0] != 100 {
		t.Fatalf("got (%v,%v), want (10,100)", a.ObservedLatCoords[0], a.ObservedLonCoords[0])
	}
}

func TestDepthTableLookup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "depth.json")
	if err := writeFile(path, `{"0": 5000.5, "3": 4200.1}`); err != nil {
		t.Fatal(err)
	}
	table, err := LoadDepthTable(path)
	if err != nil {
		t.Fatal(err)
	}
	if d, ok := table.Lookup(0); !ok || d != 5000.5 {
		t.Fatalf("got (%v,%v), want (5000.5,true)", d, ok)
	}
	if _, ok := table.Lookup(1); ok {
		t.Fatal("level 1 should be absent")
	}
	var nilTable DepthTable
	if _, ok := nilTable.Lookup(0); ok {
		t.Fatal("nil table should report not-found")
	}
}

func TestSummarizeReportsBoundingBoxAndDepth(t *testing.T) {
	a := &Archive{
		ObservedLatCoords: []float64{-10, 5, 20},
		ObservedLonCoords: []float64{100, 150, 200},
		DepthList:         []float64{10, 30},
	}
	got := Summarize(a)
	want := "3 observed cells, lat [-10.00,20.00], lon [100.00,200.00], depth [10.0,30.0] (sum 40.0)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSummarizeHandlesEmptyArchive(t *testing.T) {
	if got := Summarize(&Archive{}); got != "no observed cells" {
		t.Fatalf("got %q, want %q", got, "no observed cells")
	}
}

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o644)
}
