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

package mask

import (
	"sync"
	"testing"

	"github.com/oceangrid/gridconv/comm"
	"github.com/oceangrid/gridconv/input"
	"github.com/oceangrid/gridconv/internal/testgrid"
)

func TestObservedAndNumObserved(t *testing.T) {
	m := New([]bool{false, true, false, false})
	observed := m.Observed()
	want := []int32{0, 2, 3}
	if len(observed) != len(want) {
		t.Fatalf("got %v, want %v", observed, want)
	}
	for i := range want {
		if observed[i] != want[i] {
			t.Fatalf("got %v, want %v", observed, want)
		}
	}
	if m.NumObserved() != 3 {
		t.Fatalf("got %d, want 3", m.NumObserved())
	}
}

func TestMissingFlatIndices(t *testing.T) {
	m := New([]bool{false, true, false, true})
	got := m.MissingFlatIndices()
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("got %v, want [1 3]", got)
	}
}

func TestDigestStableAndSensitive(t *testing.T) {
	a := New([]bool{false, true, false, false})
	b := New([]bool{false, true, false, false})
	c := New([]bool{false, false, true, false})
	if a.Digest() != b.Digest() {
		t.Fatal("identical masks should have identical digests")
	}
	if a.Digest() == c.Digest() {
		t.Fatal("different masks should have different digests")
	}
}

func newFakeGrid(name string, numLats, numLons int, fill float32, block []float32) input.Grid {
	g := testgrid.New(name, numLats, numLons, fill)
	g.SetLevel("temp", 0, block)
	return g
}

func TestVerifyAgreementPasses(t *testing.T) {
	const lats, lons = 2, 2
	fill := float32(-999)
	block := []float32{1, 2, fill, 4, 5, 6, fill, 8} // two time slices, one masked cell each
	g := newFakeGrid("f0", lats, lons, fill, block)

	ref, err := Reference(g, "temp", 0, lats, lons)
	if err != nil {
		t.Fatal(err)
	}

	grp := comm.NewGroup(1)
	if err := Verify(grp, 0, ref, []input.Grid{g}, "temp", 0, lats, lons); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifyDetectsLocalMismatch(t *testing.T) {
	const lats, lons = 2, 2
	fill := float32(-999)
	// time slice 1 has a different masked cell than time slice 0.
	block := []float32{1, 2, fill, 4, fill, 6, 7, 8}
	g := newFakeGrid("f0", lats, lons, fill, block)

	ref, err := Reference(g, "temp", 0, lats, lons)
	if err != nil {
		t.Fatal(err)
	}

	grp := comm.NewGroup(1)
	if err := Verify(grp, 0, ref, []input.Grid{g}, "temp", 0, lats, lons); err == nil {
		t.Fatal("expected an error for an inconsistent local mask")
	}
}

func TestVerifyDetectsCrossRankMismatch(t *testing.T) {
	const lats, lons = 2, 2
	fill := float32(-999)
	blockA := []float32{1, 2, fill, 4}
	blockB := []float32{1, fill, 3, 4}

	gA := newFakeGrid("a", lats, lons, fill, blockA)
	gB := newFakeGrid("b", lats, lons, fill, blockB)

	refA, err := Reference(gA, "temp", 0, lats, lons)
	if err != nil {
		t.Fatal(err)
	}
	refB, err := Reference(gB, "temp", 0, lats, lons)
	if err != nil {
		t.Fatal(err)
	}

	g := comm.NewGroup(2)
	var wg sync.WaitGroup
	wg.Add(2)
	errs := make([]error, 2)
	go func() {
		defer wg.Done()
		errs[0] = Verify(g, 0, refA, []input.Grid{gA}, "temp", 0, lats, lons)
	}()
	go func() {
		defer wg.Done()
		errs[1] = Verify(g, 1, refB, []input.Grid{gB}, "temp", 0, lats, lons)
	}()
	wg.Wait()

	if errs[0] == nil {
		t.Fatal("expected rank 0 to report the cross-rank mask mismatch")
	}
}
