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

package partition

import (
	"sync"
	"testing"

	"github.com/oceangrid/gridconv/comm"
)

func TestAssignRoundRobin(t *testing.T) {
	files := []string{"a", "b", "c", "d", "e"}
	const size = 2
	var got [][]string
	for r := 0; r < size; r++ {
		got = append(got, Assign(files, r, size))
	}
	want := [][]string{{"a", "c", "e"}, {"b", "d"}}
	for r := range want {
		if len(got[r]) != len(want[r]) {
			t.Fatalf("rank %d: got %v, want %v", r, got[r], want[r])
		}
		for i := range want[r] {
			if got[r][i] != want[r][i] {
				t.Fatalf("rank %d: got %v, want %v", r, got[r], want[r])
			}
		}
	}
}

func TestAssignCoversEveryFileExactlyOnce(t *testing.T) {
	files := []string{"a", "b", "c", "d", "e", "f", "g"}
	const size = 3
	seen := make(map[string]int)
	for r := 0; r < size; r++ {
		for _, f := range Assign(files, r, size) {
			seen[f]++
		}
	}
	if len(seen) != len(files) {
		t.Fatalf("got %d distinct files, want %d", len(seen), len(files))
	}
	for f, n := range seen {
		if n != 1 {
			t.Fatalf("file %q assigned %d times, want 1", f, n)
		}
	}
}

func TestRunCensus(t *testing.T) {
	const size = 3
	g := comm.NewGroup(size)
	results := make([]*Census, size)
	var wg sync.WaitGroup
	wg.Add(size)
	for r := 0; r < size; r++ {
		go func(r int) {
			defer wg.Done()
			var local []int
			switch r {
			case 0:
				local = []int{2, 3}
			case 1:
				local = nil
			case 2:
				local = []int{3}
			}
			c, err := RunCensus(g, r, local)
			if err != nil {
				t.Errorf("rank %d: %v", r, err)
				return
			}
			results[r] = c
		}(r)
	}
	wg.Wait()

	for r := 0; r < size; r++ {
		c := results[r]
		if c == nil {
			t.Fatalf("rank %d: nil census", r)
		}
		wantCols := []int{5, 0, 3}
		for i, want := range wantCols {
			if c.ColsPerProcess[i] != want {
				t.Fatalf("rank %d: ColsPerProcess = %v, want %v", r, c.ColsPerProcess, wantCols)
			}
		}
		wantOffsets := []int{0, 5, 5}
		for i, want := range wantOffsets {
			if c.OutputColOffsets[i] != want {
				t.Fatalf("rank %d: OutputColOffsets = %v, want %v", r, c.OutputColOffsets, wantOffsets)
			}
		}
	}
	if results[0].NumLocalCols != 5 || results[1].NumLocalCols != 0 || results[2].NumLocalCols != 3 {
		t.Fatalf("unexpected NumLocalCols: %d %d %d", results[0].NumLocalCols, results[1].NumLocalCols, results[2].NumLocalCols)
	}
}
