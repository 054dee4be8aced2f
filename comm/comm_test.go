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

package comm

import (
	"fmt"
	"sync"
	"testing"
)

func runRanks(t *testing.T, size int, fn func(rank int)) {
	t.Helper()
	var wg sync.WaitGroup
	wg.Add(size)
	for r := 0; r < size; r++ {
		go func(r int) {
			defer wg.Done()
			fn(r)
		}(r)
	}
	wg.Wait()
}

func TestAllGatherInt(t *testing.T) {
	const size = 4
	g := NewGroup(size)
	results := make([][]int, size)
	runRanks(t, size, func(rank int) {
		out, ok := g.AllGatherInt(rank, rank*10)
		if !ok {
			t.Errorf("rank %d: aborted unexpectedly", rank)
			return
		}
		results[rank] = out
	})
	want := []int{0, 10, 20, 30}
	for r := 0; r < size; r++ {
		if fmt.Sprint(results[r]) != fmt.Sprint(want) {
			t.Errorf("rank %d: got %v, want %v", r, results[r], want)
		}
	}
}

func TestGatherV(t *testing.T) {
	const size = 3
	counts := []int{2, 3, 1}
	g := NewGroup(size)
	var collected []float32
	runRanks(t, size, func(rank int) {
		send := make([]float32, counts[rank])
		for i := range send {
			send[i] = float32(rank)
		}
		out, ok := g.GatherV(rank, send, counts, 0)
		if !ok {
			t.Errorf("rank %d: aborted unexpectedly", rank)
			return
		}
		if rank == 0 {
			collected = out
		}
	})
	want := []float32{0, 0, 1, 1, 1, 2}
	if len(collected) != len(want) {
		t.Fatalf("got %v, want %v", collected, want)
	}
	for i := range want {
		if collected[i] != want[i] {
			t.Fatalf("got %v, want %v", collected, want)
		}
	}
}

func TestSerialRelayCheckDetectsMismatch(t *testing.T) {
	const size = 4
	g := NewGroup(size)
	badSenders := make([]int, size)
	runRanks(t, size, func(rank int) {
		digest := "same"
		if rank == 2 {
			digest = "different"
		}
		bad, ok := g.SerialRelayCheck(rank, digest)
		if !ok {
			t.Errorf("rank %d: aborted unexpectedly", rank)
			return
		}
		badSenders[rank] = bad
	})
	if badSenders[0] != 2 {
		t.Errorf("root detected bad sender %d, want 2", badSenders[0])
	}
}

func TestAbortUnblocksBarrier(t *testing.T) {
	const size = 3
	g := NewGroup(size)
	var wg sync.WaitGroup
	wg.Add(size)
	results := make([]bool, size)
	for r := 0; r < size; r++ {
		go func(r int) {
			defer wg.Done()
			if r == 0 {
				g.Abort(0, fmt.Errorf("boom"))
				results[0] = false
				return
			}
			results[r] = g.Barrier()
		}(r)
	}
	wg.Wait()
	for r := 1; r < size; r++ {
		if results[r] {
			t.Errorf("rank %d: Barrier returned true after Abort", r)
		}
	}
	if g.Err() == nil {
		t.Fatal("expected Err() to be set after Abort")
	}
}

func TestRunPool(t *testing.T) {
	n := 50
	seen := make([]bool, n)
	var mu sync.Mutex
	err := RunPool(4, n, func(i int) error {
		mu.Lock()
		seen[i] = true
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, ok := range seen {
		if !ok {
			t.Errorf("task %d never ran", i)
		}
	}
}

func TestRunPoolPropagatesError(t *testing.T) {
	err := RunPool(2, 5, func(i int) error {
		if i == 3 {
			return fmt.Errorf("task %d failed", i)
		}
		return nil
	})
	if err == nil {
		t.Fatal("expected an error")
	}
}
