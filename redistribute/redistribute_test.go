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

package redistribute

import (
	"sync"
	"testing"

	"github.com/oceangrid/gridconv/comm"
	"github.com/oceangrid/gridconv/matbuf"
)

func TestChunkItCoversRangeExactlyOnce(t *testing.T) {
	starts, ends := ChunkIt(17, 5)
	total := 0
	for i := range starts {
		if i > 0 && starts[i] != ends[i-1] {
			t.Fatalf("chunk %d does not abut chunk %d: starts=%v ends=%v", i, i-1, starts, ends)
		}
		total += ends[i] - starts[i]
	}
	if starts[0] != 0 {
		t.Fatalf("first chunk should start at 0, got %d", starts[0])
	}
	if ends[len(ends)-1] != 17 {
		t.Fatalf("last chunk should end at length, got %d", ends[len(ends)-1])
	}
	if total != 17 {
		t.Fatalf("chunks cover %d elements, want 17", total)
	}
}

func TestChunkItFewerElementsThanChunks(t *testing.T) {
	starts, ends := ChunkIt(2, 5)
	total := 0
	for i := range starts {
		total += ends[i] - starts[i]
	}
	if total != 2 {
		t.Fatalf("chunks cover %d elements, want 2", total)
	}
}

func TestChunkIdxToWriter(t *testing.T) {
	// 2 nodes, 3 procs per node: chunk 0 -> node 0 offset 0 -> writer 0
	// chunk 1 -> node 1 offset 0 -> writer 3
	// chunk 2 -> node 0 offset 1 -> writer 1
	// chunk 3 -> node 1 offset 1 -> writer 4
	cases := []struct{ chunkIdx, want int }{
		{0, 0}, {1, 3}, {2, 1}, {3, 4},
	}
	for _, c := range cases {
		got := ChunkIdxToWriter(c.chunkIdx, 2, 3)
		if got != c.want {
			t.Errorf("ChunkIdxToWriter(%d, 2, 3) = %d, want %d", c.chunkIdx, got, c.want)
		}
	}
}

func TestGatherChunkAndWriteTileRoundTrip(t *testing.T) {
	const size = 3
	colsPerProcess := []int{2, 1, 3}
	outputColOffsets := []int{0, 2, 3}
	numCols := 6

	// Each rank's curLevData has 4 rows and colsPerProcess[rank] columns,
	// with Get(r,c) = rank*100 + r*10 + c so the round trip is checkable.
	levData := make([]*matbuf.DenseF32, size)
	for r := 0; r < size; r++ {
		d := matbuf.Zeros(4, colsPerProcess[r])
		for row := 0; row < 4; row++ {
			for col := 0; col < colsPerProcess[r]; col++ {
				d.Set(row, col, float32(r*100+row*10+col))
			}
		}
		levData[r] = d
	}

	g := comm.NewGroup(size)
	const writer = 1
	var collected []float32
	var wg sync.WaitGroup
	wg.Add(size)
	for r := 0; r < size; r++ {
		go func(r int) {
			defer wg.Done()
			out, ok := GatherChunk(g, r, levData[r], 1, 3, colsPerProcess, writer)
			if !ok {
				t.Errorf("rank %d: aborted", r)
				return
			}
			if r == writer {
				collected = out
			}
		}(r)
	}
	wg.Wait()

	tile := WriteTile(collected, 2, colsPerProcess, outputColOffsets, numCols)
	if tile.Rows != 2 || tile.Cols != numCols {
		t.Fatalf("got shape (%d,%d), want (2,%d)", tile.Rows, tile.Cols, numCols)
	}
	for r := 0; r < size; r++ {
		for row := 0; row < 2; row++ {
			for col := 0; col < colsPerProcess[r]; col++ {
				want := float32(r*100 + (row+1)*10 + col) // rows 1,2 from original buffer
				got := tile.Get(row, outputColOffsets[r]+col)
				if got != want {
					t.Fatalf("rank %d row %d col %d: got %v, want %v", r, row, col, got, want)
				}
			}
		}
	}
}
