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

package matbuf

import "testing"

func TestGetSet(t *testing.T) {
	d := Zeros(2, 3)
	d.Set(1, 2, 5)
	if got := d.Get(1, 2); got != 5 {
		t.Fatalf("got %v, want 5", got)
	}
	if got := d.Get(0, 0); got != 0 {
		t.Fatalf("got %v, want 0", got)
	}
}

func TestGetOutOfBoundsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	d := Zeros(2, 2)
	d.Get(2, 0)
}

func TestRowIsAView(t *testing.T) {
	d := Zeros(2, 3)
	row := d.Row(0)
	row[1] = 9
	if got := d.Get(0, 1); got != 9 {
		t.Fatalf("Row did not alias underlying storage: got %v, want 9", got)
	}
}

func TestSubRows(t *testing.T) {
	d := Zeros(4, 2)
	for r := 0; r < 4; r++ {
		d.Set(r, 0, float32(r))
	}
	sub := d.SubRows(1, 3)
	if sub.Rows != 2 || sub.Cols != 2 {
		t.Fatalf("got shape (%d,%d), want (2,2)", sub.Rows, sub.Cols)
	}
	if sub.Get(0, 0) != 1 || sub.Get(1, 0) != 2 {
		t.Fatalf("unexpected SubRows contents: %v", sub.Elements)
	}
	sub.Set(0, 0, 100)
	if d.Get(1, 0) != 1 {
		t.Fatal("SubRows should copy, not alias")
	}
}

func TestPasteColumns(t *testing.T) {
	dst := Zeros(2, 5)
	src := Zeros(2, 2)
	src.Set(0, 0, 1)
	src.Set(0, 1, 2)
	src.Set(1, 0, 3)
	src.Set(1, 1, 4)
	dst.PasteColumns(src, 2)
	if dst.Get(0, 2) != 1 || dst.Get(0, 3) != 2 || dst.Get(1, 2) != 3 || dst.Get(1, 3) != 4 {
		t.Fatalf("unexpected paste result: %v", dst.Elements)
	}
}

func TestPasteColumnsRowMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	dst := Zeros(2, 5)
	src := Zeros(3, 2)
	dst.PasteColumns(src, 0)
}
