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

import "sync"

// cyclicBarrier is a reusable rendezvous point for exactly n goroutines. It
// is the in-process stand-in for MPI_Barrier: a rank blocks in Wait until
// every other rank has also called Wait, or until done is closed, in which
// case Wait returns false on every rank still waiting or arriving late.
type cyclicBarrier struct {
	n     int
	done  <-chan struct{}
	mu    sync.Mutex
	count int
	gen   chan struct{}
}

func newCyclicBarrier(n int, done <-chan struct{}) *cyclicBarrier {
	return &cyclicBarrier{n: n, done: done, gen: make(chan struct{})}
}

// Wait blocks until n callers have arrived at this generation of the
// barrier, then releases all of them together. It returns false without
// fully synchronizing if done is closed while waiting.
func (b *cyclicBarrier) Wait() bool {
	b.mu.Lock()
	b.count++
	if b.count == b.n {
		b.count = 0
		closing := b.gen
		b.gen = make(chan struct{})
		b.mu.Unlock()
		close(closing)
		return true
	}
	ch := b.gen
	b.mu.Unlock()

	select {
	case <-ch:
		return true
	case <-b.done:
		return false
	}
}
