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
	"fmt"

	"github.com/oceangrid/gridconv/comm"
	"github.com/oceangrid/gridconv/input"
)

// Verify checks that every file this rank holds agrees with ref at level,
// then relays the digest of this rank's reference mask to rank 0 for a
// cross-rank comparison. It mirrors original_source/simplified.py's
// verifyMask: walk every local (file, time) pair, then a serial relay
// from each non-root rank to root.
//
// TODO: the serial relay is O(numProcs) round trips; a binary-tree reduce
// would be O(log numProcs). Preserved as a first implementation per the
// original design note that a true tree-reduce primitive isn't available
// here.
func Verify(g *comm.Group, rank int, ref *Mask, files []input.Grid, varName string, level, numLats, numLons int) error {
	localDigest := ref.Digest()
	for _, f := range files {
		n, err := f.NumTimeSlices(varName)
		if err != nil {
			return fmt.Errorf("mask: verify: %w", err)
		}
		for t := 0; t < n; t++ {
			missing, err := f.Mask(varName, level, t, numLats, numLons)
			if err != nil {
				return fmt.Errorf("mask: verify: %w", err)
			}
			got := New(missing)
			if got.Digest() != localDigest {
				return fmt.Errorf("mask: verify: %s time slice %d disagrees with this rank's reference mask at level %d", f.Name(), t, level)
			}
		}
	}

	badSender, ok := g.SerialRelayCheck(rank, localDigest)
	if !ok {
		return fmt.Errorf("mask: verify: aborted: %w", g.Err())
	}
	if rank == 0 && badSender != 0 {
		err := fmt.Errorf("mask: verify: rank %d's mask disagrees with rank 0's reference mask at level %d", badSender, level)
		g.Abort(0, err)
		return err
	}
	return nil
}
