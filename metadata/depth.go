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
	"encoding/json"
	"fmt"
	"os"
)

// DepthTable maps a raw level index to its depth in meters. Present for
// CFSRO-style data, absent for CESM (original_source's
// dump_CESM_metadata.py comments the lookup out entirely) -- the optional depth-lookup behavior
// treats it as optional, populated only when the table is available. This
// is plain JSON decoded with the standard library: the format is a small,
// converter-local lookup table with no wire or archival role, so none of
// the pack's data-format libraries (gonpy, cdf) apply here.
type DepthTable map[int]float64

// LoadDepthTable reads a JSON object mapping string level indices to depth
// in meters, e.g. {"0": 5000.2, "1": 4800.7, ...}.
func LoadDepthTable(path string) (DepthTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("metadata: depth table: %w", err)
	}
	var strKeyed map[string]float64
	if err := json.Unmarshal(raw, &strKeyed); err != nil {
		return nil, fmt.Errorf("metadata: depth table: %w", err)
	}
	table := make(DepthTable, len(strKeyed))
	for k, v := range strKeyed {
		var level int
		if _, err := fmt.Sscanf(k, "%d", &level); err != nil {
			return nil, fmt.Errorf("metadata: depth table: invalid level key %q", k)
		}
		table[level] = v
	}
	return table, nil
}

// Lookup returns (depth, true) if level has an entry, or (0, false) if the
// table is nil or lacks level -- a missing table is treated as "no depth
// lookup available" rather than an error.
func (d DepthTable) Lookup(level int) (float64, bool) {
	if d == nil {
		return 0, false
	}
	v, ok := d[level]
	return v, ok
}
