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

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oceangrid/gridconv/config"
	"github.com/oceangrid/gridconv/metadata"
	"github.com/oceangrid/gridconv/output/netcdfbackend"
	"github.com/oceangrid/gridconv/output/tiledbbackend"
	"github.com/oceangrid/gridconv/thermocline"
)

func (c *cli) thermoclineCmd() *cobra.Command {
	var outPath, outMetadataDir string
	var levelStart, levelEnd, numCols int

	cmd := &cobra.Command{
		Use:   "thermocline",
		Short: "Extract a contiguous depth-level subset of a converted matrix.",
		Long: `thermocline streams a contiguous row range -- the rows whose depth level
falls in [level-start, level-end) -- out of an already-converted matrix and
its metadata archive into a smaller dataset, per
original_source/extractThermocline.py.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.MetadataDir == "" {
				return fmt.Errorf("thermocline: --metadata-dir is required (input archive)")
			}
			if outMetadataDir == "" {
				return fmt.Errorf("thermocline: --out-metadata-dir is required")
			}
			if numCols <= 0 {
				return fmt.Errorf("thermocline: --num-cols is required and must be positive")
			}

			full, err := metadata.Read(c.cfg.MetadataDir)
			if err != nil {
				return err
			}
			start, end, err := thermocline.KeepRange(full.ObservedLevelNumbers, [2]int{levelStart, levelEnd})
			if err != nil {
				return err
			}

			switch c.cfg.Backend {
			case config.BackendNetCDF:
				return thermocline.Subset(netcdfbackend.New(0), c.cfg.OutputPath, outPath, numCols, start, end, full, outMetadataDir)
			case config.BackendTileDB:
				tb, err := tiledbbackend.New(0)
				if err != nil {
					return err
				}
				return thermocline.Subset(tb, c.cfg.OutputPath, outPath, numCols, start, end, full, outMetadataDir)
			default:
				return fmt.Errorf("thermocline: unknown output backend %q", c.cfg.Backend)
			}
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&outPath, "out", "", "path to the subset output matrix")
	flags.StringVar(&outMetadataDir, "out-metadata-dir", "", "directory to write the subset metadata archive into")
	flags.IntVar(&levelStart, "level-start", 0, "first depth level to keep (inclusive)")
	flags.IntVar(&levelEnd, "level-end", config.NumLevels, "last depth level to keep (exclusive)")
	flags.IntVar(&numCols, "num-cols", 0, "number of columns in the input matrix")
	return cmd
}
