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
	"github.com/spf13/cobra"

	"github.com/oceangrid/gridconv/orchestrator"
)

func (c *cli) convertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert",
		Short: "Run the full conversion: discover, partition, load, gather, write.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return orchestrator.Run(c.cfg)
		},
	}
}
