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
	"github.com/spf13/pflag"

	"github.com/oceangrid/gridconv/config"
)

// cli bundles the Config with the cobra command tree that populates it,
// the same shape inmaputil.Cfg takes (a *viper.Viper-backed struct plus
// the commands that read it in PersistentPreRunE).
type cli struct {
	cfg  *config.Config
	root *cobra.Command
}

func newRootCmd() *cobra.Command {
	c := &cli{cfg: config.New()}

	c.root = &cobra.Command{
		Use:   "gridconv",
		Short: "Convert gridded ocean-climate files into a dense matrix.",
		Long: `gridconv partitions a directory of per-time-window gridded files across
simulated worker ranks, streams and reassembles per-depth-level slabs, and
writes a single dense matrix plus a sidecar metadata archive suitable for
downstream analytics (SVD, clustering).

Configuration can be set via flags, a config file (--config), or
GRIDCONV_-prefixed environment variables.`,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return c.cfg.Load()
		},
		SilenceUsage: true,
	}

	flags := c.root.PersistentFlags()
	flags.String("config", "", "path to a config file")
	flags.String("input-dir", "", "directory of input .nc files")
	flags.String("file-pattern", "*.nc", "glob pattern for input files within input-dir")
	flags.String("var", "", "name of the variable to convert")
	flags.String("time-var", "time", "name of the per-file timestamp variable")
	flags.String("output", "", "path to the output matrix dataset")
	flags.String("metadata-dir", "", "directory to write the sidecar metadata archive into")
	flags.Int("nodes", 1, "number of simulated nodes")
	flags.Int("procs-per-node", 4, "number of simulated ranks per node")
	flags.Bool("verify-mask", false, "cross-check every file's mask against the reference mask")
	flags.String("output-backend", string(config.BackendNetCDF), "output storage backend: netcdf or tiledb")
	flags.Int64("max-write-bytes", config.DefaultMaxWriteBytes, "refuse to start if any single write would exceed this many bytes")
	flags.String("anomaly-policy", string(config.AnomalyReplicateFirst), "short-file handling: zero-fill or replicate-first")
	flags.String("depth-table", "", "path to an optional JSON depth-lookup table")
	flags.Bool("extended", false, "populate extended coordinate metadata")
	flags.Int64("stripe-size-bytes", 0, "round the netcdf backend's initial file extent up to a multiple of this many bytes (0 disables); set to the parallel filesystem's stripe size")
	// Bind one flag at a time, the way inmaputil.InitializeConfig does
	// (cfg.BindPFlag(option.name, set.Lookup(option.name))), rather than
	// a single BindPFlags(set) call.
	flags.VisitAll(func(f *pflag.Flag) {
		c.cfg.BindPFlag(f.Name, f)
	})

	c.root.AddCommand(c.convertCmd())
	c.root.AddCommand(c.thermoclineCmd())
	return c.root
}
