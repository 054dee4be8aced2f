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

// Package config binds gridconv's run parameters the way InMAP's own
// inmaputil.Cfg does: a *viper.Viper embedded in a small struct, populated
// from pflag-registered command flags, an optional config file, and
// GRIDCONV_-prefixed environment variables.
package config

import (
	"fmt"
	"os"

	"github.com/lnashier/viper"
)

// Fixed grid dimensions for the dataset this converter targets: 40 depth
// levels, 360 latitudes, 720 longitudes.
const (
	NumLevels = 40
	NumLats   = 360
	NumLons   = 720
)

// DefaultMaxWriteBytes is the per-write ceiling imposed by the storage
// library in use: 4 GiB.
const DefaultMaxWriteBytes = 4 << 30

// OutputBackend selects which output.Backend implementation writes the
// dense matrix.
type OutputBackend string

const (
	BackendNetCDF OutputBackend = "netcdf"
	BackendTileDB OutputBackend = "tiledb"
)

// AnomalyPolicy selects how the level loader handles a file whose
// time-slice count at a level is short of the expected column count.
type AnomalyPolicy string

const (
	// AnomalyZeroFill zero-fills the missing columns (with a warning).
	AnomalyZeroFill AnomalyPolicy = "zero-fill"
	// AnomalyReplicateFirst replicates the file's first time slice into
	// the missing columns (with a warning). This is the default, since
	// it is the behavior original_source/ocean_converter.py falls back
	// to when 1 <= T_f < expected.
	AnomalyReplicateFirst AnomalyPolicy = "replicate-first"
)

// Config holds every run parameter. cfg.Viper is embedded so callers can
// reach GetString/GetInt/etc. directly, matching inmaputil.Cfg's pattern of
// embedding *viper.Viper rather than re-declaring every accessor.
type Config struct {
	*viper.Viper

	InputDir       string
	FilePattern    string
	VarName        string
	TimeVarName    string
	OutputPath     string
	MetadataDir    string
	NumNodes       int
	ProcsPerNode   int
	VerifyMask     bool
	Backend        OutputBackend
	MaxWriteBytes  int64
	Anomaly        AnomalyPolicy
	DepthTablePath string
	Extended       bool
	StripeSize     int64

	// ThermoclineLevels is a [start, end) depth-level range. Load does not
	// set it and the thermocline subset command does not read it; that
	// command takes its range from --level-start and --level-end.
	ThermoclineLevels [2]int
}

// NumProcs returns the total simulated rank count (NumNodes *
// ProcsPerNode), matching chunkIdxToWriter's machine/offset decomposition.
func (c *Config) NumProcs() int {
	return c.NumNodes * c.ProcsPerNode
}

// New returns a Config with the ambient stack's defaults, ready to be
// overlaid with flags, a config file and environment variables via Load.
func New() *Config {
	return &Config{
		Viper:        viper.New(),
		FilePattern:  "*.nc",
		TimeVarName:  "time",
		NumNodes:     1,
		ProcsPerNode: 4,
		Backend:      BackendNetCDF,
		MaxWriteBytes: DefaultMaxWriteBytes,
		Anomaly:      AnomalyReplicateFirst,
	}
}

// Load reads an optional config file (the path in v's "config" key, if
// set) and environment variables prefixed GRIDCONV_, then copies every
// recognized key onto the typed fields, the same two-step viper.Viper then
// struct-field pattern inmaputil.setConfig plus its per-field
// cfg.GetString calls follow.
func (c *Config) Load() error {
	c.SetEnvPrefix("GRIDCONV")
	c.AutomaticEnv()

	if path := c.GetString("config"); path != "" {
		c.SetConfigFile(path)
		if err := c.ReadInConfig(); err != nil {
			return fmt.Errorf("config: reading config file %s: %w", path, err)
		}
	}

	if v := c.GetString("input-dir"); v != "" {
		c.InputDir = v
	}
	if v := c.GetString("file-pattern"); v != "" {
		c.FilePattern = v
	}
	if v := c.GetString("var"); v != "" {
		c.VarName = v
	}
	if v := c.GetString("time-var"); v != "" {
		c.TimeVarName = v
	}
	if v := c.GetString("output"); v != "" {
		c.OutputPath = v
	}
	if v := c.GetString("metadata-dir"); v != "" {
		c.MetadataDir = v
	}
	if v := c.GetInt("nodes"); v != 0 {
		c.NumNodes = v
	}
	if v := c.GetInt("procs-per-node"); v != 0 {
		c.ProcsPerNode = v
	}
	if c.IsSet("verify-mask") {
		c.VerifyMask = c.GetBool("verify-mask")
	}
	if v := c.GetString("output-backend"); v != "" {
		c.Backend = OutputBackend(v)
	}
	if v := c.GetInt64("max-write-bytes"); v != 0 {
		c.MaxWriteBytes = v
	}
	if v := c.GetString("anomaly-policy"); v != "" {
		c.Anomaly = AnomalyPolicy(v)
	}
	if v := c.GetString("depth-table"); v != "" {
		c.DepthTablePath = v
	}
	if c.IsSet("extended") {
		c.Extended = c.GetBool("extended")
	}
	if v := c.GetInt64("stripe-size-bytes"); v != 0 {
		c.StripeSize = v
	}

	return c.Validate()
}

// Validate checks the invariants that must hold before a run starts,
// including the refusal-to-start check against MaxWriteBytes.
func (c *Config) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("config: input-dir is required")
	}
	if c.VarName == "" {
		return fmt.Errorf("config: var is required")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("config: output is required")
	}
	if c.NumNodes < 1 || c.ProcsPerNode < 1 {
		return fmt.Errorf("config: nodes and procs-per-node must each be at least 1")
	}
	switch c.Backend {
	case BackendNetCDF, BackendTileDB:
	default:
		return fmt.Errorf("config: unknown output-backend %q", c.Backend)
	}
	switch c.Anomaly {
	case AnomalyZeroFill, AnomalyReplicateFirst:
	default:
		return fmt.Errorf("config: unknown anomaly-policy %q", c.Anomaly)
	}
	if c.MaxWriteBytes < 1 {
		return fmt.Errorf("config: max-write-bytes must be positive")
	}
	if c.StripeSize < 0 {
		return fmt.Errorf("config: stripe-size-bytes must not be negative")
	}
	numProcs := c.NumProcs()
	worstChunkBytes := int64((NumLats*NumLons+numProcs-1)/numProcs) * 4
	if worstChunkBytes > c.MaxWriteBytes {
		return fmt.Errorf("config: a single writer's worst-case row chunk (%d bytes) exceeds max-write-bytes (%d); increase nodes or procs-per-node, or raise max-write-bytes", worstChunkBytes, c.MaxWriteBytes)
	}
	if c.DepthTablePath != "" {
		if _, err := os.Stat(c.DepthTablePath); err != nil {
			return fmt.Errorf("config: depth-table: %w", err)
		}
	}
	return nil
}
