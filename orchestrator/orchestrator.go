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

// Package orchestrator sequences the whole converter: it
// stands up the simulated communicator, then on every simulated rank
// drives file discovery, the column census, the per-level load/gather/
// write passes, and the metadata emitter, barriering at every progress
// point the way the original MPI program does.
package orchestrator

import (
	"fmt"
	"log"
	"sync"

	"github.com/samber/lo"

	"github.com/oceangrid/gridconv/comm"
	"github.com/oceangrid/gridconv/config"
	"github.com/oceangrid/gridconv/input"
	"github.com/oceangrid/gridconv/level"
	"github.com/oceangrid/gridconv/mask"
	"github.com/oceangrid/gridconv/metadata"
	"github.com/oceangrid/gridconv/output"
	"github.com/oceangrid/gridconv/output/netcdfbackend"
	"github.com/oceangrid/gridconv/output/tiledbbackend"
	"github.com/oceangrid/gridconv/partition"
	"github.com/oceangrid/gridconv/redistribute"
)

// readConcurrency bounds how many of a rank's locally-held files are read
// in parallel during one level's load pass.
const readConcurrency = 4

// Run executes the full conversion described by cfg: discovery, partition,
// per-level load/gather/write, and the metadata emitter. It blocks until
// every simulated rank has finished or the communicator aborts.
func Run(cfg *config.Config) error {
	files, err := partition.Discover(cfg.InputDir, cfg.FilePattern)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("orchestrator: no files matching %s found under %s", cfg.FilePattern, cfg.InputDir)
	}
	size := cfg.NumProcs()
	if len(files) < size {
		return fmt.Errorf("orchestrator: %d files is fewer than %d ranks; reduce nodes/procs-per-node", len(files), size)
	}

	backend, err := newBackend(cfg)
	if err != nil {
		return err
	}

	g := comm.NewGroup(size)
	var archiveMu sync.Mutex
	archive := &metadata.Archive{}

	var depthTable metadata.DepthTable
	if cfg.DepthTablePath != "" {
		depthTable, err = metadata.LoadDepthTable(cfg.DepthTablePath)
		if err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	wg.Add(size)
	for rank := 0; rank < size; rank++ {
		go func(rank int) {
			defer wg.Done()
			if err := runRank(g, rank, cfg, files, backend, archive, &archiveMu, depthTable); err != nil {
				g.Abort(rank, err)
			}
		}(rank)
	}
	wg.Wait()

	if err := g.Err(); err != nil {
		return err
	}

	if dupes := lo.FindDuplicates(archive.TimeStamps); len(dupes) > 0 {
		log.Printf("orchestrator: warning: %d duplicate timestamp(s) across input files: %v", len(dupes), dupes)
	}

	if cfg.MetadataDir != "" {
		if err := metadata.Write(cfg.MetadataDir, archive); err != nil {
			return err
		}
	}
	log.Printf("orchestrator: done: %s", metadata.Summarize(archive))
	return nil
}

func newBackend(cfg *config.Config) (output.Backend, error) {
	switch cfg.Backend {
	case config.BackendNetCDF:
		return netcdfbackend.New(cfg.StripeSize), nil
	case config.BackendTileDB:
		return tiledbbackend.New(0)
	default:
		return nil, fmt.Errorf("orchestrator: unknown output backend %q", cfg.Backend)
	}
}

func runRank(g *comm.Group, rank int, cfg *config.Config, allFiles []string, backend output.Backend, archive *metadata.Archive, archiveMu *sync.Mutex, depthTable metadata.DepthTable) error {
	logger := g.Logger(rank)
	localPaths := partition.Assign(allFiles, rank, g.Size())

	var grids []input.Grid
	defer func() {
		for _, gr := range grids {
			gr.Close()
		}
	}()

	localTimeSlices := make([]int, len(localPaths))
	for i, p := range localPaths {
		f, err := input.Open(p)
		if err != nil {
			return err
		}
		grids = append(grids, f)
		n, err := f.NumTimeSlices(cfg.VarName)
		if err != nil {
			return err
		}
		localTimeSlices[i] = n
	}
	logger.Printf("opened %d local files", len(grids))

	census, err := partition.RunCensus(g, rank, localTimeSlices)
	if !g.Barrier() {
		return g.Err()
	}
	if err != nil {
		return err
	}
	numCols := 0
	for _, c := range census.ColsPerProcess {
		numCols += c
	}

	var lat, lon []float64
	if rank == 0 && len(grids) > 0 {
		lat, lon, _, err = grids[0].Coords()
		if err != nil {
			return err
		}
		if cfg.Extended {
			archiveMu.Lock()
			archive.LatList = lat
			archive.LonList = lon
			archiveMu.Unlock()
		}
	}

	// The reference mask is derived per level from this rank's own
	// first local file, matching "arbitrary input file". Rank 0 additionally sizes and creates
	// the output dataset, since invariant #1 (mask constant across
	// levels) makes the total row count computable up front from level
	// 0 alone.
	if rank == 0 {
		if len(grids) == 0 {
			return fmt.Errorf("orchestrator: rank 0 holds no local files")
		}
		ref0, err := mask.Reference(grids[0], cfg.VarName, 0, config.NumLats, config.NumLons)
		if err != nil {
			return err
		}
		numRows := config.NumLevels * ref0.NumObserved()
		worstTileBytes := int64((ref0.NumObserved()+g.Size()-1)/g.Size()) * int64(numCols) * 4
		if worstTileBytes > cfg.MaxWriteBytes {
			return fmt.Errorf("orchestrator: worst-case write tile (%d bytes) exceeds max-write-bytes (%d)", worstTileBytes, cfg.MaxWriteBytes)
		}
		if err := backend.Create(cfg.OutputPath, numRows, numCols); err != nil {
			return err
		}
		logger.Printf("created output dataset: %d rows x %d cols", numRows, numCols)
	}
	if !g.Barrier() {
		return g.Err()
	}

	// Round-robin assignment over at-least-size files (checked in Run)
	// guarantees every rank holds at least one local file, so every rank
	// below takes the same collective-call path every level.
	levelStartRow := 0
	for lvl := 0; lvl < config.NumLevels; lvl++ {
		ref, err := mask.Reference(grids[0], cfg.VarName, lvl, config.NumLats, config.NumLons)
		if err != nil {
			return err
		}

		if cfg.VerifyMask {
			if err := mask.Verify(g, rank, ref, grids, cfg.VarName, lvl, config.NumLats, config.NumLons); err != nil {
				return err
			}
		}
		if !g.Barrier() {
			return g.Err()
		}

		specs := make([]level.FileSpec, len(grids))
		for i, gr := range grids {
			specs[i] = level.FileSpec{File: gr, Expected: localTimeSlices[i]}
		}
		curLevData, err := level.Load(logger, readConcurrency, specs, cfg.VarName, lvl, ref, cfg.Anomaly, config.NumLats, config.NumLons)
		if err != nil {
			return err
		}
		if !g.Barrier() {
			return g.Err()
		}

		numObserved := ref.NumObserved()
		starts, ends := redistribute.ChunkIt(numObserved, g.Size())
		for chunkIdx := 0; chunkIdx < g.Size(); chunkIdx++ {
			rowStart, rowEnd := starts[chunkIdx], ends[chunkIdx]
			if rowEnd <= rowStart {
				continue
			}
			writer := redistribute.ChunkIdxToWriter(chunkIdx, cfg.NumNodes, cfg.ProcsPerNode)
			collected, ok := redistribute.GatherChunk(g, rank, curLevData, rowStart, rowEnd, census.ColsPerProcess, writer)
			if !ok {
				return g.Err()
			}
			if rank == writer {
				tile := redistribute.WriteTile(collected, rowEnd-rowStart, census.ColsPerProcess, census.OutputColOffsets, numCols)
				if err := backend.WriteTile(cfg.OutputPath, levelStartRow+rowStart, tile); err != nil {
					return err
				}
			}
		}
		if !g.Barrier() {
			return g.Err()
		}

		if rank == 0 {
			archiveMu.Lock()
			if lvl == 0 {
				archive.MissingLocations = ref.MissingFlatIndices()
			}
			if cfg.Extended && lat != nil {
				metadata.Join(archive, ref, lvl, lat, lon, config.NumLons, depthTable.Lookup)
			}
			archiveMu.Unlock()
		}

		levelStartRow += numObserved
		logger.Printf("level %d complete (%d observed rows)", lvl, numObserved)
	}

	if rank == 0 {
		if err := backend.Close(cfg.OutputPath); err != nil {
			return err
		}
		archiveMu.Lock()
		archive.TimeStamps = collectTimestamps(allFiles, g.Size(), grids, localPaths, cfg)
		archiveMu.Unlock()
	}
	if !g.Barrier() {
		return g.Err()
	}
	return nil
}

// collectTimestamps reads the timestamp vector from every file in rank-major
// order -- rank 0's files (in its own local file-list order), then rank 1's,
// and so on -- using the handles already open on rank 0 where possible and
// falling back to opening files this rank doesn't otherwise hold. This must
// match the column order redistribute.WriteTile actually lays columns out
// in (rank-major via partition.RunCensus's OutputColOffsets), which is NOT
// the same as allFiles' global sorted order whenever a rank holds more than
// one file.
func collectTimestamps(allFiles []string, size int, rank0Grids []input.Grid, rank0Paths []string, cfg *config.Config) []int64 {
	byPath := make(map[string]input.Grid, len(rank0Grids))
	for i, p := range rank0Paths {
		byPath[p] = rank0Grids[i]
	}
	var out []int64
	for r := 0; r < size; r++ {
		for _, p := range partition.Assign(allFiles, r, size) {
			if gr, ok := byPath[p]; ok {
				if ts, err := gr.Timestamps(cfg.TimeVarName); err == nil {
					out = append(out, ts...)
				}
				continue
			}
			f, err := input.Open(p)
			if err != nil {
				continue
			}
			if ts, err := f.Timestamps(cfg.TimeVarName); err == nil {
				out = append(out, ts...)
			}
			f.Close()
		}
	}
	return out
}
