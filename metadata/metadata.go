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

// Package metadata emits the sidecar archive: the row-to-
// geography mapping, the column-to-timestamp mapping, and the mask used to
// derive the rows. It writes one github.com/kshedden/gonpy .npy file per
// key plus a manifest.json, mirroring arvados-lightning's per-array .npy
// writer (exportnumpy.go, pca.go) rather than a single container file,
// since nothing in the pack carries a ZIP-archive library to build a real
// .npz.
package metadata

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kshedden/gonpy"
	"gonum.org/v1/gonum/floats"

	"github.com/oceangrid/gridconv/mask"
)

// nopCloser lets gonpy (which closes whatever writer it is given) share a
// file handle we still want to Close ourselves, exactly as
// arvados-lightning's exportnumpy.go does.
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// Archive is the in-memory form of the sidecar metadata before it is
// written to disk.
type Archive struct {
	// MissingLocations is the reference mask's missing flat indices
	// (int32), present in every mode.
	MissingLocations []int32
	// TimeStamps is the column-to-timestamp mapping, length numCols.
	TimeStamps []int64

	// Extended fields, populated when Config.Extended is set.
	// ObservedLatCoords/ObservedLonCoords/ObservedLevelNumbers/
	// ObservedLocations are per-observed-row, appended once per level by
	// Join. LatList/LonList are the full lat/lon axis vectors (set once,
	// by the orchestrator, not by Join) and DepthList is the per-level
	// depth lookup, also appended once per level by Join.
	ObservedLatCoords    []float64
	ObservedLonCoords    []float64
	ObservedLevelNumbers []int32
	ObservedLocations    []int32
	LatList              []float64
	LonList              []float64
	DepthList            []float64
}

// manifestEntry describes one array in manifest.json.
type manifestEntry struct {
	File  string `json:"file"`
	Shape []int  `json:"shape"`
	Dtype string `json:"dtype"`
}

// Write emits dir/missingLocations.npy, dir/timeStamps.npy and, when the
// archive carries extended fields, the rest of the extended keys, plus a
// dir/manifest.json listing every key's shape and dtype.
func Write(dir string, a *Archive) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}

	var manifest []manifestEntry

	entry, err := writeInt32(dir, "missingLocations", a.MissingLocations)
	if err != nil {
		return err
	}
	manifest = append(manifest, entry)

	entry, err = writeInt64(dir, "timeStamps", a.TimeStamps)
	if err != nil {
		return err
	}
	manifest = append(manifest, entry)

	if len(a.ObservedLatCoords) > 0 {
		for _, kv := range []struct {
			name string
			data []float64
		}{
			{"observedLatCoords", a.ObservedLatCoords},
			{"observedLonCoords", a.ObservedLonCoords},
			{"latList", a.LatList},
			{"lonList", a.LonList},
			{"depthList", a.DepthList},
		} {
			entry, err = writeFloat64(dir, kv.name, kv.data)
			if err != nil {
				return err
			}
			manifest = append(manifest, entry)
		}
		for _, kv := range []struct {
			name string
			data []int32
		}{
			{"observedLevelNumbers", a.ObservedLevelNumbers},
			{"observedLocations", a.ObservedLocations},
		} {
			entry, err = writeInt32(dir, kv.name, kv.data)
			if err != nil {
				return err
			}
			manifest = append(manifest, entry)
		}
	}

	mf, err := os.Create(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return fmt.Errorf("metadata: manifest: %w", err)
	}
	defer mf.Close()
	enc := json.NewEncoder(mf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		return fmt.Errorf("metadata: manifest: %w", err)
	}
	return nil
}

func writeInt32(dir, key string, data []int32) (manifestEntry, error) {
	path := filepath.Join(dir, key+".npy")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return manifestEntry{}, fmt.Errorf("metadata: %s: %w", key, err)
	}
	defer f.Close()
	npw, err := gonpy.NewWriter(nopCloser{f})
	if err != nil {
		return manifestEntry{}, fmt.Errorf("metadata: %s: %w", key, err)
	}
	npw.Shape = []int{len(data)}
	if err := npw.WriteInt32(data); err != nil {
		return manifestEntry{}, fmt.Errorf("metadata: %s: %w", key, err)
	}
	return manifestEntry{File: key + ".npy", Shape: npw.Shape, Dtype: "int32"}, nil
}

func writeInt64(dir, key string, data []int64) (manifestEntry, error) {
	path := filepath.Join(dir, key+".npy")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return manifestEntry{}, fmt.Errorf("metadata: %s: %w", key, err)
	}
	defer f.Close()
	npw, err := gonpy.NewWriter(nopCloser{f})
	if err != nil {
		return manifestEntry{}, fmt.Errorf("metadata: %s: %w", key, err)
	}
	npw.Shape = []int{len(data)}
	if err := npw.WriteInt64(data); err != nil {
		return manifestEntry{}, fmt.Errorf("metadata: %s: %w", key, err)
	}
	return manifestEntry{File: key + ".npy", Shape: npw.Shape, Dtype: "int64"}, nil
}

func writeFloat64(dir, key string, data []float64) (manifestEntry, error) {
	path := filepath.Join(dir, key+".npy")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return manifestEntry{}, fmt.Errorf("metadata: %s: %w", key, err)
	}
	defer f.Close()
	npw, err := gonpy.NewWriter(nopCloser{f})
	if err != nil {
		return manifestEntry{}, fmt.Errorf("metadata: %s: %w", key, err)
	}
	npw.Shape = []int{len(data)}
	if err := npw.WriteFloat64(data); err != nil {
		return manifestEntry{}, fmt.Errorf("metadata: %s: %w", key, err)
	}
	return manifestEntry{File: key + ".npy", Shape: npw.Shape, Dtype: "float64"}, nil
}

// Read loads back the fields thermocline subsetting needs
// (observedLevelNumbers, observedLatCoords, observedLonCoords,
// observedLocations) from a directory previously written by Write.
func Read(dir string) (*Archive, error) {
	a := &Archive{}
	var err error
	if a.ObservedLevelNumbers, err = readInt32(dir, "observedLevelNumbers"); err != nil {
		return nil, err
	}
	if a.ObservedLocations, err = readInt32(dir, "observedLocations"); err != nil {
		return nil, err
	}
	if a.ObservedLatCoords, err = readFloat64(dir, "observedLatCoords"); err != nil {
		return nil, err
	}
	if a.ObservedLonCoords, err = readFloat64(dir, "observedLonCoords"); err != nil {
		return nil, err
	}
	return a, nil
}

func readInt32(dir, key string) ([]int32, error) {
	f, err := os.Open(filepath.Join(dir, key+".npy"))
	if err != nil {
		return nil, fmt.Errorf("metadata: %s: %w", key, err)
	}
	defer f.Close()
	npy, err := gonpy.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("metadata: %s: %w", key, err)
	}
	vals, err := npy.GetInt32()
	if err != nil {
		return nil, fmt.Errorf("metadata: %s: %w", key, err)
	}
	return vals, nil
}

func readFloat64(dir, key string) ([]float64, error) {
	f, err := os.Open(filepath.Join(dir, key+".npy"))
	if err != nil {
		return nil, fmt.Errorf("metadata: %s: %w", key, err)
	}
	defer f.Close()
	npy, err := gonpy.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("metadata: %s: %w", key, err)
	}
	vals, err := npy.GetFloat64()
	if err != nil {
		return nil, fmt.Errorf("metadata: %s: %w", key, err)
	}
	return vals, nil
}

// Join unfolds the reference mask's observed flat indices into (lat, lon)
// coordinate pairs for one level, using the axis coordinate vectors read
// from any one input file, and appends them (plus the level number) to a
// growing Archive -- the coordinate join step that backs extended metadata.
func Join(a *Archive, m *mask.Mask, level int, lat, lon []float64, numLons int, depthOf func(level int) (float64, bool)) {
	for _, flat := range m.Observed() {
		r := int(flat) / numLons
		c := int(flat) % numLons
		a.ObservedLatCoords = append(a.ObservedLatCoords, lat[r])
		a.ObservedLonCoords = append(a.ObservedLonCoords, lon[c])
		a.ObservedLevelNumbers = append(a.ObservedLevelNumbers, int32(level))
		a.ObservedLocations = append(a.ObservedLocations, flat)
	}
	if depthOf != nil {
		if d, ok := depthOf(level); ok {
			a.DepthList = append(a.DepthList, d)
		}
	}
}

// Summarize reports the observed-row bounding box and, when a depth table
// was joined in, its min/max depth -- a one-line sanity check for the run
// log, accumulated with gonum/floats the way srreader.go folds per-species
// response slices with floats.Add/AddScaled.
func Summarize(a *Archive) string {
	if len(a.ObservedLatCoords) == 0 {
		return "no observed cells"
	}
	latMin, latMax := floats.Min(a.ObservedLatCoords), floats.Max(a.ObservedLatCoords)
	lonMin, lonMax := floats.Min(a.ObservedLonCoords), floats.Max(a.ObservedLonCoords)
	if len(a.DepthList) == 0 {
		return fmt.Sprintf("%d observed cells, lat [%.2f,%.2f], lon [%.2f,%.2f]",
			len(a.ObservedLatCoords), latMin, latMax, lonMin, lonMax)
	}
	return fmt.Sprintf("%d observed cells, lat [%.2f,%.2f], lon [%.2f,%.2f], depth [%.1f,%.1f] (sum %.1f)",
		len(a.ObservedLatCoords), latMin, latMax, lonMin, lonMax,
		floats.Min(a.DepthList), floats.Max(a.DepthList), floats.Sum(a.DepthList))
}
