package update

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/nerrad567/gray-logic-catalog/internal/catalog/schema"
	"github.com/nerrad567/gray-logic-catalog/internal/device"
)

// Snapshot is the exported canonical database.
type Snapshot struct {
	GeneratedAt time.Time `json:"generated_at"`

	// Categories maps category -> data point id -> definition.
	Categories map[string]map[int]schema.DataPointDefinition `json:"categories"`

	Devices []device.Entry `json:"devices"`
	Fusions []device.Merge `json:"fusions"`
}

// Snapshot captures the current schema database and active corpus.
func (o *Orchestrator) Snapshot(ctx context.Context) (*Snapshot, error) {
	merges, err := o.deps.Corpus.Merges(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing merges: %w", err)
	}
	return &Snapshot{
		GeneratedAt: o.now().UTC(),
		Categories:  o.deps.Schema.Export(),
		Devices:     o.deps.Corpus.Active(),
		Fusions:     merges,
	}, nil
}

// WriteSnapshot writes snap to path atomically: readers see either the
// previous file or the complete new one.
func WriteSnapshot(path string, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding: %w", ErrSnapshot, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("%w: creating directory: %w", ErrSnapshot, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %w", ErrSnapshot, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // no-op after rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec // write error takes precedence
		return fmt.Errorf("%w: writing: %w", ErrSnapshot, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck,gosec // sync error takes precedence
		return fmt.Errorf("%w: syncing: %w", ErrSnapshot, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing: %w", ErrSnapshot, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: renaming: %w", ErrSnapshot, err)
	}
	return nil
}

// LoadSnapshot reads a snapshot written by WriteSnapshot.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("%w: reading: %w", ErrSnapshot, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: decoding: %w", ErrSnapshot, err)
	}
	return &snap, nil
}

// Definitions flattens the snapshot schema ordered by category then data
// point id, ready to be merged back into a schema database.
func (s *Snapshot) Definitions() []schema.DataPointDefinition {
	categories := make([]string, 0, len(s.Categories))
	for c := range s.Categories {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var defs []schema.DataPointDefinition
	for _, c := range categories {
		ids := make([]int, 0, len(s.Categories[c]))
		for id := range s.Categories[c] {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			defs = append(defs, s.Categories[c][id])
		}
	}
	return defs
}
