package schema

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrInvalidDefinition is returned for a definition without a category or
// with an unknown value type.
var ErrInvalidDefinition = errors.New("schema: invalid data point definition")

// Database maps category -> dpId -> definition. It is safe for concurrent use.
type Database struct {
	mu         sync.RWMutex
	categories map[string]map[int]DataPointDefinition
	conflicts  int
}

// NewDatabase returns an empty database.
func NewDatabase() *Database {
	return &Database{categories: make(map[string]map[int]DataPointDefinition)}
}

// NewDefaultDatabase returns a database seeded with DefaultDefinitions.
func NewDefaultDatabase() *Database {
	db := NewDatabase()
	for _, def := range DefaultDefinitions() {
		if _, err := db.Add(def); err != nil {
			panic(err) // built-in table
		}
	}
	return db
}

// Add inserts def, resolving against any definition already stored under
// the same key. It reports whether the two disagreed.
func (db *Database) Add(def DataPointDefinition) (bool, error) {
	if err := validate(def); err != nil {
		return false, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	dps, ok := db.categories[def.CategoryID]
	if !ok {
		dps = make(map[int]DataPointDefinition)
		db.categories[def.CategoryID] = dps
	}

	existing, ok := dps[def.DPID]
	if !ok {
		dps[def.DPID] = def.clone()
		return false, nil
	}

	resolved, conflict := ResolveDataPoint(existing, def)
	dps[def.DPID] = resolved
	if conflict {
		db.conflicts++
	}
	return conflict, nil
}

func validate(def DataPointDefinition) error {
	if def.CategoryID == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidDefinition)
	}
	if !def.ValueType.Valid() {
		return fmt.Errorf("%w: value type %q", ErrInvalidDefinition, def.ValueType)
	}
	return nil
}

// Lookup returns the definition for (category, dpID).
func (db *Database) Lookup(category string, dpID int) (DataPointDefinition, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	def, ok := db.categories[category][dpID]
	if !ok {
		return DataPointDefinition{}, false
	}
	return def.clone(), true
}

// Category returns every definition of a category ordered by dpId.
func (db *Database) Category(category string) []DataPointDefinition {
	db.mu.RLock()
	defer db.mu.RUnlock()

	dps := db.categories[category]
	out := make([]DataPointDefinition, 0, len(dps))
	for _, def := range dps {
		out = append(out, def.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DPID < out[j].DPID })
	return out
}

// Categories returns the category ids in sorted order.
func (db *Database) Categories() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]string, 0, len(db.categories))
	for id := range db.categories {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Export returns a deep copy of the whole database.
func (db *Database) Export() map[string]map[int]DataPointDefinition {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make(map[string]map[int]DataPointDefinition, len(db.categories))
	for cat, dps := range db.categories {
		m := make(map[int]DataPointDefinition, len(dps))
		for id, def := range dps {
			m[id] = def.clone()
		}
		out[cat] = m
	}
	return out
}

// Len returns the number of definitions.
func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	n := 0
	for _, dps := range db.categories {
		n += len(dps)
	}
	return n
}

// Conflicts returns how many disagreeing definitions have been resolved.
func (db *Database) Conflicts() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conflicts
}
