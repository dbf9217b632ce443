package device

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Corpus.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// maxMergeHops bounds how far Upsert follows merged_into links.
const maxMergeHops = 16

// Corpus is the cached, persistent set of device entries.
//
// Reads are served from memory. Writers are serialised, and the cache is
// changed only after the repository commits.
//
// All public methods are thread-safe.
type Corpus struct {
	repo Repository

	writeMu sync.Mutex // serialises Upsert and ApplyMerge

	cacheMu sync.RWMutex
	entries map[Key]*Entry
	order   []Key // first-seen order

	now    func() time.Time
	logger Logger
}

// NewCorpus creates a corpus over repo. Call Load before use.
func NewCorpus(repo Repository) *Corpus {
	return &Corpus{
		repo:    repo,
		entries: make(map[Key]*Entry),
		now:     time.Now,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the corpus.
func (c *Corpus) SetLogger(logger Logger) {
	c.logger = logger
}

// SetClock overrides the time source.
func (c *Corpus) SetClock(now func() time.Time) {
	c.now = now
}

// Load reloads every entry from the repository into the cache.
func (c *Corpus) Load(ctx context.Context) error {
	entries, err := c.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading entries: %w", err)
	}

	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	c.entries = make(map[Key]*Entry, len(entries))
	c.order = make([]Key, 0, len(entries))
	active := 0
	for i := range entries {
		e := entries[i].DeepCopy()
		c.entries[e.Key()] = e
		c.order = append(c.order, e.Key())
		if e.Active() {
			active++
		}
	}

	c.logger.Info("corpus loaded", "entries", len(entries), "active", active)
	return nil
}

// Active returns deep copies of every active entry in first-seen order.
func (c *Corpus) Active() []Entry {
	return c.filter(func(e *Entry) bool { return e.Active() })
}

// ByCategory returns active entries of one category in first-seen order.
func (c *Corpus) ByCategory(category string) []Entry {
	return c.filter(func(e *Entry) bool { return e.Active() && e.Category == category })
}

// Archived returns entries retired by merges.
func (c *Corpus) Archived() []Entry {
	return c.filter(func(e *Entry) bool { return !e.Active() })
}

// FindByID returns active entries with the given id under any category.
func (c *Corpus) FindByID(id string) []Entry {
	return c.filter(func(e *Entry) bool { return e.Active() && e.ID == id })
}

func (c *Corpus) filter(keep func(*Entry) bool) []Entry {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()

	out := make([]Entry, 0, len(c.order))
	for _, k := range c.order {
		if e := c.entries[k]; keep(e) {
			out = append(out, *e.DeepCopy())
		}
	}
	return out
}

// Get returns a deep copy of the entry stored under key, archived or not.
func (c *Corpus) Get(key Key) (*Entry, error) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return e.DeepCopy(), nil
}

// Count returns the number of active entries.
func (c *Corpus) Count() int {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()

	n := 0
	for _, e := range c.entries {
		if e.Active() {
			n++
		}
	}
	return n
}

// Upsert unions incoming entries into the corpus as one transaction.
//
// An incoming entry whose key was retired by a merge is folded into the
// entry it was merged into, so re-scraping a source never resurrects a
// duplicate. Validation failures return ErrInvalidEntry and storage
// failures ErrCorpusWrite; in both cases nothing is applied.
func (c *Corpus) Upsert(ctx context.Context, incoming []Entry) (UpsertStats, error) {
	var stats UpsertStats
	if len(incoming) == 0 {
		return stats, nil
	}
	for i := range incoming {
		if err := ValidateEntry(&incoming[i]); err != nil {
			return stats, fmt.Errorf("entry %s: %w", incoming[i].Key(), err)
		}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	now := c.now().UTC()
	pending := make(map[Key]*Entry)
	var order []Key

	for i := range incoming {
		in := &incoming[i]
		key := c.resolve(in.Key())

		target, ok := pending[key]
		if !ok {
			if existing, found := c.lookup(key); found {
				target = existing
			} else {
				target = &Entry{ID: key.ID, Category: key.Category, CreatedAt: now}
				stats.Created++
			}
			pending[key] = target
			order = append(order, key)
		}
		target.Absorb(in)
		if target.CreatedAt.IsZero() {
			target.CreatedAt = now
		}
	}

	batch := make([]Entry, 0, len(order))
	for _, k := range order {
		e := pending[k]
		// The stored entry must pass the same checks ApplyMerge applies.
		if err := ValidateEntry(e); err != nil {
			return UpsertStats{}, fmt.Errorf("entry %s: %w", k, err)
		}
		if prev, found := c.lookup(k); found {
			if prev.Covers(e) && e.Name == prev.Name {
				stats.Unchanged++
				continue
			}
			stats.Updated++
		}
		e.UpdatedAt = now
		batch = append(batch, *e)
	}
	if len(batch) == 0 {
		return stats, nil
	}

	if err := c.repo.SaveEntries(ctx, batch); err != nil {
		return UpsertStats{}, fmt.Errorf("%w: %w", ErrCorpusWrite, err)
	}

	c.cacheMu.Lock()
	for i := range batch {
		e := batch[i].DeepCopy()
		if _, ok := c.entries[e.Key()]; !ok {
			c.order = append(c.order, e.Key())
		}
		c.entries[e.Key()] = e
	}
	c.cacheMu.Unlock()

	c.logger.Debug("corpus upserted", "created", stats.Created, "updated", stats.Updated, "unchanged", stats.Unchanged)
	return stats, nil
}

// lookup returns a deep copy of the cached entry for key.
func (c *Corpus) lookup(key Key) (*Entry, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.DeepCopy(), true
}

// resolve follows merged_into links from an archived key to the active
// entry that replaced it.
func (c *Corpus) resolve(key Key) Key {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()

	for range maxMergeHops {
		e, ok := c.entries[key]
		if !ok || e.Active() {
			return key
		}
		next, ok := ParseKey(e.MergedInto)
		if !ok {
			return key
		}
		key = next
	}
	return key
}

// ApplyMerge commits a merge: the canonical entry replaces the stored one
// and every retired key is archived, all in one transaction.
//
// The canonical entry must cover everything held by the stored canonical
// and by each retired entry; otherwise ErrLossyMerge is returned and
// nothing changes.
func (c *Corpus) ApplyMerge(ctx context.Context, m Merge) error {
	if err := ValidateEntry(&m.Canonical); err != nil {
		return err
	}
	canonicalKey := m.Canonical.Key()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if prev, ok := c.lookup(canonicalKey); ok {
		if !prev.Active() {
			return fmt.Errorf("canonical %s is archived: %w", canonicalKey, ErrEntryNotFound)
		}
		if !m.Canonical.Covers(prev) {
			return fmt.Errorf("canonical %s: %w", canonicalKey, ErrLossyMerge)
		}
		if m.Canonical.CreatedAt.IsZero() {
			m.Canonical.CreatedAt = prev.CreatedAt
		}
	}

	for _, k := range m.Retired {
		if k == canonicalKey {
			return fmt.Errorf("%w: %s retires itself", ErrInvalidEntry, k)
		}
		member, ok := c.lookup(k)
		if !ok || !member.Active() {
			return fmt.Errorf("retiring %s: %w", k, ErrEntryNotFound)
		}
		if !m.Canonical.Covers(member) {
			return fmt.Errorf("retiring %s: %w", k, ErrLossyMerge)
		}
	}

	now := c.now().UTC()
	if m.ID == "" {
		m.ID = GenerateID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.Canonical.CreatedAt.IsZero() {
		m.Canonical.CreatedAt = now
	}
	m.Canonical.UpdatedAt = now
	m.Canonical.ArchivedAt = nil
	m.Canonical.MergedInto = ""

	if err := c.repo.ApplyMerge(ctx, m); err != nil {
		return fmt.Errorf("%w: %w", ErrCorpusWrite, err)
	}

	c.cacheMu.Lock()
	if _, ok := c.entries[canonicalKey]; !ok {
		c.order = append(c.order, canonicalKey)
	}
	c.entries[canonicalKey] = m.Canonical.DeepCopy()
	archivedAt := m.CreatedAt
	for _, k := range m.Retired {
		e := c.entries[k]
		e.ArchivedAt = &archivedAt
		e.MergedInto = canonicalKey.String()
		e.UpdatedAt = now
	}
	c.cacheMu.Unlock()

	c.logger.Info("merge applied",
		"merge_id", m.ID,
		"canonical", canonicalKey.String(),
		"retired", len(m.Retired),
	)
	return nil
}

// Merges returns the recorded merge history.
func (c *Corpus) Merges(ctx context.Context) ([]Merge, error) {
	merges, err := c.repo.ListMerges(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing merges: %w", err)
	}
	return merges, nil
}
