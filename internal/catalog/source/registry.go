package source

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger is the logging interface used by the registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry holds the configured sources and their refresh bookkeeping.
//
// Only LastCheckedAt changes after construction. Writes for different
// sources never interfere; the mutex makes each write atomic.
//
// Thread Safety: all methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	sources map[string]*Source

	store  StateStore
	now    func() time.Time
	logger Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithStateStore persists LastCheckedAt through store.
func WithStateStore(store StateStore) Option {
	return func(r *Registry) { r.store = store }
}

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry validates and registers sources in the given order.
func NewRegistry(sources []Source, opts ...Option) (*Registry, error) {
	r := &Registry{
		sources: make(map[string]*Source, len(sources)),
		now:     time.Now,
		logger:  noopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, s := range sources {
		if err := validate(s); err != nil {
			return nil, err
		}
		if _, dup := r.sources[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidSource, s.ID)
		}
		c := s.clone()
		r.sources[s.ID] = &c
		r.order = append(r.order, s.ID)
	}
	return r, nil
}

func validate(s Source) error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidSource)
	case s.RefreshInterval <= 0:
		return fmt.Errorf("%w: %s: refresh interval must be positive", ErrInvalidSource, s.ID)
	case len(s.Endpoints) == 0:
		return fmt.Errorf("%w: %s: at least one endpoint is required", ErrInvalidSource, s.ID)
	case s.RuleSet == "":
		return fmt.Errorf("%w: %s: rule set is required", ErrInvalidSource, s.ID)
	}
	return nil
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// Restore loads persisted LastCheckedAt values. Entries for sources that
// are no longer registered are ignored.
func (r *Registry) Restore(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	states, err := r.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("restoring source state: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, at := range states {
		s, ok := r.sources[id]
		if !ok {
			continue
		}
		t := at
		s.LastCheckedAt = &t
	}
	r.logger.Debug("source state restored", "count", len(states))
	return nil
}

// List returns copies of all sources in registration order.
func (r *Registry) List() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Source, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sources[id].clone())
	}
	return out
}

// IDs returns source IDs in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Get returns a copy of the source with the given ID.
func (r *Registry) Get(id string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sources[id]
	if !ok {
		return Source{}, fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	return s.clone(), nil
}

// Select returns the sources named in filter, in registration order.
// An empty filter selects every source. Unknown IDs are returned separately.
func (r *Registry) Select(filter []string) (selected []Source, unknown []string) {
	if len(filter) == 0 {
		return r.List(), nil
	}

	want := make(map[string]bool, len(filter))
	for _, id := range filter {
		want[id] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if want[id] {
			selected = append(selected, r.sources[id].clone())
			delete(want, id)
		}
	}
	for _, id := range filter {
		if want[id] {
			unknown = append(unknown, id)
			delete(want, id)
		}
	}
	return selected, unknown
}

// ShouldUpdate reports whether the source has never been checked or its
// refresh interval has elapsed. Unknown sources are never due.
func (r *Registry) ShouldUpdate(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sources[id]
	if !ok {
		return false
	}
	return s.Due(r.now())
}

// MarkChecked records now as the source's LastCheckedAt and persists it.
// The in-memory value is only updated when persistence succeeds.
func (r *Registry) MarkChecked(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sources[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}

	now := r.now().UTC()
	if r.store != nil {
		if err := r.store.Save(ctx, id, now); err != nil {
			return fmt.Errorf("persisting check time for %s: %w", id, err)
		}
	}
	s.LastCheckedAt = &now
	return nil
}
