package fusion

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-catalog/internal/catalog/schema"
	"github.com/nerrad567/gray-logic-catalog/internal/device"
)

// Logger defines the logging interface used by the Engine.
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

// DefaultPrefixPattern matches vendor and model-code prefixes on entry ids.
const DefaultPrefixPattern = `^(?:tuya|moes|zemismart|lonsonho|lidl|avatto|girier|ts\d{4}[a-z]?|_?tz[a-z0-9]{1,4})_`

// DefaultSuffixPattern matches trailing qualifiers on entry ids.
const DefaultSuffixPattern = `(?:_(?:v\d+|new|alt|generic|legacy|dup|copy))+$`

var unitSpellingRe = regexp.MustCompile(`(\d+)_(gang|ch|button)`)

// Options configures duplicate detection.
type Options struct {
	// MinSharedTokens requires members to share at least this many
	// underscore-separated id tokens with the primary. 0 disables the check.
	MinSharedTokens int

	// PrefixPattern and SuffixPattern override the defaults when set.
	PrefixPattern string
	SuffixPattern string
}

// Engine detects and merges duplicates. It holds no mutable state besides
// its logger and clock.
type Engine struct {
	opts     Options
	prefixRe *regexp.Regexp
	suffixRe *regexp.Regexp
	now      func() time.Time
	logger   Logger
}

// New creates an engine.
func New(opts Options) (*Engine, error) {
	if opts.PrefixPattern == "" {
		opts.PrefixPattern = DefaultPrefixPattern
	}
	if opts.SuffixPattern == "" {
		opts.SuffixPattern = DefaultSuffixPattern
	}
	if opts.MinSharedTokens < 0 {
		opts.MinSharedTokens = 0
	}

	prefixRe, err := regexp.Compile(opts.PrefixPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: prefix: %v", ErrInvalidPattern, err)
	}
	suffixRe, err := regexp.Compile(opts.SuffixPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: suffix: %v", ErrInvalidPattern, err)
	}

	return &Engine{
		opts:     opts,
		prefixRe: prefixRe,
		suffixRe: suffixRe,
		now:      time.Now,
		logger:   noopLogger{},
	}, nil
}

// Default returns an engine with the default patterns and no token check.
func Default() *Engine {
	e, err := New(Options{})
	if err != nil {
		panic(err) // built-in patterns
	}
	return e
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// SetClock overrides the time source used for Result.CreatedAt.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// StripPrefix removes repeated known prefixes from id.
func (e *Engine) StripPrefix(id string) string {
	id = strings.ToLower(id)
	for {
		loc := e.prefixRe.FindStringIndex(id)
		if loc == nil || loc[1] == len(id) {
			return id
		}
		id = id[loc[1]:]
	}
}

// StripSuffix removes known trailing qualifiers from id.
func (e *Engine) StripSuffix(id string) string {
	id = strings.ToLower(id)
	if loc := e.suffixRe.FindStringIndex(id); loc != nil && loc[0] > 0 {
		return id[:loc[0]]
	}
	return id
}

// Normalize returns the comparison key for an entry id.
func (e *Engine) Normalize(id string) string {
	return unitSpellingRe.ReplaceAllString(e.StripSuffix(e.StripPrefix(id)), "${1}${2}")
}

// FindDuplicates groups entries whose normalised ids match. Groups are
// returned in order of their primary's position in entries, and only
// groups with at least one member are returned.
func (e *Engine) FindDuplicates(entries []device.Entry) []DuplicateGroup {
	buckets := make(map[string][]int)
	var keys []string
	for i := range entries {
		k := e.Normalize(entries[i].ID)
		if _, ok := buckets[k]; !ok {
			keys = append(keys, k)
		}
		buckets[k] = append(buckets[k], i)
	}

	type indexed struct {
		first int
		group DuplicateGroup
	}
	var found []indexed

	for _, k := range keys {
		remaining := buckets[k]
		for len(remaining) > 1 {
			primary := entries[remaining[0]]
			group := DuplicateGroup{Primary: primary, Reasons: make(map[string]Reason)}
			seen := map[device.Key]bool{primary.Key(): true}

			var rest []int
			for _, idx := range remaining[1:] {
				member := entries[idx]
				if seen[member.Key()] {
					continue
				}
				if !e.sharesTokens(primary.ID, member.ID) {
					rest = append(rest, idx)
					continue
				}
				seen[member.Key()] = true
				group.Members = append(group.Members, member)
				group.Reasons[member.Key().String()] = e.reason(primary, member)
			}

			if len(group.Members) > 0 {
				found = append(found, indexed{first: remaining[0], group: group})
			}
			remaining = rest
		}
	}

	// A split bucket yields groups that start after later buckets.
	sort.SliceStable(found, func(i, j int) bool { return found[i].first < found[j].first })

	groups := make([]DuplicateGroup, len(found))
	for i, f := range found {
		groups[i] = f.group
		e.logger.Debug("duplicate group found",
			"primary", f.group.Primary.Key().String(),
			"members", len(f.group.Members),
		)
	}
	return groups
}

func (e *Engine) reason(primary, member device.Entry) Reason {
	p, m := strings.ToLower(primary.ID), strings.ToLower(member.ID)
	switch {
	case p == m:
		return ReasonCategoryRace
	case e.StripPrefix(p) == e.StripPrefix(m):
		return ReasonPrefix
	case e.StripSuffix(p) == e.StripSuffix(m):
		return ReasonSuffix
	default:
		return ReasonNormalized
	}
}

func (e *Engine) sharesTokens(a, b string) bool {
	if e.opts.MinSharedTokens == 0 {
		return true
	}
	tokens := make(map[string]bool)
	for _, t := range strings.Split(strings.ToLower(a), "_") {
		if t != "" {
			tokens[t] = true
		}
	}
	shared := 0
	for _, t := range strings.Split(strings.ToLower(b), "_") {
		if tokens[t] {
			shared++
			delete(tokens, t)
		}
	}
	return shared >= e.opts.MinSharedTokens
}

// Merge unions every member of g into its primary.
//
// The result keeps the primary's id and category. Set fields keep the
// primary's order with new members appended in member order; attributes
// already present by name are never overwritten.
func (e *Engine) Merge(g DuplicateGroup) (Result, error) {
	if len(g.Members) == 0 {
		return Result{}, ErrEmptyGroup
	}

	canonical := g.Primary.DeepCopy()
	canonical.ArchivedAt = nil
	canonical.MergedInto = ""
	// Normalise the primary's own sets so the result never carries duplicates.
	canonical.Capabilities = device.Union(canonical.Capabilities)
	canonical.Clusters = device.Union(canonical.Clusters)
	canonical.ManufacturerIDs = device.Union(canonical.ManufacturerIDs)
	canonical.ProductIDs = device.Union(canonical.ProductIDs)
	canonical.Provenance = device.Union(canonical.Provenance)

	mergedFrom := []string{g.Primary.ID}
	var retired []device.Key
	for i := range g.Members {
		m := &g.Members[i]
		canonical.Absorb(m)
		mergedFrom = append(mergedFrom, m.ID)
		if m.Key() != canonical.Key() {
			retired = append(retired, m.Key())
		}
	}

	for i := range g.Members {
		if !canonical.Covers(&g.Members[i]) || !canonical.Covers(&g.Primary) {
			return Result{}, fmt.Errorf("%w: merged %s does not cover %s",
				ErrFusionConflict, canonical.Key(), g.Members[i].Key())
		}
	}

	r := Result{
		ID:                   device.GenerateID(),
		CanonicalID:          canonical.ID,
		Category:             canonical.Category,
		MergedFrom:           device.Union(mergedFrom),
		FinalCapabilities:    canonical.Capabilities,
		FinalManufacturerIDs: canonical.ManufacturerIDs,
		FinalProductIDs:      canonical.ProductIDs,
		FinalClusters:        canonical.Clusters,
		Provenance:           canonical.Provenance,
		Attributes:           canonical.Attributes,
		Retired:              retired,
		CreatedAt:            e.now().UTC(),
		canonical:            *canonical,
	}
	return r, nil
}

// MergeDefinitions adds data point definitions to db, resolving collisions
// by confidence and provenance. It returns how many collisions disagreed.
func (e *Engine) MergeDefinitions(db *schema.Database, defs []schema.DataPointDefinition) (int, error) {
	conflicts := 0
	for _, d := range defs {
		conflict, err := db.Add(d)
		if err != nil {
			return conflicts, fmt.Errorf("adding %s/%d: %w", d.CategoryID, d.DPID, err)
		}
		if conflict {
			conflicts++
			e.logger.Debug("data point conflict resolved",
				"category", d.CategoryID,
				"dp_id", d.DPID,
				"challenger", d.Name,
			)
		}
	}
	return conflicts, nil
}
