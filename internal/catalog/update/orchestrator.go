package update

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-catalog/internal/catalog/classify"
	"github.com/nerrad567/gray-logic-catalog/internal/catalog/extract"
	"github.com/nerrad567/gray-logic-catalog/internal/catalog/fusion"
	"github.com/nerrad567/gray-logic-catalog/internal/catalog/schema"
	"github.com/nerrad567/gray-logic-catalog/internal/catalog/source"
	"github.com/nerrad567/gray-logic-catalog/internal/device"
)

// DefaultConcurrency bounds concurrent source fetches when Config leaves it zero.
const DefaultConcurrency = 4

// Logger defines the logging interface used by the Orchestrator.
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

// Fetcher retrieves raw source text.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
	FetchPages(ctx context.Context, rawURL, param string, pages int) ([]string, error)
}

// Notifier receives every completed report. Errors are logged only.
type Notifier interface {
	NotifyReport(ctx context.Context, r *Report) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, r *Report) error

// NotifyReport implements Notifier.
func (f NotifierFunc) NotifyReport(ctx context.Context, r *Report) error {
	return f(ctx, r)
}

// Deps are the components a cycle drives. All are required.
type Deps struct {
	Registry   *source.Registry
	Fetcher    Fetcher
	Extractor  *extract.Extractor
	Classifier *classify.Classifier
	Fusion     *fusion.Engine
	Schema     *schema.Database
	Corpus     *device.Corpus
}

// Config tunes cycles.
type Config struct {
	// Concurrency bounds how many sources are fetched at once.
	Concurrency int

	// SnapshotPath receives the canonical database after every cycle.
	// Empty disables the snapshot.
	SnapshotPath string
}

// Options selects what a single cycle refreshes.
type Options struct {
	// ForceUpdate refreshes sources even when their interval has not elapsed.
	ForceUpdate bool

	// SourceFilter restricts the cycle to these source ids. Empty means all.
	SourceFilter []string
}

// Orchestrator runs update cycles.
//
// Thread Safety: all methods are safe for concurrent use. Fetching runs
// in parallel across cycles; ingestion and fusion are serialised.
type Orchestrator struct {
	deps Deps
	cfg  Config

	// cycleMu serialises corpus and schema mutation.
	cycleMu sync.Mutex

	notifiersMu sync.RWMutex
	notifiers   []Notifier

	schedMu   sync.Mutex
	schedules map[string]*schedule

	now    func() time.Time
	logger Logger
}

// New creates an orchestrator.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	missing := map[string]bool{
		"registry":   deps.Registry == nil,
		"fetcher":    deps.Fetcher == nil,
		"extractor":  deps.Extractor == nil,
		"classifier": deps.Classifier == nil,
		"fusion":     deps.Fusion == nil,
		"schema":     deps.Schema == nil,
		"corpus":     deps.Corpus == nil,
	}
	for _, name := range []string{"registry", "fetcher", "extractor", "classifier", "fusion", "schema", "corpus"} {
		if missing[name] {
			return nil, fmt.Errorf("%w: %s", ErrMissingDependency, name)
		}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	return &Orchestrator{
		deps:      deps,
		cfg:       cfg,
		schedules: make(map[string]*schedule),
		now:       time.Now,
		logger:    noopLogger{},
	}, nil
}

// SetLogger sets the logger for the orchestrator.
func (o *Orchestrator) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	o.logger = logger
}

// SetClock overrides the time source used for report timestamps.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// AddNotifier registers n to receive every report.
func (o *Orchestrator) AddNotifier(n Notifier) {
	o.notifiersMu.Lock()
	defer o.notifiersMu.Unlock()
	o.notifiers = append(o.notifiers, n)
}

// UpdateAll runs one cycle over the sources selected by opts.
func (o *Orchestrator) UpdateAll(ctx context.Context, opts Options) *Report {
	start := o.now()
	report := newReport(uuid.NewString(), start, opts.ForceUpdate)

	selected, unknown := o.deps.Registry.Select(opts.SourceFilter)
	for _, id := range unknown {
		report.fail(id, SourceResult{}, fmt.Errorf("%w: %s", source.ErrUnknownSource, id))
	}

	var due []source.Source
	for _, s := range selected {
		if !opts.ForceUpdate && !o.deps.Registry.ShouldUpdate(s.ID) {
			report.Sources[s.ID] = SourceResult{Status: StatusSkipped}
			continue
		}
		due = append(due, s)
	}

	o.logger.Info("update cycle started",
		"report_id", report.ID,
		"selected", len(selected),
		"due", len(due),
		"forced", opts.ForceUpdate,
	)

	// Each goroutine writes only its own slot.
	collected := make([]collection, len(due))
	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for i, s := range due {
		g.Go(func() error {
			collected[i] = o.collect(ctx, s)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // collectors never return errors

	o.cycleMu.Lock()
	for i, s := range due {
		o.ingest(ctx, s, collected[i], report)
	}
	o.fuse(ctx, report)
	report.TotalDevices = o.deps.Corpus.Count()
	o.writeSnapshot(ctx)
	o.cycleMu.Unlock()

	report.DurationMS = o.now().Sub(start).Milliseconds()

	o.logger.Info("update cycle completed",
		"report_id", report.ID,
		"succeeded", report.Count(StatusSuccess),
		"failed", report.Count(StatusFailed),
		"skipped", report.Count(StatusSkipped),
		"total_devices", report.TotalDevices,
		"merged", report.Fusion.Merged,
		"duration_ms", report.DurationMS,
	)

	o.notify(ctx, report)
	return report
}

// UpdateSource runs a cycle for a single source.
func (o *Orchestrator) UpdateSource(ctx context.Context, id string, force bool) (*Report, error) {
	if _, err := o.deps.Registry.Get(id); err != nil {
		return nil, err
	}
	return o.UpdateAll(ctx, Options{ForceUpdate: force, SourceFilter: []string{id}}), nil
}

// collection is the fetch and extract outcome for one source.
type collection struct {
	result   *extract.Result
	err      error
	duration time.Duration
}

// collect fetches every endpoint of s in order and extracts the text.
// The first failing endpoint fails the whole source.
func (o *Orchestrator) collect(ctx context.Context, s source.Source) collection {
	start := time.Now()
	res := extract.NewResult()

	for _, name := range s.EndpointNames() {
		url := s.Endpoints[name]

		if s.Pages > 1 {
			pages, err := o.deps.Fetcher.FetchPages(ctx, url, s.PageParam, s.Pages)
			if err != nil {
				return collection{err: fmt.Errorf("endpoint %s: %w", name, err), duration: time.Since(start)}
			}
			res.Merge(o.deps.Extractor.ExtractPages(s.ID, s.RuleSet, pages))
			continue
		}

		text, err := o.deps.Fetcher.Fetch(ctx, url)
		if err != nil {
			return collection{err: fmt.Errorf("endpoint %s: %w", name, err), duration: time.Since(start)}
		}
		res.Merge(o.deps.Extractor.Extract(s.ID, s.RuleSet, text))
	}

	return collection{result: res, duration: time.Since(start)}
}

// ingest writes one source's extraction into the corpus and schema.
// Callers must hold cycleMu.
func (o *Orchestrator) ingest(ctx context.Context, s source.Source, c collection, report *Report) {
	res := SourceResult{DurationMS: c.duration.Milliseconds()}

	if c.err != nil {
		o.logger.Warn("source fetch failed", "source", s.ID, "error", c.err)
		report.fail(s.ID, res, c.err)
		return
	}

	res.Records = len(c.result.Records)
	res.Hints = len(c.result.Hints)
	for _, pe := range c.result.Errors {
		res.ParseErrors = append(res.ParseErrors, pe.Error())
	}
	if len(res.ParseErrors) > 0 {
		o.logger.Warn("source extracted with parse errors", "source", s.ID, "errors", len(res.ParseErrors))
	}

	batch := o.buildBatch(s.ID, c.result)

	conflicts, err := o.deps.Fusion.MergeDefinitions(o.deps.Schema, batch.definitions)
	res.DataPointConflicts = conflicts
	if err != nil {
		// Hints are best-effort; entries are still ingested.
		o.logger.Warn("data point merge stopped", "source", s.ID, "error", err)
		res.ParseErrors = append(res.ParseErrors, err.Error())
	}

	stats, err := o.deps.Corpus.Upsert(ctx, o.withCapabilities(batch))
	if err != nil {
		o.logger.Error("corpus write failed", "source", s.ID, "error", err)
		report.fail(s.ID, res, err)
		return
	}
	res.Created, res.Updated, res.Unchanged = stats.Created, stats.Updated, stats.Unchanged

	if err := o.deps.Registry.MarkChecked(ctx, s.ID); err != nil {
		// The data is in; the source is simply due again next cycle.
		o.logger.Warn("marking source checked failed", "source", s.ID, "error", err)
	}

	res.Status = StatusSuccess
	report.Sources[s.ID] = res

	o.logger.Info("source ingested",
		"source", s.ID,
		"records", res.Records,
		"created", res.Created,
		"updated", res.Updated,
		"datapoint_conflicts", res.DataPointConflicts,
	)
}

// fuse merges duplicates across the active corpus. Each group is applied
// in its own transaction; a failed group is reported and left untouched.
// Callers must hold cycleMu.
func (o *Orchestrator) fuse(ctx context.Context, report *Report) {
	groups := o.deps.Fusion.FindDuplicates(o.deps.Corpus.Active())
	report.Fusion.Groups = len(groups)

	for _, g := range groups {
		result, err := o.deps.Fusion.Merge(g)
		if err == nil {
			err = o.deps.Corpus.ApplyMerge(ctx, result.ToMerge())
		}
		if err != nil {
			o.logger.Warn("fusion group skipped", "primary", g.Primary.Key().String(), "error", err)
			report.Fusion.Errors = append(report.Fusion.Errors, fmt.Sprintf("%s: %v", g.Primary.Key(), err))
			continue
		}
		report.Fusion.Merged++
		report.Fusion.Retired += len(result.Retired)
		report.Fusion.Results = append(report.Fusion.Results, result)
	}
}

func (o *Orchestrator) notify(ctx context.Context, report *Report) {
	o.notifiersMu.RLock()
	notifiers := append([]Notifier(nil), o.notifiers...)
	o.notifiersMu.RUnlock()

	for _, n := range notifiers {
		if err := safeNotify(ctx, n, report); err != nil {
			o.logger.Warn("report notification failed", "report_id", report.ID, "error", err)
		}
	}
}

func safeNotify(ctx context.Context, n Notifier, report *Report) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()
	return n.NotifyReport(ctx, report)
}

func (o *Orchestrator) writeSnapshot(ctx context.Context) {
	if o.cfg.SnapshotPath == "" {
		return
	}
	snap, err := o.Snapshot(ctx)
	if err == nil {
		err = WriteSnapshot(o.cfg.SnapshotPath, snap)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		o.logger.Error("snapshot write failed", "path", o.cfg.SnapshotPath, "error", err)
	}
}
