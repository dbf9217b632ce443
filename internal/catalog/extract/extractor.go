package extract

import (
	"fmt"
	"sort"
	"sync"
)

// Rule turns raw source text into records and hints.
//
// Rules must be pure: no I/O, no shared state. A rule may back-fill
// records added by earlier rules in the same set.
type Rule interface {
	Name() string
	Apply(sourceID, text string, acc *Result) error
}

// Logger is the logging interface used by the extractor.
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

// Extractor runs named rule sets over source text.
//
// Thread Safety: Extract is safe for concurrent use. Register should be
// called during setup.
type Extractor struct {
	mu       sync.RWMutex
	ruleSets map[string][]Rule
	logger   Logger
}

// New creates an Extractor with the given rule sets.
func New(ruleSets map[string][]Rule) *Extractor {
	e := &Extractor{
		ruleSets: make(map[string][]Rule, len(ruleSets)),
		logger:   noopLogger{},
	}
	for name, rules := range ruleSets {
		e.Register(name, rules...)
	}
	return e
}

// SetLogger sets the logger for the extractor.
func (e *Extractor) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	e.logger = logger
}

// Register replaces the rules of a rule set.
func (e *Extractor) Register(ruleSet string, rules ...Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ruleSets[ruleSet] = append([]Rule(nil), rules...)
}

// RuleSets returns the registered rule set names, sorted.
func (e *Extractor) RuleSets() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.ruleSets))
	for name := range e.ruleSets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extract applies every rule of ruleSet to text in order.
//
// A failing or panicking rule is recorded in Result.Errors and logged;
// the remaining rules still run, so the result may be partial. Text with
// no matches yields an empty result and no error.
func (e *Extractor) Extract(sourceID, ruleSet, text string) *Result {
	res := NewResult()

	e.mu.RLock()
	rules, ok := e.ruleSets[ruleSet]
	e.mu.RUnlock()

	if !ok {
		res.Errors = append(res.Errors, ParseError{
			SourceID: sourceID,
			Rule:     ruleSet,
			Err:      fmt.Errorf("%w: %s", ErrUnknownRuleSet, ruleSet),
		})
		return res
	}

	for _, rule := range rules {
		e.apply(rule, sourceID, text, res)
	}

	e.logger.Debug("extracted",
		"source", sourceID,
		"rule_set", ruleSet,
		"records", len(res.Records),
		"hints", len(res.Hints),
		"errors", len(res.Errors),
	)
	return res
}

// ExtractPages extracts each page in order and merges the results.
func (e *Extractor) ExtractPages(sourceID, ruleSet string, pages []string) *Result {
	res := NewResult()
	for _, page := range pages {
		res.Merge(e.Extract(sourceID, ruleSet, page))
	}
	return res
}

func (e *Extractor) apply(rule Rule, sourceID, text string, res *Result) {
	defer func() {
		if r := recover(); r != nil {
			pe := ParseError{
				SourceID: sourceID,
				Rule:     rule.Name(),
				Err:      fmt.Errorf("%w: %v", ErrRulePanic, r),
			}
			res.Errors = append(res.Errors, pe)
			e.logger.Error("extraction rule panicked", "source", sourceID, "rule", rule.Name(), "panic", fmt.Sprint(r))
		}
	}()

	if err := rule.Apply(sourceID, text, res); err != nil {
		res.Errors = append(res.Errors, ParseError{SourceID: sourceID, Rule: rule.Name(), Err: err})
		e.logger.Warn("extraction rule failed", "source", sourceID, "rule", rule.Name(), "error", err)
	}
}
