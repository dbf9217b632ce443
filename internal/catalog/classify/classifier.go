package classify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// defaultCount is used when the text carries no unit count.
	defaultCount = 1

	countPlaceholder = "{n}"

	// trimSet is removed from both ends of the cleaned text.
	trimSet = " \t,./|:;()[]"
)

var (
	separatorRe = regexp.MustCompile(`[_\-]+`)
	spaceRe     = regexp.MustCompile(`\s+`)

	// First digit sequence adjacent to a unit token: "2 gang", "3ch", "4 buttons".
	countRe = regexp.MustCompile(`(?i)\b(\d+)\s*(?:gang|channel|ch|button|key)s?\b`)

	slugRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// Classification is the detailed result of classifying one descriptor.
type Classification struct {
	Input   string `json:"input"`
	Cleaned string `json:"cleaned"`

	// Category is the interpolated category id, or Input on a miss.
	Category string `json:"category"`
	Class    string `json:"class,omitempty"`

	Rule     string `json:"rule,omitempty"`
	Priority int    `json:"priority,omitempty"`
	Matched  string `json:"matched,omitempty"`
	Count    int    `json:"count"`

	Classified bool `json:"classified"`
}

type compiledRule struct {
	Rule
	index int
	re    *regexp.Regexp
}

// Classifier evaluates an ordered rule table. It is immutable after
// construction and safe for concurrent use.
type Classifier struct {
	rules   []compiledRule
	brandRe *regexp.Regexp
}

// NewClassifier compiles rules and brand tokens.
func NewClassifier(rules []Rule, brands []string) (*Classifier, error) {
	c := &Classifier{rules: make([]compiledRule, 0, len(rules))}

	for i, r := range rules {
		if r.Category == "" || r.Class == "" {
			return nil, fmt.Errorf("%w: rule %d (%q) needs category and class", ErrInvalidRule, i, r.Name)
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %d (%q): %v", ErrInvalidRule, i, r.Name, err)
		}
		if r.Name == "" {
			r.Name = r.Category
		}
		c.rules = append(c.rules, compiledRule{Rule: r, index: i, re: re})
	}

	var quoted []string
	for _, b := range brands {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		// Brands are matched after separator normalisation.
		b = separatorRe.ReplaceAllString(b, " ")
		quoted = append(quoted, strings.ReplaceAll(regexp.QuoteMeta(b), " ", `\s+`))
	}
	if len(quoted) > 0 {
		c.brandRe = regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}

	return c, nil
}

// Default returns a Classifier over DefaultRules and DefaultBrands.
func Default() *Classifier {
	c, err := NewClassifier(DefaultRules(), DefaultBrands())
	if err != nil {
		panic(err) // built-in table
	}
	return c
}

// Classify returns the category id for name, or name itself when no rule
// matches.
func (c *Classifier) Classify(name string) string {
	return c.ClassifyDetailed(name).Category
}

// ClassifyDetailed classifies name and reports which rule won.
func (c *Classifier) ClassifyDetailed(name string) Classification {
	cleaned := c.Clean(name)
	result := Classification{
		Input:    name,
		Cleaned:  cleaned,
		Category: name,
		Count:    Count(cleaned),
	}
	if cleaned == "" {
		return result
	}

	var (
		best     *compiledRule
		bestSpan string
	)
	for i := range c.rules {
		r := &c.rules[i]
		span := longestMatch(r.re, cleaned)
		if span == "" {
			continue
		}
		if best == nil || better(r, span, best, bestSpan) {
			best, bestSpan = r, span
		}
	}
	if best == nil {
		return result
	}

	result.Category = strings.ReplaceAll(best.Category, countPlaceholder, strconv.Itoa(result.Count))
	result.Class = best.Class
	result.Rule = best.Name
	result.Priority = best.Priority
	result.Matched = bestSpan
	result.Classified = true
	return result
}

// better reports whether candidate r (matching span) beats the current best.
func better(r *compiledRule, span string, best *compiledRule, bestSpan string) bool {
	if r.Priority != best.Priority {
		return r.Priority < best.Priority
	}
	if len(span) != len(bestSpan) {
		return len(span) > len(bestSpan)
	}
	return r.index < best.index
}

// longestMatch returns the longest non-empty match of re in s.
func longestMatch(re *regexp.Regexp, s string) string {
	var best string
	for _, loc := range re.FindAllStringIndex(s, -1) {
		if loc[1]-loc[0] > len(best) {
			best = s[loc[0]:loc[1]]
		}
	}
	return best
}

// Clean normalises separators, removes brand tokens and trims the result.
func (c *Classifier) Clean(name string) string {
	s := separatorRe.ReplaceAllString(name, " ")
	if c.brandRe != nil {
		s = c.brandRe.ReplaceAllString(s, " ")
	}
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.Trim(s, trimSet)
}

// Count returns the first unit count in text, or 1.
func Count(text string) int {
	m := countRe.FindStringSubmatch(text)
	if m == nil {
		return defaultCount
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return defaultCount
	}
	return n
}

// Slug converts a model name into a lowercase identifier.
func Slug(name string) string {
	slug := slugRe.ReplaceAllString(strings.ToLower(name), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		slug = "device"
	}
	return slug
}
