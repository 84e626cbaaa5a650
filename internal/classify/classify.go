// Package classify sorts path lists into disjoint buckets.
//
// A Table is an ordered list of (predicate, tag) rules. Each path gets the
// tag of the first rule it matches, so moving a rule up or down changes where
// an ambiguous path ends up. Classify over a table gives the same buckets as
// running Partition rule by rule over what the previous rule left behind.
package classify

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Predicate decides whether a path belongs to a rule.
type Predicate interface {
	Match(path string) bool
	String() string
}

// Suffix matches paths ending in the given string, e.g. ".proto".
type Suffix string

func (s Suffix) Match(path string) bool { return strings.HasSuffix(path, string(s)) }
func (s Suffix) String() string         { return "*" + string(s) }

// Prefix matches paths starting with the given string, e.g. "third_party".
type Prefix string

func (p Prefix) Match(path string) bool { return strings.HasPrefix(path, string(p)) }
func (p Prefix) String() string         { return string(p) + "*" }

// Contains matches paths with the given string anywhere in them.
type Contains string

func (c Contains) Match(path string) bool { return strings.Contains(path, string(c)) }
func (c Contains) String() string         { return "*" + string(c) + "*" }

// Glob matches paths against a doublestar pattern such as
// "**/platform/windows/**". A malformed pattern matches nothing; use
// ValidGlob to reject those up front.
type Glob string

func (g Glob) Match(path string) bool {
	ok, err := doublestar.Match(string(g), path)
	return err == nil && ok
}
func (g Glob) String() string { return string(g) }

func ValidGlob(pattern string) error {
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid glob pattern %q", pattern)
	}
	return nil
}

// Partition splits paths into those matching p and the rest, keeping the
// input order on both sides.
func Partition(p Predicate, paths []string) (matched, unmatched []string) {
	for _, path := range paths {
		if p.Match(path) {
			matched = append(matched, path)
		} else {
			unmatched = append(unmatched, path)
		}
	}
	return matched, unmatched
}

// Tag names a bucket.
type Tag string

type Rule struct {
	Tag   Tag
	Match Predicate
}

type Table []Rule

// Result holds the buckets of one classification run. Paths that matched no
// rule are kept in Leftover, in input order.
type Result struct {
	Buckets  map[Tag][]string
	Leftover []string
}

// Bucket returns the paths tagged with tag, in input order.
func (r Result) Bucket(tag Tag) []string { return r.Buckets[tag] }

// Classify assigns each path the tag of the first matching rule.
func (t Table) Classify(paths []string) Result {
	res := Result{Buckets: make(map[Tag][]string)}
	for _, path := range paths {
		tag, ok := t.Lookup(path)
		if !ok {
			res.Leftover = append(res.Leftover, path)
			continue
		}
		res.Buckets[tag] = append(res.Buckets[tag], path)
	}
	return res
}

// Lookup returns the tag of the first rule matching path.
func (t Table) Lookup(path string) (Tag, bool) {
	for _, rule := range t {
		if rule.Match.Match(path) {
			return rule.Tag, true
		}
	}
	return "", false
}

// Before returns a copy of t with rules inserted ahead of the first rule
// tagged tag. If no rule carries tag they are appended.
func (t Table) Before(tag Tag, rules ...Rule) Table {
	i := slices.IndexFunc(t, func(r Rule) bool { return r.Tag == tag })
	if i < 0 {
		i = len(t)
	}
	out := slices.Clone(t)
	return slices.Insert(out, i, rules...)
}

func (t Table) String() string {
	parts := make([]string, len(t))
	for i, rule := range t {
		parts[i] = fmt.Sprintf("%s=%s", rule.Match, rule.Tag)
	}
	return strings.Join(parts, " -> ")
}
