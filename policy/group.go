package policy

import (
	"regexp"
	"strings"
	"time"
)

// RateLimitRule describes a rate-limiting policy for a group of methods.
type RateLimitRule struct {
	// Rate is the maximum number of requests allowed within Window.
	Rate int
	// Window is the time window for the rate limit.
	Window time.Duration
}

// Per returns a rule allowing n requests per window.
func Per(n int, window time.Duration) *RateLimitRule {
	return &RateLimitRule{Rate: n, Window: window}
}

// Policy holds the configuration that applies to a matched method group.
type Policy struct {
	// RateLimit, when set, gives the group its own limiter instead of the
	// global one.
	RateLimit *RateLimitRule
	// Timeout is the time budget handlers of the group may spend waiting on
	// slow work, such as the deadline of a cart write. Zero keeps the
	// handler's default.
	Timeout time.Duration
}

// matchKind distinguishes the three matching strategies.
type matchKind int

const (
	kindExact  matchKind = iota // highest priority
	kindPrefix                  // medium priority
	kindRegex                   // lowest priority
)

// rule is a single matching rule inside a group.
type rule struct {
	kind    matchKind
	pattern string         // used for exact and prefix matches
	re      *regexp.Regexp // used for regex matches
}

// GroupBuilder constructs a method group with one or more matching rules and
// a policy.
type GroupBuilder struct {
	name   string
	rules  []rule
	policy *Policy
}

// Group starts building a new method group with the given name.
func Group(name string) *GroupBuilder {
	return &GroupBuilder{name: name}
}

// Exact adds an exact-match rule for pattern.
func (g *GroupBuilder) Exact(pattern string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindExact, pattern: pattern})
	return g
}

// Prefix adds a prefix-match rule for pattern.
func (g *GroupBuilder) Prefix(pattern string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindPrefix, pattern: pattern})
	return g
}

// Regex adds a regex-match rule for pattern.
// The pattern is compiled immediately; an invalid regex will panic.
func (g *GroupBuilder) Regex(pattern string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindRegex, pattern: pattern, re: regexp.MustCompile(pattern)})
	return g
}

// match reports whether r matches fullMethod and how long the matched part
// is; the length breaks ties between rules of the same kind.
func (r rule) match(fullMethod string) (int, bool) {
	switch r.kind {
	case kindExact:
		return len(r.pattern), fullMethod == r.pattern
	case kindPrefix:
		return len(r.pattern), strings.HasPrefix(fullMethod, r.pattern)
	case kindRegex:
		if loc := r.re.FindStringIndex(fullMethod); loc != nil {
			return loc[1] - loc[0], true
		}
	}
	return 0, false
}

// Policy attaches a Policy to the group and returns the finished builder.
func (g *GroupBuilder) Policy(p Policy) *GroupBuilder {
	g.policy = &p
	return g
}
