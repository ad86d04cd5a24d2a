// Package policy groups gRPC methods by exact, prefix or regex rules and
// attaches a Policy (rate limit, time budget) to each group.
package policy

import "sync"

// Resolver holds a set of method groups and resolves a full gRPC method name
// to the best-matching group and its policy. Results are memoized per method,
// so groups must not be modified after NewResolver.
type Resolver struct {
	groups []*GroupBuilder
	cache  sync.Map // full method -> resolution
}

type resolution struct {
	group  string
	policy *Policy
	ok     bool
}

// NewResolver creates a Resolver from the supplied group builders.
func NewResolver(groups ...*GroupBuilder) *Resolver {
	return &Resolver{groups: groups}
}

// Resolve finds the best-matching group for fullMethod.
//
// Priority rules:
//   - Exact matches beat prefix matches, which beat regex matches.
//   - Among matches of the same kind the longer match wins.
//   - When two matches have equal kind and length the group that was
//     registered first (stable order) wins.
//
// If no group matches, or res is nil, ok is false.
func (res *Resolver) Resolve(fullMethod string) (groupName string, pol *Policy, ok bool) {
	if res == nil {
		return "", nil, false
	}
	if v, hit := res.cache.Load(fullMethod); hit {
		r := v.(resolution)
		return r.group, r.policy, r.ok
	}
	r := res.resolve(fullMethod)
	res.cache.Store(fullMethod, r)
	return r.group, r.policy, r.ok
}

func (res *Resolver) resolve(fullMethod string) resolution {
	var best resolution
	bestKind, bestLen := matchKind(0), 0

	for _, g := range res.groups {
		for _, r := range g.rules {
			n, matched := r.match(fullMethod)
			if !matched {
				continue
			}
			// A lower kind value means higher priority.
			if !best.ok || r.kind < bestKind || (r.kind == bestKind && n > bestLen) {
				best = resolution{group: g.name, policy: g.policy, ok: true}
				bestKind, bestLen = r.kind, n
			}
		}
	}
	return best
}
