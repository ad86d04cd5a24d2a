package rawrcart

import (
	"time"

	"github.com/Keksclan/rawrcart/policy"
	"github.com/Keksclan/rawrcart/shop"
)

// Middleware priorities. Lower values run first, regardless of the order in
// which options are passed to NewServer.
const (
	PriorityRecovery  = 100
	PriorityRequestID = 200
	PriorityTracing   = 300
	PriorityPolicy    = 400
	PriorityLogging   = 500
	PriorityRateLimit = 600
	PriorityUser      = 1000
)

// DefaultL1MaxCost is the L1 capacity in entries, used by the server binary
// and when only WithCacheL2 is given.
const DefaultL1MaxCost = 10_000

// Method groups of DefaultPolicies.
const (
	GroupCartWrites = "cart-writes"
	GroupProducts   = "products"
	GroupExternal   = "external"
)

// DefaultOptions returns the recommended set of options for production use:
// panic recovery, request ids and the default method policies with a global
// limit of 100 requests per 15 minutes.
func DefaultOptions() []Option {
	return []Option{
		WithRecovery(),
		WithRequestID(),
		WithPolicies(DefaultPolicies()),
		WithGlobalWindow(100, 15*time.Minute),
	}
}

// DefaultPolicies throttles the expensive shop methods: 30 cart writes, 100
// product listings and 10 external fetches per minute. No group sets a
// Timeout, so AddItem keeps the service's configured deadline.
func DefaultPolicies() *policy.Resolver {
	return policy.NewResolver(
		policy.Group(GroupCartWrites).
			Exact(shop.MethodAddItem).
			Policy(policy.Policy{RateLimit: policy.Per(30, time.Minute)}),
		policy.Group(GroupProducts).
			Exact(shop.MethodListProducts).
			Policy(policy.Policy{RateLimit: policy.Per(100, time.Minute)}),
		policy.Group(GroupExternal).
			Exact(shop.MethodFetchExternal).
			Policy(policy.Policy{RateLimit: policy.Per(10, time.Minute)}),
	)
}
