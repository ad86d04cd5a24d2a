// Package catalog serves a generated, read-only product list. Single product
// lookups go through a cache-aside Front.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"strconv"
	"time"

	"github.com/Keksclan/rawrcart/cache"
	"github.com/Keksclan/rawrcart/internal/clock"
	"github.com/Keksclan/rawrcart/metrics"
)

// ErrNotFound is returned for product IDs outside the catalog.
var ErrNotFound = errors.New("catalog: product not found")

// Paging and cache defaults.
const (
	DefaultSize          = 500
	DefaultLimit         = 10
	MaxLimit             = 50
	DefaultTTL           = 5 * time.Minute
	DefaultListLatency   = 50 * time.Millisecond
	DefaultLookupLatency = 100 * time.Millisecond
)

// Categories lists the categories generated products are spread over.
var Categories = []string{"Electronics", "Books", "Furniture", "Sports", "Fashion"}

// Product is a catalog entry.
type Product struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Price       int       `json:"price"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Page is one slice of the product list.
type Page struct {
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	Total      int       `json:"total"`
	TotalPages int       `json:"totalPages"`
	Data       []Product `json:"data"`
}

// Generate builds n products with IDs 1..n. Prices, stock, categories and
// creation days come from src; a nil src is seeded from the clock.
func Generate(n int, src rand.Source) []Product {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	r := rand.New(src)
	now := time.Now().UTC()

	products := make([]Product, n)
	for i := range products {
		id := i + 1
		products[i] = Product{
			ID:          id,
			Name:        fmt.Sprintf("Product %d", id),
			Price:       r.Intn(1000) + 10,
			Description: fmt.Sprintf("Description of product %d", id),
			Category:    Categories[r.Intn(len(Categories))],
			Stock:       r.Intn(100),
			CreatedAt:   now.Add(-time.Duration(r.Intn(30)) * 24 * time.Hour).Truncate(time.Millisecond),
		}
	}
	return products
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLatency sets the simulated query latency of List and of a Get miss.
func WithLatency(list, lookup time.Duration) Option {
	return func(c *Catalog) {
		c.listLatency = list
		c.lookupLatency = lookup
	}
}

// WithTTL overrides DefaultTTL for cached products.
func WithTTL(ttl time.Duration) Option {
	return func(c *Catalog) { c.ttl = ttl }
}

// WithClock sets the clock driving the simulated latency.
func WithClock(cl clock.Clock) Option {
	return func(c *Catalog) {
		if cl != nil {
			c.clock = cl
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records product cache lookups on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Catalog) { c.metrics = m }
}

// Catalog is safe for concurrent use; the product slice is never modified
// after New.
type Catalog struct {
	products []Product
	front    *cache.Front[Product]

	listLatency   time.Duration
	lookupLatency time.Duration
	ttl           time.Duration
	clock         clock.Clock
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

// New returns a Catalog over products, caching lookups in store. Product IDs
// must be 1..len(products) in order, as Generate produces them.
func New(products []Product, store cache.Cache, opts ...Option) *Catalog {
	c := &Catalog{
		products:      products,
		listLatency:   DefaultListLatency,
		lookupLatency: DefaultLookupLatency,
		ttl:           DefaultTTL,
		clock:         clock.Real(),
		logger:        slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	c.front = cache.NewFront[Product](store,
		cache.WithName("product"),
		cache.WithLogger(c.logger),
		cache.WithMetrics(c.metrics),
	)
	return c
}

// Len returns the number of products.
func (c *Catalog) Len() int { return len(c.products) }

// List returns one page of products. page is clamped to >= 1; limit defaults
// to DefaultLimit when <= 0 and is capped at MaxLimit. A page past the end
// has no data.
func (c *Catalog) List(ctx context.Context, page, limit int) (Page, error) {
	page = max(page, 1)
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	if err := c.sleep(ctx, c.listLatency); err != nil {
		return Page{}, err
	}

	total := len(c.products)
	start := total
	if page-1 <= total/limit {
		start = min((page-1)*limit, total)
	}
	end := min(start+limit, total)

	c.logger.DebugContext(ctx, "listing products", slog.Int("page", page), slog.Int("limit", limit))
	return Page{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
		Data:       slices.Clone(c.products[start:end]),
	}, nil
}

// Get returns the product with id, from the cache when possible. Unknown IDs
// yield ErrNotFound and are not cached.
func (c *Catalog) Get(ctx context.Context, id int) (cache.Result[Product], error) {
	return c.front.Get(ctx, Key(id), c.ttl, func(ctx context.Context) (Product, error) {
		if err := c.sleep(ctx, c.lookupLatency); err != nil {
			return Product{}, err
		}
		if id < 1 || id > len(c.products) {
			return Product{}, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return c.products[id-1], nil
	})
}

// Invalidate drops the cached copy of product id.
func (c *Catalog) Invalidate(ctx context.Context, id int) error {
	return c.front.Invalidate(ctx, Key(id))
}

// Key is the cache key of product id.
func Key(id int) string {
	return "product:" + strconv.Itoa(id)
}

func (c *Catalog) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := c.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
