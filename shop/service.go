// Package shop exposes carts, the product catalog and the external data
// lookup as the rawrcart.Shop gRPC service.
//
// The service is registered through a hand-written [grpc.ServiceDesc], so no
// protobuf code generation is required. Messages are plain Go structs; the
// package installs a codec that JSON-encodes them and delegates protobuf
// messages to the standard proto codec.
package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Keksclan/rawrcart/cache"
	"github.com/Keksclan/rawrcart/cart"
	"github.com/Keksclan/rawrcart/catalog"
	"github.com/Keksclan/rawrcart/contextx"
	"github.com/Keksclan/rawrcart/fetch"
	"github.com/Keksclan/rawrcart/remote"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Defaults for the service options.
const (
	DefaultAddTimeout  = 5 * time.Second
	DefaultExternalTTL = time.Minute
	DefaultExternalURL = "https://jsonplaceholder.typicode.com/todos/1"
	ExternalKey        = "external:data"
)

const emptyCartMessage = "cart is empty or was not found"

// RemoteFunc loads the external document.
type RemoteFunc func(ctx context.Context) (External, error)

// HTTPRemote returns a RemoteFunc that GETs url with c.
func HTTPRemote(c *remote.Client, url string) RemoteFunc {
	return func(ctx context.Context) (External, error) {
		var e External
		err := c.GetJSON(ctx, url, &e)
		return e, err
	}
}

// Fallback is served when the external document cannot be loaded.
func Fallback(now time.Time) External {
	ts := now.UTC()
	return External{
		ID:          0,
		Title:       "Service temporarily unavailable",
		Description: "The external service could not be reached. Please try again later.",
		Timestamp:   &ts,
	}
}

// Deps are the components the service delegates to.
type Deps struct {
	Carts    *cart.Pipeline
	Catalog  *catalog.Catalog
	External *fetch.Fetcher[External]
	Remote   RemoteFunc
}

// Option configures a Service.
type Option func(*Service)

// WithAddTimeout sets how long AddItem waits for a write when no policy
// grants a different budget.
func WithAddTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.addTimeout = d
		}
	}
}

// WithExternalTTL overrides DefaultExternalTTL.
func WithExternalTTL(d time.Duration) Option {
	return func(s *Service) { s.externalTTL = d }
}

// WithCacheBackend names the cache backend reported by Health.
func WithCacheBackend(name string) Option {
	return func(s *Service) { s.backend = name }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service implements Handler.
type Service struct {
	deps        Deps
	addTimeout  time.Duration
	externalTTL time.Duration
	backend     string
	logger      *slog.Logger
	now         func() time.Time
}

var _ Handler = (*Service)(nil)

// NewService builds a Service over deps.
func NewService(deps Deps, opts ...Option) *Service {
	s := &Service{
		deps:        deps,
		addTimeout:  DefaultAddTimeout,
		externalTTL: DefaultExternalTTL,
		backend:     "memory",
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AddItem waits for the write at most the policy budget for the method, or
// the service default. A deadline miss is reported as DeadlineExceeded even
// though the write still lands later.
func (s *Service) AddItem(ctx context.Context, req *AddItemRequest) (*AddItemResponse, error) {
	start := s.now()
	if req.CartID == "" {
		return nil, status.Error(codes.InvalidArgument, "cartId is required")
	}

	deadline := s.addTimeout
	if d, ok := contextx.TimeoutFromContext(ctx); ok {
		deadline = d
	}

	res, err := s.deps.Carts.AddItem(ctx, req.CartID, req.ProductID, req.Quantity, deadline)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AddItemResponse{
		Success:           res.Success,
		Cart:              res.Cart,
		ProcessingTime:    millis(res.ProcessingTime),
		TotalResponseTime: millis(s.now().Sub(start)),
	}, nil
}

// GetCart returns the cart, or an empty one with a message when it does
// not exist.
func (s *Service) GetCart(ctx context.Context, req *CartRequest) (*CartResponse, error) {
	start := s.now()
	if req.CartID == "" {
		return nil, status.Error(codes.InvalidArgument, "cartId is required")
	}

	c, err := s.deps.Carts.Get(req.CartID)
	resp := &CartResponse{Cart: c}
	switch {
	case errors.Is(err, cart.ErrNotFound):
		resp.Cart = cart.New(req.CartID)
		resp.Message = emptyCartMessage
	case err != nil:
		return nil, toStatus(err)
	}
	resp.ResponseTime = millis(s.now().Sub(start))
	return resp, nil
}

func (s *Service) ClearCart(ctx context.Context, req *CartRequest) (*ClearCartResponse, error) {
	if req.CartID == "" {
		return nil, status.Error(codes.InvalidArgument, "cartId is required")
	}
	s.deps.Carts.Clear(req.CartID)
	return &ClearCartResponse{Success: true, Message: fmt.Sprintf("cart %s cleared", req.CartID)}, nil
}

func (s *Service) UpdateItem(ctx context.Context, req *UpdateItemRequest) (*CartResponse, error) {
	start := s.now()
	if req.CartID == "" {
		return nil, status.Error(codes.InvalidArgument, "cartId is required")
	}
	c, err := s.deps.Carts.UpdateQuantity(req.CartID, req.ProductID, req.Quantity)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CartResponse{Cart: c, ResponseTime: millis(s.now().Sub(start))}, nil
}

func (s *Service) RemoveItem(ctx context.Context, req *RemoveItemRequest) (*CartResponse, error) {
	start := s.now()
	if req.CartID == "" {
		return nil, status.Error(codes.InvalidArgument, "cartId is required")
	}
	c, err := s.deps.Carts.RemoveItem(req.CartID, req.ProductID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CartResponse{Cart: c, ResponseTime: millis(s.now().Sub(start))}, nil
}

func (s *Service) ListProducts(ctx context.Context, req *ListProductsRequest) (*ListProductsResponse, error) {
	start := s.now()
	page, err := s.deps.Catalog.List(ctx, req.Page, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListProductsResponse{Page: page, ResponseTime: millis(s.now().Sub(start))}, nil
}

func (s *Service) GetProduct(ctx context.Context, req *ProductRequest) (*ProductResponse, error) {
	start := s.now()
	res, err := s.deps.Catalog.Get(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ProductResponse{
		Source:       string(res.Source),
		Data:         res.Value,
		ResponseTime: millis(s.now().Sub(start)),
		Cached:       res.Source == cache.SourceCache,
	}, nil
}

func (s *Service) InvalidateProduct(ctx context.Context, req *ProductRequest) (*InvalidateProductResponse, error) {
	if err := s.deps.Catalog.Invalidate(ctx, req.ID); err != nil {
		return nil, toStatus(err)
	}
	return &InvalidateProductResponse{Success: true}, nil
}

// FetchExternal never fails: remote errors degrade to the fallback document.
func (s *Service) FetchExternal(ctx context.Context, _ *ExternalRequest) (*ExternalResponse, error) {
	start := s.now()
	res := s.deps.External.Fetch(ctx, ExternalKey, s.externalTTL, s.deps.Remote, Fallback(start))
	return &ExternalResponse{
		Source:       string(res.Source),
		Data:         res.Value,
		ResponseTime: millis(s.now().Sub(start)),
	}, nil
}

func (s *Service) Health(ctx context.Context, _ *HealthRequest) (*HealthResponse, error) {
	return &HealthResponse{
		Status:   "ok",
		Cache:    s.backend,
		Carts:    s.deps.Carts.Len(),
		Products: s.deps.Catalog.Len(),
		Time:     s.now().UTC(),
	}, nil
}

// toStatus maps domain errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, cart.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, catalog.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, cart.ErrTimedOut),
		errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func millis(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}
