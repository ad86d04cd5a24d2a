package shop

import (
	"time"

	"github.com/Keksclan/rawrcart/cart"
	"github.com/Keksclan/rawrcart/catalog"
)

// shopMsg is a marker interface satisfied by every request and response of
// the Shop service. The codec JSON-encodes values implementing it.
type shopMsg interface {
	isShopMsg()
}

// AddItemRequest adds Quantity of ProductID to cart CartID.
type AddItemRequest struct {
	CartID    string `json:"cartId"`
	ProductID int    `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// AddItemResponse reports a write that finished within its deadline.
type AddItemResponse struct {
	Success           bool      `json:"success"`
	Cart              cart.Cart `json:"cart"`
	ProcessingTime    string    `json:"processingTime"`
	TotalResponseTime string    `json:"totalResponseTime"`
}

// CartRequest names a cart.
type CartRequest struct {
	CartID string `json:"cartId"`
}

// CartResponse returns a cart. Message is set when the cart does not exist
// and an empty one is returned in its place.
type CartResponse struct {
	Cart         cart.Cart `json:"cart"`
	Message      string    `json:"message,omitempty"`
	ResponseTime string    `json:"responseTime"`
}

// ClearCartResponse acknowledges ClearCart.
type ClearCartResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// UpdateItemRequest sets the quantity of an existing line. Quantity <= 0
// removes the line.
type UpdateItemRequest struct {
	CartID    string `json:"cartId"`
	ProductID int    `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// RemoveItemRequest removes a line.
type RemoveItemRequest struct {
	CartID    string `json:"cartId"`
	ProductID int    `json:"productId"`
}

// ListProductsRequest selects a page of the catalog. Zero values take the
// catalog defaults.
type ListProductsRequest struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// ListProductsResponse is one catalog page.
type ListProductsResponse struct {
	catalog.Page
	ResponseTime string `json:"responseTime"`
}

// ProductRequest names a product.
type ProductRequest struct {
	ID int `json:"id"`
}

// ProductResponse returns a product and where it was read from.
type ProductResponse struct {
	Source       string          `json:"source"`
	Data         catalog.Product `json:"data"`
	ResponseTime string          `json:"responseTime"`
	Cached       bool            `json:"cached"`
}

// InvalidateProductResponse acknowledges InvalidateProduct.
type InvalidateProductResponse struct {
	Success bool `json:"success"`
}

// ExternalRequest has no fields.
type ExternalRequest struct{}

// External is the third-party document served by FetchExternal. The
// fallback fills Description and Timestamp instead of UserID and Completed.
type External struct {
	ID          int        `json:"id"`
	UserID      int        `json:"userId,omitempty"`
	Title       string     `json:"title"`
	Completed   bool       `json:"completed"`
	Description string     `json:"description,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// ExternalResponse tags External with its source: cache, live or fallback.
type ExternalResponse struct {
	Source       string   `json:"source"`
	Data         External `json:"data"`
	ResponseTime string   `json:"responseTime"`
}

// HealthRequest has no fields.
type HealthRequest struct{}

// HealthResponse reports liveness and store sizes.
type HealthResponse struct {
	Status   string    `json:"status"`
	Cache    string    `json:"cache"`
	Carts    int       `json:"carts"`
	Products int       `json:"products"`
	Time     time.Time `json:"time"`
}

func (*AddItemRequest) isShopMsg()            {}
func (*AddItemResponse) isShopMsg()           {}
func (*CartRequest) isShopMsg()               {}
func (*CartResponse) isShopMsg()              {}
func (*ClearCartResponse) isShopMsg()         {}
func (*UpdateItemRequest) isShopMsg()         {}
func (*RemoveItemRequest) isShopMsg()         {}
func (*ListProductsRequest) isShopMsg()       {}
func (*ListProductsResponse) isShopMsg()      {}
func (*ProductRequest) isShopMsg()            {}
func (*ProductResponse) isShopMsg()           {}
func (*InvalidateProductResponse) isShopMsg() {}
func (*ExternalRequest) isShopMsg()           {}
func (*ExternalResponse) isShopMsg()          {}
func (*HealthRequest) isShopMsg()             {}
func (*HealthResponse) isShopMsg()            {}
