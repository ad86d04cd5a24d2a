package shop

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "rawrcart.Shop"

// Full method names, as seen by interceptors and policy matchers.
const (
	MethodAddItem           = "/" + ServiceName + "/AddItem"
	MethodGetCart           = "/" + ServiceName + "/GetCart"
	MethodClearCart         = "/" + ServiceName + "/ClearCart"
	MethodUpdateItem        = "/" + ServiceName + "/UpdateItem"
	MethodRemoveItem        = "/" + ServiceName + "/RemoveItem"
	MethodListProducts      = "/" + ServiceName + "/ListProducts"
	MethodGetProduct        = "/" + ServiceName + "/GetProduct"
	MethodInvalidateProduct = "/" + ServiceName + "/InvalidateProduct"
	MethodFetchExternal     = "/" + ServiceName + "/FetchExternal"
	MethodHealth            = "/" + ServiceName + "/Health"
)

// Handler is the interface a Shop implementation must satisfy.
type Handler interface {
	AddItem(ctx context.Context, req *AddItemRequest) (*AddItemResponse, error)
	GetCart(ctx context.Context, req *CartRequest) (*CartResponse, error)
	ClearCart(ctx context.Context, req *CartRequest) (*ClearCartResponse, error)
	UpdateItem(ctx context.Context, req *UpdateItemRequest) (*CartResponse, error)
	RemoveItem(ctx context.Context, req *RemoveItemRequest) (*CartResponse, error)
	ListProducts(ctx context.Context, req *ListProductsRequest) (*ListProductsResponse, error)
	GetProduct(ctx context.Context, req *ProductRequest) (*ProductResponse, error)
	InvalidateProduct(ctx context.Context, req *ProductRequest) (*InvalidateProductResponse, error)
	FetchExternal(ctx context.Context, req *ExternalRequest) (*ExternalResponse, error)
	Health(ctx context.Context, req *HealthRequest) (*HealthResponse, error)
}

// ServiceDesc is the grpc.ServiceDesc for the rawrcart.Shop service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		unary("AddItem", Handler.AddItem),
		unary("GetCart", Handler.GetCart),
		unary("ClearCart", Handler.ClearCart),
		unary("UpdateItem", Handler.UpdateItem),
		unary("RemoveItem", Handler.RemoveItem),
		unary("ListProducts", Handler.ListProducts),
		unary("GetProduct", Handler.GetProduct),
		unary("InvalidateProduct", Handler.InvalidateProduct),
		unary("FetchExternal", Handler.FetchExternal),
		unary("Health", Handler.Health),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rawrcart/shop.proto",
}

// unary builds the MethodDesc for one request/response method.
func unary[Req, Resp any](name string, call func(Handler, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(Handler), ctx, req)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod,
			}
			handler := func(ctx context.Context, r any) (any, error) {
				return call(srv.(Handler), ctx, r.(*Req))
			}
			return interceptor(ctx, req, info, handler)
		},
	}
}

// Register registers a Shop implementation on s.
func Register(s grpc.ServiceRegistrar, h Handler) {
	s.RegisterService(&ServiceDesc, h)
}
