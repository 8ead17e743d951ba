package inventoryv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/transport/grpcjson"
)

const (
	InventoryOracle_CheckQuantity_FullMethodName   = "/inventory.v1.InventoryOracle/CheckQuantity"
	InventoryOracle_CheckPrice_FullMethodName      = "/inventory.v1.InventoryOracle/CheckPrice"
	InventoryOracle_ReserveQuantity_FullMethodName = "/inventory.v1.InventoryOracle/ReserveQuantity"
	InventoryOracle_ReleaseQuantity_FullMethodName = "/inventory.v1.InventoryOracle/ReleaseQuantity"
)

// InventoryOracleClient: клиентский API inventory.v1.InventoryOracle.
type InventoryOracleClient interface {
	CheckQuantity(ctx context.Context, in *CheckQuantityRequest, opts ...grpc.CallOption) (*CheckQuantityResponse, error)
	CheckPrice(ctx context.Context, in *CheckPriceRequest, opts ...grpc.CallOption) (*CheckPriceResponse, error)
	ReserveQuantity(ctx context.Context, in *ReserveQuantityRequest, opts ...grpc.CallOption) (*ReserveQuantityResponse, error)
	ReleaseQuantity(ctx context.Context, in *ReleaseQuantityRequest, opts ...grpc.CallOption) (*ReleaseQuantityResponse, error)
}

type inventoryOracleClient struct {
	cc grpc.ClientConnInterface
}

// NewInventoryOracleClient создаёт клиента; вызовы идут через JSON-кодек.
func NewInventoryOracleClient(cc grpc.ClientConnInterface) InventoryOracleClient {
	return &inventoryOracleClient{cc: cc}
}

func (c *inventoryOracleClient) CheckQuantity(ctx context.Context, in *CheckQuantityRequest, opts ...grpc.CallOption) (*CheckQuantityResponse, error) {
	out := new(CheckQuantityResponse)
	if err := c.cc.Invoke(ctx, InventoryOracle_CheckQuantity_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inventoryOracleClient) CheckPrice(ctx context.Context, in *CheckPriceRequest, opts ...grpc.CallOption) (*CheckPriceResponse, error) {
	out := new(CheckPriceResponse)
	if err := c.cc.Invoke(ctx, InventoryOracle_CheckPrice_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inventoryOracleClient) ReserveQuantity(ctx context.Context, in *ReserveQuantityRequest, opts ...grpc.CallOption) (*ReserveQuantityResponse, error) {
	out := new(ReserveQuantityResponse)
	if err := c.cc.Invoke(ctx, InventoryOracle_ReserveQuantity_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inventoryOracleClient) ReleaseQuantity(ctx context.Context, in *ReleaseQuantityRequest, opts ...grpc.CallOption) (*ReleaseQuantityResponse, error) {
	out := new(ReleaseQuantityResponse)
	if err := c.cc.Invoke(ctx, InventoryOracle_ReleaseQuantity_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpcjson.CallOption()}, opts...)
}

// InventoryOracleServer: серверный API inventory.v1.InventoryOracle.
type InventoryOracleServer interface {
	CheckQuantity(context.Context, *CheckQuantityRequest) (*CheckQuantityResponse, error)
	CheckPrice(context.Context, *CheckPriceRequest) (*CheckPriceResponse, error)
	ReserveQuantity(context.Context, *ReserveQuantityRequest) (*ReserveQuantityResponse, error)
	ReleaseQuantity(context.Context, *ReleaseQuantityRequest) (*ReleaseQuantityResponse, error)
}

// UnimplementedInventoryOracleServer отвечает Unimplemented на все методы.
type UnimplementedInventoryOracleServer struct{}

func (UnimplementedInventoryOracleServer) CheckQuantity(context.Context, *CheckQuantityRequest) (*CheckQuantityResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CheckQuantity not implemented")
}

func (UnimplementedInventoryOracleServer) CheckPrice(context.Context, *CheckPriceRequest) (*CheckPriceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CheckPrice not implemented")
}

func (UnimplementedInventoryOracleServer) ReserveQuantity(context.Context, *ReserveQuantityRequest) (*ReserveQuantityResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ReserveQuantity not implemented")
}

func (UnimplementedInventoryOracleServer) ReleaseQuantity(context.Context, *ReleaseQuantityRequest) (*ReleaseQuantityResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ReleaseQuantity not implemented")
}

// RegisterInventoryOracleServer регистрирует реализацию на gRPC-сервере.
func RegisterInventoryOracleServer(s grpc.ServiceRegistrar, srv InventoryOracleServer) {
	s.RegisterService(&InventoryOracle_ServiceDesc, srv)
}

func _InventoryOracle_CheckQuantity_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CheckQuantityRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryOracleServer).CheckQuantity(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InventoryOracle_CheckQuantity_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryOracleServer).CheckQuantity(ctx, req.(*CheckQuantityRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _InventoryOracle_CheckPrice_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CheckPriceRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryOracleServer).CheckPrice(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InventoryOracle_CheckPrice_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryOracleServer).CheckPrice(ctx, req.(*CheckPriceRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _InventoryOracle_ReserveQuantity_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReserveQuantityRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryOracleServer).ReserveQuantity(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InventoryOracle_ReserveQuantity_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryOracleServer).ReserveQuantity(ctx, req.(*ReserveQuantityRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _InventoryOracle_ReleaseQuantity_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReleaseQuantityRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryOracleServer).ReleaseQuantity(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InventoryOracle_ReleaseQuantity_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryOracleServer).ReleaseQuantity(ctx, req.(*ReleaseQuantityRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// InventoryOracle_ServiceDesc: дескриптор сервиса для grpc.Server.
var InventoryOracle_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "inventory.v1.InventoryOracle",
	HandlerType: (*InventoryOracleServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckQuantity", Handler: _InventoryOracle_CheckQuantity_Handler},
		{MethodName: "CheckPrice", Handler: _InventoryOracle_CheckPrice_Handler},
		{MethodName: "ReserveQuantity", Handler: _InventoryOracle_ReserveQuantity_Handler},
		{MethodName: "ReleaseQuantity", Handler: _InventoryOracle_ReleaseQuantity_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "inventory/v1/inventory.go",
}
