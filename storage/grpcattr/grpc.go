package grpcattr

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "xdao.trustring.storage.grpcattr.v1.Attributes"

// Request metadata keys. Get carries the slot in the request body; Set
// carries it in metadata since the body is the value.
const (
	mdOwner = "x-trustring-owner"
	mdSlot  = "x-trustring-slot"
)

// AttributesServer is the server API for the Attributes gRPC service.
//
// Protobuf well-known types are used so this package does not require a
// protoc/codegen toolchain.
type AttributesServer interface {
	Get(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	Set(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
}

// UnimplementedAttributesServer can be embedded to have forward compatible implementations.
type UnimplementedAttributesServer struct{}

func (UnimplementedAttributesServer) Get(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Get not implemented")
}
func (UnimplementedAttributesServer) Set(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method Set not implemented")
}

// RegisterAttributesServer registers the Attributes service on a gRPC server.
func RegisterAttributesServer(s grpc.ServiceRegistrar, srv AttributesServer) {
	s.RegisterService(&Attributes_ServiceDesc, srv)
}

// AttributesClient is the client API for the Attributes gRPC service.
type AttributesClient interface {
	Get(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Set(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type attributesClient struct{ cc grpc.ClientConnInterface }

func NewAttributesClient(cc grpc.ClientConnInterface) AttributesClient {
	return &attributesClient{cc: cc}
}

func (c *attributesClient) Get(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Get", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *attributesClient) Set(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Set", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _Attributes_Get_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AttributesServer).Get(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Get"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AttributesServer).Get(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _Attributes_Set_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AttributesServer).Set(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Set"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AttributesServer).Set(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Attributes_ServiceDesc is the grpc.ServiceDesc for the Attributes service.
var Attributes_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AttributesServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Get", Handler: _Attributes_Get_Handler},
		{MethodName: "Set", Handler: _Attributes_Set_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "attributes.proto",
}
