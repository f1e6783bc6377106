package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The service only uses well-known protobuf types, so there is no .proto
// file to generate code from. The descriptors below are what protoc-gen-go-grpc
// would produce.

const ServiceName = "spfd.Show"

type ShowServer interface {
	GetVersion(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	RoutingTable(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	Database(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	Lookup(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req, Resp any](name string, call func(ShowServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}

			if interceptor == nil {
				return call(srv.(ShowServer), ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(name),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ShowServer), ctx, req.(*Req))
			}

			return interceptor(ctx, in, info, handler)
		},
	}
}

var ShowServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ShowServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetVersion", ShowServer.GetVersion),
		unary("RoutingTable", ShowServer.RoutingTable),
		unary("Database", ShowServer.Database),
		unary("Lookup", ShowServer.Lookup),
		unary("Shutdown", ShowServer.Shutdown),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "spfd/show",
}

func RegisterShowServer(s grpc.ServiceRegistrar, srv ShowServer) {
	s.RegisterService(&ShowServiceDesc, srv)
}

type ShowClient struct {
	cc grpc.ClientConnInterface
}

func NewShowClient(cc grpc.ClientConnInterface) *ShowClient {
	return &ShowClient{cc}
}

func (c *ShowClient) GetVersion(ctx context.Context, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, fullMethod("GetVersion"), &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *ShowClient) RoutingTable(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, fullMethod("RoutingTable"), &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *ShowClient) Database(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, fullMethod("Database"), &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *ShowClient) Lookup(ctx context.Context, addr string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("Lookup"), wrapperspb.String(addr), out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *ShowClient) Shutdown(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, fullMethod("Shutdown"), &emptypb.Empty{}, new(emptypb.Empty), opts...)
}
