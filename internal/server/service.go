// Package server exposes the pipeline over gRPC.
//
// Messages are google.protobuf.Struct values, so the service needs no generated code:
// the descriptor below is what protoc-gen-go-grpc would emit for
//
//	service Resolver {
//	  rpc Resolve(google.protobuf.Struct) returns (google.protobuf.Struct);
//	  rpc ResolveFile(google.protobuf.Struct) returns (google.protobuf.Struct);
//	  rpc ListRuns(google.protobuf.Struct) returns (google.protobuf.Struct);
//	}
package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "docmatch.v1.Resolver"

const (
	MethodResolve     = "/" + ServiceName + "/Resolve"
	MethodResolveFile = "/" + ServiceName + "/ResolveFile"
	MethodListRuns    = "/" + ServiceName + "/ListRuns"
)

// ResolverServer is the server API of docmatch.v1.Resolver.
type ResolverServer interface {
	Resolve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ResolveFile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListRuns(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(ResolverServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ResolverServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ResolverServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ResolverServiceDesc describes docmatch.v1.Resolver for grpc.Server.RegisterService.
var ResolverServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ResolverServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Resolve", Handler: unaryHandler(MethodResolve, ResolverServer.Resolve)},
		{MethodName: "ResolveFile", Handler: unaryHandler(MethodResolveFile, ResolverServer.ResolveFile)},
		{MethodName: "ListRuns", Handler: unaryHandler(MethodListRuns, ResolverServer.ListRuns)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "docmatch/v1/resolver.proto",
}

// RegisterResolverServer registers srv on s.
func RegisterResolverServer(s grpc.ServiceRegistrar, srv ResolverServer) {
	s.RegisterService(&ResolverServiceDesc, srv)
}

// ResolverClient calls docmatch.v1.Resolver.
type ResolverClient struct {
	cc grpc.ClientConnInterface
}

func NewResolverClient(cc grpc.ClientConnInterface) *ResolverClient {
	return &ResolverClient{cc: cc}
}

func (c *ResolverClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ResolverClient) Resolve(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodResolve, in, opts...)
}

func (c *ResolverClient) ResolveFile(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodResolveFile, in, opts...)
}

func (c *ResolverClient) ListRuns(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodListRuns, in, opts...)
}
