// Package rpc exposes the solver as the gRPC service segmenter.v1.Segmenter.
// Requests and responses are google.protobuf.Struct documents, so the
// service needs no generated code.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "segmenter.v1.Segmenter"
	SolveMethod = "/" + ServiceName + "/Solve"
)

// SegmenterServer is the server API of the Segmenter service.
type SegmenterServer interface {
	// Solve takes {"query": <document>, "time_format": "iso"|"et"} and
	// returns the solved intervals.
	Solve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the Segmenter service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SegmenterServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Solve", Handler: solveHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "segmenter/v1/segmenter.proto",
}

// RegisterSegmenterServer registers srv on s.
func RegisterSegmenterServer(s grpc.ServiceRegistrar, srv SegmenterServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func solveHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SegmenterServer).Solve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SolveMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SegmenterServer).Solve(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls the Segmenter service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) Solve(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SolveMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
