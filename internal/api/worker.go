// Package api exposes the worker over gRPC. Messages are protobuf
// well-known types so no generated code is needed: commands and window
// reports travel as google.protobuf.Struct.
package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "chatnotify.v1.Worker"

// WorkerServer is the server API for the Worker service.
type WorkerServer interface {
	Command(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Push(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	Click(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	ReportWindow(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	CloseWindow(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	WatchWindow(*wrapperspb.StringValue, grpc.ServerStreamingServer[structpb.Struct]) error
	WatchEvents(*wrapperspb.StringValue, grpc.ServerStreamingServer[structpb.Struct]) error
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	History(context.Context, *wrapperspb.Int32Value) (*structpb.Struct, error)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req, Resp any](name string, call func(WorkerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(WorkerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(WorkerServer), ctx, req.(*Req))
			})
		},
	}
}

// WorkerServiceDesc describes the Worker service for grpc.Server.RegisterService.
var WorkerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*WorkerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Command", WorkerServer.Command),
		unary("Push", WorkerServer.Push),
		unary("Click", WorkerServer.Click),
		unary("ReportWindow", WorkerServer.ReportWindow),
		unary("CloseWindow", WorkerServer.CloseWindow),
		unary("Status", WorkerServer.Status),
		unary("History", WorkerServer.History),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchWindow",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(wrapperspb.StringValue)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(WorkerServer).WatchWindow(in, &grpc.GenericServerStream[wrapperspb.StringValue, structpb.Struct]{ServerStream: stream})
			},
		},
		{
			StreamName:    "WatchEvents",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(wrapperspb.StringValue)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(WorkerServer).WatchEvents(in, &grpc.GenericServerStream[wrapperspb.StringValue, structpb.Struct]{ServerStream: stream})
			},
		},
	},
	Metadata: "chatnotify/v1/worker.proto",
}

// RegisterWorkerServer registers impl on s.
func RegisterWorkerServer(s grpc.ServiceRegistrar, impl WorkerServer) {
	s.RegisterService(&WorkerServiceDesc, impl)
}

// WorkerClient is the client API for the Worker service.
type WorkerClient struct {
	cc grpc.ClientConnInterface
}

func NewWorkerClient(cc grpc.ClientConnInterface) *WorkerClient {
	return &WorkerClient{cc: cc}
}

func invoke[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, name string, in *Req, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, fullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *WorkerClient) Command(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[structpb.Struct, emptypb.Empty](ctx, c.cc, "Command", in, opts...)
}

func (c *WorkerClient) Push(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[wrapperspb.BytesValue, emptypb.Empty](ctx, c.cc, "Push", in, opts...)
}

func (c *WorkerClient) Click(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[wrapperspb.StringValue, emptypb.Empty](ctx, c.cc, "Click", in, opts...)
}

func (c *WorkerClient) ReportWindow(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return invoke[structpb.Struct, wrapperspb.StringValue](ctx, c.cc, "ReportWindow", in, opts...)
}

func (c *WorkerClient) CloseWindow(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[wrapperspb.StringValue, emptypb.Empty](ctx, c.cc, "CloseWindow", in, opts...)
}

func (c *WorkerClient) Status(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[emptypb.Empty, structpb.Struct](ctx, c.cc, "Status", in, opts...)
}

func (c *WorkerClient) History(ctx context.Context, in *wrapperspb.Int32Value, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[wrapperspb.Int32Value, structpb.Struct](ctx, c.cc, "History", in, opts...)
}

// WatchWindow streams focus requests for a window.
func (c *WorkerClient) WatchWindow(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &WorkerServiceDesc.Streams[0], fullMethod("WatchWindow"), opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[wrapperspb.StringValue, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// WatchEvents streams worker events whose kind starts with the given prefix.
func (c *WorkerClient) WatchEvents(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &WorkerServiceDesc.Streams[1], fullMethod("WatchEvents"), opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[wrapperspb.StringValue, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
