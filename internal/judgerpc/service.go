// Package judgerpc provides the gRPC Judge service. Messages travel as
// google.protobuf.Struct values holding the same JSON documents the HTTP API
// accepts and returns.
package judgerpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName      = "squat.v1.Judge"
	judgeMethod      = "/" + serviceName + "/Judge"
	summarizeMethod  = "/" + serviceName + "/Summarize"
	labelMetadataKey = "x-squat-label"
)

// JudgeServer is the server API for the Judge service.
type JudgeServer interface {
	// Judge consumes a stream of frames and replies with the finalized result.
	Judge(Judge_JudgeServer) error
	// Summarize analyses a complete depth series.
	Summarize(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Judge_JudgeServer is the server side of a Judge stream.
type Judge_JudgeServer interface {
	SendAndClose(*structpb.Struct) error
	Recv() (*structpb.Struct, error)
	grpc.ServerStream
}

type judgeJudgeServer struct {
	grpc.ServerStream
}

func (x *judgeJudgeServer) SendAndClose(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func (x *judgeJudgeServer) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func judgeHandler(srv any, stream grpc.ServerStream) error {
	return srv.(JudgeServer).Judge(&judgeJudgeServer{stream})
}

func summarizeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(JudgeServer).Summarize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: summarizeMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(JudgeServer).Summarize(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes the Judge service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*JudgeServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Summarize",
			Handler:    summarizeHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Judge",
			Handler:       judgeHandler,
			ClientStreams: true,
		},
	},
	Metadata: "squat/v1/judge.proto",
}

// RegisterJudgeServer registers srv on s.
func RegisterJudgeServer(s grpc.ServiceRegistrar, srv JudgeServer) {
	s.RegisterService(&ServiceDesc, srv)
}
