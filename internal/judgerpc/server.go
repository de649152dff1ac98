package judgerpc

import (
	"context"
	"errors"
	"io"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/squat.report/internal/db"
	"github.com/banshee-data/squat.report/internal/pose"
	"github.com/banshee-data/squat.report/internal/squat"
)

// ResultSink finalizes sessions and stores their results.
type ResultSink interface {
	ObserveFrames(diags []squat.Diagnostic)
	Finalize(s *squat.Session, source string) (*db.ResultRecord, error)
	Store(rec *db.ResultRecord, series db.Series) error
}

// Ensure Server implements the gRPC interface.
var _ JudgeServer = (*Server)(nil)

// Server implements the Judge gRPC service.
type Server struct {
	policy squat.Config
	sink   ResultSink
}

// NewServer creates a Judge server that judges under policy and hands
// results to sink.
func NewServer(policy squat.Config, sink ResultSink) *Server {
	return &Server{policy: policy, sink: sink}
}

func labelFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(labelMetadataKey); len(v) > 0 {
		return v[0]
	}
	return ""
}

// Judge implements the client-streaming RPC. Each message is one frame.
// The session is finalized when the client closes its side; a cancelled
// stream drops the session without a result.
func (s *Server) Judge(stream Judge_JudgeServer) error {
	ctx := stream.Context()
	label := labelFromContext(ctx)
	session := squat.NewSession(s.policy, squat.WithLabel(label))
	logrus.WithField("label", label).Debug("[gRPC] Judge stream started")

	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logrus.WithField("label", label).Debugf("[gRPC] Judge stream aborted after %d frames: %v", session.FramesSeen(), err)
			return err
		}
		data, err := msg.MarshalJSON()
		if err != nil {
			return status.Errorf(codes.InvalidArgument, "frame %d: %v", session.FramesSeen(), err)
		}
		frame, err := pose.ParseFrame(data)
		if err != nil {
			return status.Errorf(codes.InvalidArgument, "frame %d: %v", session.FramesSeen(), err)
		}
		diag, _, err := session.Push(frame)
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		s.sink.ObserveFrames([]squat.Diagnostic{diag})
	}

	rec, err := s.sink.Finalize(session, db.SourceRPC)
	if err != nil {
		logrus.Errorf("[gRPC] failed to finalize session %q: %v", label, err)
		return status.Error(codes.Internal, "failed to finalize session")
	}
	out, err := toStruct(rec)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return stream.SendAndClose(out)
}

// summarizeRequest is the JSON form of a Summarize request.
type summarizeRequest struct {
	Label  string         `json:"label"`
	Series []squat.Sample `json:"series"`
}

// Summarize implements the unary RPC over a complete depth series.
func (s *Server) Summarize(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req summarizeRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.Series == nil {
		return nil, status.Error(codes.InvalidArgument, "series is required")
	}

	raw, err := squat.BufferSamples(req.Series, s.policy)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	res, smoothed := squat.Analyze(raw, s.policy)
	cfg := s.policy
	rec := &db.ResultRecord{Label: req.Label, Source: db.SourceRPC, Result: res, Config: &cfg}
	if err := s.sink.Store(rec, db.Series{Raw: raw, Smoothed: smoothed}); err != nil {
		logrus.Errorf("[gRPC] failed to store summary %q: %v", req.Label, err)
		return nil, status.Error(codes.Internal, "failed to store result")
	}
	out, err := toStruct(rec)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
