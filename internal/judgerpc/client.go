package judgerpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/squat.report/internal/db"
	"github.com/banshee-data/squat.report/internal/pose"
	"github.com/banshee-data/squat.report/internal/squat"
)

// Client calls a remote Judge service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an open connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Judge streams frames to the server and returns the finalized result.
func (c *Client) Judge(ctx context.Context, label string, frames []pose.Frame) (*db.ResultRecord, error) {
	if label != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, labelMetadataKey, label)
	}
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], judgeMethod)
	if err != nil {
		return nil, fmt.Errorf("failed to open judge stream: %w", err)
	}
	for _, f := range frames {
		msg, err := toStruct(f)
		if err != nil {
			return nil, err
		}
		if err := stream.SendMsg(msg); err != nil {
			// The server ended the stream; RecvMsg reports its status.
			break
		}
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("failed to close judge stream: %w", err)
	}
	out := new(structpb.Struct)
	if err := stream.RecvMsg(out); err != nil {
		return nil, err
	}
	var rec db.ResultRecord
	if err := fromStruct(out, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Summarize sends a complete depth series for analysis.
func (c *Client) Summarize(ctx context.Context, label string, series []squat.Sample) (*db.ResultRecord, error) {
	if series == nil {
		series = []squat.Sample{}
	}
	in, err := toStruct(summarizeRequest{Label: label, Series: series})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, summarizeMethod, in, out); err != nil {
		return nil, err
	}
	var rec db.ResultRecord
	if err := fromStruct(out, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
