package judgerpc

import (
	"context"
	"errors"
	"math"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/banshee-data/squat.report/internal/db"
	"github.com/banshee-data/squat.report/internal/pose"
	"github.com/banshee-data/squat.report/internal/squat"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memorySink records results in memory.
type memorySink struct {
	mu      sync.Mutex
	frames  int
	records []*db.ResultRecord
	err     error
}

func (m *memorySink) ObserveFrames(diags []squat.Diagnostic) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames += len(diags)
}

func (m *memorySink) Finalize(s *squat.Session, source string) (*db.ResultRecord, error) {
	res, err := s.Finalize()
	if err != nil {
		return nil, err
	}
	cfg := s.Config()
	rec := &db.ResultRecord{Label: s.Label(), Source: source, Result: res, Config: &cfg}
	return rec, m.Store(rec, db.Series{Raw: s.Samples(), Smoothed: s.Smoothed()})
}

func (m *memorySink) Store(rec *db.ResultRecord, series db.Series) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	rec.ID = "rec-1"
	m.records = append(m.records, rec)
	return nil
}

func startServer(t *testing.T, sink ResultSink) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	RegisterJudgeServer(gs, NewServer(squat.DefaultConfig(), sink))
	go func() {
		_ = gs.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		gs.Stop()
	})
	return NewClient(conn)
}

var sustainedRep = []float64{0, 0, 0.3, 0.6, 0.9, 0.9, 0.9, 0.6, 0.3, 0, 0, 0, 0, 0}

func visible(px, py float64) pose.Landmark {
	return pose.Landmark{X: px / 1000, Y: py / 1000, Visibility: 1, Present: true}
}

func depthFrame(i int, d float64) pose.Frame {
	const femur = 100.0
	kneeX, kneeY := 500.0, 600.0
	lm := make(pose.Landmarks, pose.NumLandmarks)
	lm[pose.LeftShoulder] = visible(400, 300)
	lm[pose.RightShoulder] = visible(460, 300)
	lm[pose.RightHip] = visible(kneeX-math.Sqrt(1-d*d)*femur, kneeY+d*femur)
	lm[pose.RightKnee] = visible(kneeX, kneeY)
	return pose.Frame{Index: i, Width: 1000, Height: 1000, Landmarks: lm}
}

func TestJudge_StreamDoubleSquat(t *testing.T) {
	sink := &memorySink{}
	c := startServer(t, sink)

	var frames []pose.Frame
	for rep := 0; rep < 2; rep++ {
		for _, d := range sustainedRep {
			frames = append(frames, depthFrame(len(frames), d))
		}
	}
	// An engine failure frame arrives with no landmarks.
	frames = append(frames, pose.Frame{Index: len(frames), Width: 1000, Height: 1000})

	rec, err := c.Judge(context.Background(), "streamed", frames)
	require.NoError(t, err)
	assert.Equal(t, "rec-1", rec.ID)
	assert.Equal(t, "streamed", rec.Label)
	assert.Equal(t, db.SourceRPC, rec.Source)
	assert.Equal(t, squat.VerdictPass, rec.Summary)
	assert.Equal(t, 2, rec.Pass)
	require.NotNil(t, rec.DepthRatioMax)
	assert.InDelta(t, 0.9, *rec.DepthRatioMax, 1e-6)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, len(frames), sink.frames)
	require.Len(t, sink.records, 1)
}

func TestJudge_EmptyStreamIsUnsure(t *testing.T) {
	c := startServer(t, &memorySink{})
	rec, err := c.Judge(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, squat.VerdictUnsure, rec.Summary)
	assert.Nil(t, rec.DepthRatioMax)
}

func TestJudge_InvalidFrame(t *testing.T) {
	c := startServer(t, &memorySink{})
	_, err := c.Judge(context.Background(), "bad", []pose.Frame{{Width: -5, Height: 10}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestJudge_SinkFailure(t *testing.T) {
	c := startServer(t, &memorySink{err: errors.New("disk full")})
	_, err := c.Judge(context.Background(), "x", []pose.Frame{depthFrame(0, 0.5)})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestSummarize(t *testing.T) {
	c := startServer(t, &memorySink{})

	series := []squat.Sample{squat.Null}
	for _, d := range sustainedRep {
		series = append(series, squat.Value(d))
	}
	rec, err := c.Summarize(context.Background(), "series", series)
	require.NoError(t, err)
	assert.Equal(t, squat.VerdictPass, rec.Summary)
	assert.Equal(t, 1, rec.Pass)
	assert.Equal(t, len(series), rec.Frames)
	require.NotNil(t, rec.Config)
	assert.Equal(t, squat.DefaultConfig(), *rec.Config)

	rec, err = c.Summarize(context.Background(), "empty", nil)
	require.NoError(t, err)
	assert.Equal(t, squat.VerdictUnsure, rec.Summary)
}

func TestSummarize_MissingSeries(t *testing.T) {
	c := startServer(t, &memorySink{})
	in, err := toStruct(map[string]string{"label": "no series"})
	require.NoError(t, err)
	err = c.cc.Invoke(context.Background(), summarizeMethod, in, in)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSummarize_NegativeSample(t *testing.T) {
	sink := &memorySink{}
	c := startServer(t, sink)
	_, err := c.Summarize(context.Background(), "bad", []squat.Sample{squat.Value(0.2), squat.Value(-1)})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Empty(t, sink.records)
}
