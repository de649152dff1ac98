package api

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/goleak"

	"github.com/banshee-data/squat.report/internal/db"
	"github.com/banshee-data/squat.report/internal/pose"
)

var (
	apiTestTemplatePath string
)

type templateMain struct {
	m *testing.M
}

func (t templateMain) Run() int {
	return runAPITestMain(t.m)
}

// TestMain builds a migrated template database once and checks for leaked
// goroutines after all tests have run.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(templateMain{m})
}

func runAPITestMain(m *testing.M) int {
	tmpDir, err := os.MkdirTemp("", "squat-api-template-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create API test template directory: %v\n", err)
		return 1
	}

	apiTestTemplatePath = filepath.Join(tmpDir, "template.db")

	templateDB, err := db.NewDB(apiTestTemplatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize API test template DB: %v\n", err)
		_ = os.RemoveAll(tmpDir)
		return 1
	}

	if err := templateDB.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close API test template DB: %v\n", err)
		_ = os.RemoveAll(tmpDir)
		return 1
	}

	code := m.Run()
	_ = os.RemoveAll(tmpDir)
	return code
}

// setupTestDB opens a copy of the migrated template database.
func setupTestDB(t *testing.T) *db.DB {
	t.Helper()

	if apiTestTemplatePath == "" {
		t.Fatal("API test template DB not initialized")
	}

	dbPath := filepath.Join(t.TempDir(), "test.db")
	if err := copyFile(apiTestTemplatePath, dbPath); err != nil {
		t.Fatalf("failed to clone API test DB template: %v", err)
	}
	database, err := db.NewDB(dbPath)
	if err != nil {
		t.Fatalf("failed to open cloned DB: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}

// sustainedRep is one squat cycle holding the bottom position for three frames.
var sustainedRep = []float64{0, 0, 0.3, 0.6, 0.9, 0.9, 0.9, 0.6, 0.3, 0, 0, 0, 0, 0}

func visible(px, py float64) pose.Landmark {
	return pose.Landmark{X: px / 1000, Y: py / 1000, Visibility: 1, Present: true}
}

// depthFrame returns a side-on 1000x1000 frame whose right leg has a 100px
// femur and the given depth ratio.
func depthFrame(i int, d float64) pose.Frame {
	const femur = 100.0
	kneeX, kneeY := 500.0, 600.0
	lm := make(pose.Landmarks, pose.NumLandmarks)
	lm[pose.LeftShoulder] = visible(400, 300)
	lm[pose.RightShoulder] = visible(460, 300)
	lm[pose.RightHip] = visible(kneeX-math.Sqrt(1-d*d)*femur, kneeY+d*femur)
	lm[pose.RightKnee] = visible(kneeX, kneeY)
	return pose.Frame{Index: i, TimestampMs: int64(i) * 33, Width: 1000, Height: 1000, Landmarks: lm}
}

// doubleSquat returns two sustained squat cycles.
func doubleSquat() []pose.Frame {
	var frames []pose.Frame
	for rep := 0; rep < 2; rep++ {
		for _, d := range sustainedRep {
			frames = append(frames, depthFrame(len(frames), d))
		}
	}
	return frames
}
