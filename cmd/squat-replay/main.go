// Command squat-replay judges a recorded landmark JSONL file offline.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/banshee-data/squat.report/internal/api"
	"github.com/banshee-data/squat.report/internal/config"
	"github.com/banshee-data/squat.report/internal/db"
	"github.com/banshee-data/squat.report/internal/judgerpc"
	"github.com/banshee-data/squat.report/internal/pose"
	"github.com/banshee-data/squat.report/internal/report"
	"github.com/banshee-data/squat.report/internal/squat"
	"github.com/banshee-data/squat.report/internal/version"
)

var (
	tuningPath  = flag.String("config", "", "Tuning config (.json or .toml); defaults to config/tuning.defaults.json")
	dbPath      = flag.String("db", "", "Store the result in this sqlite database")
	plotPath    = flag.String("plot", "", "Write a PNG depth chart to this path")
	htmlPath    = flag.String("html", "", "Write an HTML depth chart to this path")
	postURL     = flag.String("post", "", "Submit the result to a squat-server at this base URL")
	grpcAddr    = flag.String("grpc", "", "Judge remotely through the gRPC service at this address")
	label       = flag.String("label", "", "Session label; defaults to the recording file name")
	verbose     = flag.Bool("v", false, "Log session diagnostics and per-frame telemetry to stderr")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

type options struct {
	TuningPath string
	DBPath     string
	PlotPath   string
	HTMLPath   string
	PostURL    string
	GRPCAddr   string
	Label      string
	Verbose    bool
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] recording.jsonl\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println("squat-replay", version.String())
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	opts := options{
		TuningPath: *tuningPath,
		DBPath:     *dbPath,
		PlotPath:   *plotPath,
		HTMLPath:   *htmlPath,
		PostURL:    *postURL,
		GRPCAddr:   *grpcAddr,
		Label:      *label,
		Verbose:    *verbose,
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := replay(ctx, flag.Arg(0), opts, os.Stdout, os.Stderr); err != nil {
		logrus.Fatalf("replay failed: %v", err)
	}
}

// loadTuning reads path, or the repository defaults when path is empty.
// Without a defaults file the built-in policy is used.
func loadTuning(path string) (*config.TuningConfig, error) {
	if path != "" {
		return config.LoadTuningConfig(path)
	}
	cfg, err := config.LoadTuningConfig(config.DefaultConfigPath)
	if errors.Is(err, os.ErrNotExist) {
		return config.EmptyTuningConfig(), nil
	}
	return cfg, err
}

// replay judges the recording at path and writes the result as JSON to stdout.
func replay(ctx context.Context, path string, opts options, stdout, stderr io.Writer) (err error) {
	if opts.GRPCAddr != "" && (opts.PlotPath != "" || opts.HTMLPath != "" || opts.DBPath != "") {
		return errors.New("-grpc cannot be combined with -plot, -html or -db")
	}
	tuning, err := loadTuning(opts.TuningPath)
	if err != nil {
		return err
	}
	policy := tuning.Policy()

	if opts.Label == "" {
		opts.Label = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if opts.Verbose {
		squat.SetLogWriters(squat.LogWriters{Ops: stderr, Diag: stderr, Trace: stderr})
	} else {
		squat.SetLogWriters(squat.LogWriters{})
	}

	frames, err := pose.ReadFile(path)
	if err != nil {
		return err
	}

	var rec *db.ResultRecord
	if opts.GRPCAddr != "" {
		rec, err = judgeRemote(ctx, opts.GRPCAddr, opts.Label, frames)
		if err != nil {
			return err
		}
	} else {
		var database *db.DB
		if opts.DBPath != "" {
			database, err = db.NewDB(opts.DBPath)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, database.Close()) }()
		}

		session := squat.NewSession(policy, squat.WithLabel(opts.Label))
		session.PushBatch(frames)
		rec, err = api.NewRecorder(database, nil, nil).Finalize(session, db.SourceReplay)
		if err != nil {
			return err
		}
		if err := writeCharts(session, rec.Result, policy, opts); err != nil {
			return err
		}
		if opts.Verbose {
			for _, r := range squat.Reasons {
				fmt.Fprintf(stderr, "%-20s %d\n", r, session.ReasonCounts()[r])
			}
		}
	}

	if opts.PostURL != "" {
		remote, err := api.NewClient(opts.PostURL, nil).SubmitResult(ctx, opts.Label, db.SourceReplay, rec.Result)
		if err != nil {
			return fmt.Errorf("failed to submit result: %w", err)
		}
		fmt.Fprintf(stderr, "submitted as %s\n", remote.ID)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

func judgeRemote(ctx context.Context, addr, label string, frames []pose.Frame) (*db.ResultRecord, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()
	return judgerpc.NewClient(conn).Judge(ctx, label, frames)
}

func writeCharts(s *squat.Session, res squat.Result, policy squat.Config, opts options) error {
	if opts.PlotPath == "" && opts.HTMLPath == "" {
		return nil
	}
	chart := report.NewChart(opts.Label, s.Samples(), s.Smoothed(), res, policy)
	if opts.PlotPath != "" {
		if err := chart.SavePNG(opts.PlotPath); err != nil {
			return err
		}
	}
	if opts.HTMLPath != "" {
		f, err := os.Create(opts.HTMLPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", opts.HTMLPath, err)
		}
		if err := chart.RenderHTML(f); err != nil {
			return multierr.Append(err, f.Close())
		}
		return f.Close()
	}
	return nil
}
