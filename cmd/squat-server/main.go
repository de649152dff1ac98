package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"google.golang.org/grpc"

	"github.com/banshee-data/squat.report/internal/api"
	"github.com/banshee-data/squat.report/internal/config"
	"github.com/banshee-data/squat.report/internal/db"
	"github.com/banshee-data/squat.report/internal/judgerpc"
	"github.com/banshee-data/squat.report/internal/metrics"
	"github.com/banshee-data/squat.report/internal/monitoring"
	"github.com/banshee-data/squat.report/internal/squat"
	"github.com/banshee-data/squat.report/internal/version"
)

var (
	configPath  = flag.String("config", "config/server.toml", "Path to the server TOML config")
	env         = flag.String("env", "development", "Config section to use (development or production)")
	listen      = flag.String("listen", "", "Override the HTTP listen address")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// reapInterval is how often idle sessions are checked against the TTL.
const reapInterval = 30 * time.Second

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("squat-server", version.String())
		return
	}

	cfg, err := config.LoadServerConfig(*configPath, *env)
	if err != nil {
		logrus.Fatalf("failed to load server config: %v", err)
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}

	if flag.Arg(0) == "migrate" {
		if err := db.RunMigrateCommand(flag.Args()[1:], cfg.GetDBPath(), os.Stdout); err != nil {
			logrus.Fatalf("migrate: %v", err)
		}
		return
	}

	logCloser := monitoring.Setup(monitoring.LoggerSetupParams{
		LogFileName:   cfg.LogsPath,
		LogToStdout:   cfg.LogToStdout,
		LogLevel:      cfg.LogLevel,
		LogFormatJSON: cfg.LogFormatJSON,
	})
	squatLogs := squat.LogWriters{Ops: logrus.StandardLogger().Out}
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		squatLogs.Diag = logrus.StandardLogger().Out
	}
	squat.SetLogWriters(squatLogs)
	monitoring.Logf("squat-server %s starting (env=%s)", version.String(), *env)

	tuning := config.EmptyTuningConfig()
	if cfg.TuningPath != "" {
		tuning, err = config.LoadTuningConfig(cfg.TuningPath)
		if err != nil {
			logrus.Fatalf("failed to load tuning config: %v", err)
		}
	}

	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		logrus.Fatalf("failed to connect to database: %v", err)
	}

	registry := metrics.SetupPrometheus()
	m := metrics.NewManager("squat", "server", registry)
	server := api.NewServer(database, tuning, m, cfg.GetSessionTTL(), api.WithGatherer(registry))

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		server.Sessions().Run(ctx, reapInterval)
		monitoring.Logf("session reaper terminated")
	}()

	var shutdownErr error
	var errMu sync.Mutex
	recordErr := func(err error) {
		errMu.Lock()
		defer errMu.Unlock()
		shutdownErr = multierr.Append(shutdownErr, err)
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := server.ServeMux()
		if cfg.AdminRoutes {
			if err := database.AttachAdminRoutes(mux); err != nil {
				logrus.Errorf("failed to attach admin routes: %v", err)
			}
		}

		httpServer := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           api.LoggingMiddleware(m, mux),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			monitoring.Logf("HTTP API listening on %s", cfg.ListenAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.Errorf("failed to start HTTP server: %v", err)
				stop()
			}
		}()

		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			recordErr(fmt.Errorf("http shutdown: %w", err))
		}
		monitoring.Logf("HTTP server terminated")
	}()

	// gRPC server goroutine
	if cfg.GRPCAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()

			lis, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				logrus.Errorf("failed to listen on %s: %v", cfg.GRPCAddr, err)
				stop()
				return
			}
			gs := grpc.NewServer()
			judgerpc.RegisterJudgeServer(gs, judgerpc.NewServer(tuning.Policy(), server.Recorder()))

			go func() {
				monitoring.Logf("gRPC Judge service listening on %s", cfg.GRPCAddr)
				if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
					logrus.Errorf("gRPC server failed: %v", err)
					stop()
				}
			}()

			<-ctx.Done()
			gs.GracefulStop()
			monitoring.Logf("gRPC server terminated")
		}()
	}

	wg.Wait()

	recordErr(database.Close())
	if logCloser != nil {
		recordErr(logCloser.Close())
	}
	if shutdownErr != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", shutdownErr)
		os.Exit(1)
	}
}
