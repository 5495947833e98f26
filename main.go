package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bravais-data/beamtrace/internal/config"
	"github.com/bravais-data/beamtrace/internal/frames"
	"github.com/bravais-data/beamtrace/internal/locate"
	"github.com/bravais-data/beamtrace/internal/monitor"
	"github.com/bravais-data/beamtrace/internal/monitoring"
	"github.com/bravais-data/beamtrace/internal/store"
	"github.com/bravais-data/beamtrace/internal/version"
)

var (
	listen     = flag.String("listen", "", "Listen address (overrides BEAMTRACE_LISTEN_ADDR)")
	configPath = flag.String("config", "", "Path to tuning config JSON (optional)")
	dbPath     = flag.String("db", "", "Path to run database (overrides config)")
	stacksDir  = flag.String("stacks", "", "Directory containing raw stack files (overrides BEAMTRACE_STACKS_DIR)")
	locateSrc  = flag.String("locate", "", "Run one locate pass over this raw stack file, store the result and exit")
	methodName = flag.String("method", "", "Locate method for -locate (default from config)")
	debug      = flag.Bool("debug", false, "Enable per-frame debug logging")
)

// pruneInterval is how often stale runs are swept from the store.
const pruneInterval = time.Hour

func main() {
	flag.Parse()
	monitoring.SetDebug(*debug)
	monitoring.Logf("beamtrace %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	env, err := monitor.LoadEnv()
	if err != nil {
		log.Fatalf("failed to read environment: %v", err)
	}
	if *listen != "" {
		env.ListenAddr = *listen
	}
	if *stacksDir != "" {
		env.StacksDir = *stacksDir
	}

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	storePath := tuning.GetDatabasePath()
	if *dbPath != "" {
		storePath = *dbPath
	} else if env.DBPath != "" {
		storePath = env.DBPath
	}

	s, err := store.Open(storePath)
	if err != nil {
		log.Fatalf("failed to open run store: %v", err)
	}
	defer s.Close()

	// One-shot mode: locate, persist, exit.
	if *locateSrc != "" {
		if err := runLocate(context.Background(), s, tuning, *locateSrc, *methodName); err != nil {
			log.Fatalf("locate failed: %v", err)
		}
		return
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// sweep expired runs in the background
	wg.Add(1)
	go func() {
		defer wg.Done()
		pruneRuns(ctx, s, tuning.GetRunRetention())
		monitoring.Logf("prune routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		ws := monitor.NewWebServer(monitor.WebServerConfig{
			Address:   env.ListenAddr,
			Store:     s,
			Tuning:    tuning,
			StacksDir: env.StacksDir,
		})
		if err := ws.Start(ctx); err != nil {
			monitoring.Logf("web server error: %v", err)
			stop()
		}
	}()

	wg.Wait()
	monitoring.Logf("graceful shutdown complete")
}

// runLocate runs a single locate pass over a raw stack file and stores
// the result as a new run.
func runLocate(ctx context.Context, s *store.Store, tuning *config.TuningConfig, source, methodName string) error {
	stack, closer, err := frames.OpenRawStackChunked(source, tuning.GetChunkFrames())
	if err != nil {
		return err
	}
	defer closer()

	method := tuning.GetMethod()
	if methodName != "" {
		method, err = locate.ParseMethod(methodName)
		if err != nil {
			return err
		}
	}
	opts := tuning.Options()

	start := time.Now()
	pm, err := locate.Locate(ctx, stack, method, opts)
	if err != nil {
		return err
	}

	run := &store.Run{
		Source:     source,
		FrameRows:  stack.Rows(),
		FrameCols:  stack.Cols(),
		Method:     method.String(),
		Options:    opts,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err := s.SaveRun(ctx, run, pm); err != nil {
		return err
	}
	monitoring.Logf("run %s: %s over %d frames, mean (%.3f, %.3f), %d failures",
		run.ID, run.Method, run.Frames,
		run.Summary.MeanX, run.Summary.MeanY, run.Summary.Failures)
	return nil
}

// pruneRuns deletes runs older than retention, once at startup and then
// on a fixed interval until the context ends.
func pruneRuns(ctx context.Context, s *store.Store, retention time.Duration) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		cutoff := time.Now().Add(-retention)
		n, err := s.PruneBefore(ctx, cutoff)
		if err != nil {
			monitoring.Logf("prune runs: %v", err)
		} else if n > 0 {
			monitoring.Logf("pruned %d runs older than %s", n, retention)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
