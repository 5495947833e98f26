// Package monitor exposes the HTTP interface for inspecting locate
// runs: health checks, run listings, a locate trigger, and shift
// visualisations.
package monitor

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"github.com/bravais-data/beamtrace/internal/config"
	"github.com/bravais-data/beamtrace/internal/httputil"
	"github.com/bravais-data/beamtrace/internal/monitoring"
	"github.com/bravais-data/beamtrace/internal/store"
	"github.com/bravais-data/beamtrace/internal/version"
)

// Env carries server settings read from BEAMTRACE_* environment
// variables.
type Env struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`
	StacksDir  string `envconfig:"STACKS_DIR" default:"."`
	DBPath     string `envconfig:"DB_PATH" default:""`
}

// LoadEnv reads the BEAMTRACE_* environment variables.
func LoadEnv() (Env, error) {
	var e Env
	if err := envconfig.Process("beamtrace", &e); err != nil {
		return e, fmt.Errorf("read environment: %w", err)
	}
	return e, nil
}

// WebServer handles the HTTP interface for locate runs.
type WebServer struct {
	address   string
	store     *store.Store
	tuning    *config.TuningConfig
	stacksDir string
	server    *http.Server
	validate  *validator.Validate
	started   time.Time
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address   string
	Store     *store.Store
	Tuning    *config.TuningConfig
	StacksDir string
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(cfg WebServerConfig) *WebServer {
	tuning := cfg.Tuning
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	ws := &WebServer{
		address:   cfg.Address,
		store:     cfg.Store,
		tuning:    tuning,
		stacksDir: cfg.StacksDir,
		validate:  validator.New(),
		started:   time.Now(),
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}

	monitoring.Logf("HTTP server routine stopped")
	return nil
}

// Close shuts down the web server.
func (ws *WebServer) Close() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}

// setupRoutes configures the HTTP routes and handlers.
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/runs", ws.handleRuns)
	mux.HandleFunc("/api/run", ws.handleRun)
	mux.HandleFunc("/api/run/delete", ws.handleRunDelete)
	mux.HandleFunc("/api/run/chart", ws.handleShiftChart)
	mux.HandleFunc("/api/run/plot.png", ws.handleShiftPlot)
	mux.HandleFunc("/api/locate", ws.handleLocate)

	return mux
}

// handleHealth handles the health check endpoint.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "beamtrace", "version": "%s", "uptime": "%s", "timestamp": "%s"}`,
		version.Version,
		time.Since(ws.started).Round(time.Second),
		time.Now().UTC().Format(time.RFC3339))
}

// handleRuns returns recent runs, newest first.
// Query params:
//
//	limit (optional, default 50, max 500)
func (ws *WebServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	runs, err := ws.store.ListRuns(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

// handleRun returns one run with its full position map.
// Query params:
//
//	id (required)
func (ws *WebServer) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	run, pm, ok := ws.loadRun(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"run":       run,
		"positions": jsonPositions(pm),
		"failures":  pm.Failures,
	})
}

// handleRunDelete removes a run and its positions.
// Query params:
//
//	id (required)
func (ws *WebServer) handleRunDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		httputil.BadRequest(w, "missing 'id' parameter")
		return
	}
	if err := ws.store.DeleteRun(r.Context(), id); err != nil {
		if isNotFound(err) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("delete run: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "ok", "id": id})
}
