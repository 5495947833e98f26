package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/bravais-data/beamtrace/internal/frames"
	"github.com/bravais-data/beamtrace/internal/httputil"
	"github.com/bravais-data/beamtrace/internal/locate"
	"github.com/bravais-data/beamtrace/internal/monitoring"
	"github.com/bravais-data/beamtrace/internal/security"
	"github.com/bravais-data/beamtrace/internal/store"
)

// LocateRequest is the body of POST /api/locate. Source names a raw
// stack file relative to the configured stacks directory. When the
// options object is omitted the server's tuning config applies; when
// present it replaces the tuning options wholesale, with unset fields
// taking the locate defaults.
type LocateRequest struct {
	Source      string          `json:"source" validate:"required"`
	Method      string          `json:"method" validate:"required,oneof=center_of_mass refined_center_of_mass cross_correlate"`
	ChunkFrames int             `json:"chunk_frames" validate:"omitempty,min=1"`
	Options     *locate.Options `json:"options"`
}

// handleLocate runs a locate pass over a stored stack and persists the
// result as a new run.
func (ws *WebServer) handleLocate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req LocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("decode request: %v", err))
		return
	}
	if err := ws.validate.Struct(req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request: %v", err))
		return
	}

	path := req.Source
	if !filepath.IsAbs(path) {
		path = filepath.Join(ws.stacksDir, path)
	}
	if err := security.ValidatePathWithinDirectory(path, ws.stacksDir); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid source: %v", err))
		return
	}

	chunkFrames := req.ChunkFrames
	if chunkFrames == 0 {
		chunkFrames = ws.tuning.GetChunkFrames()
	}
	stack, closer, err := frames.OpenRawStackChunked(path, chunkFrames)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("open stack: %v", err))
		return
	}
	defer closer()

	method, err := locate.ParseMethod(req.Method)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	opts := ws.tuning.Options()
	if req.Options != nil {
		opts = *req.Options
	}

	start := time.Now()
	pm, err := locate.Locate(r.Context(), stack, method, opts)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("locate: %v", err))
		return
	}

	run := &store.Run{
		Source:     req.Source,
		FrameRows:  stack.Rows(),
		FrameCols:  stack.Cols(),
		Method:     method.String(),
		Options:    opts,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err := ws.store.SaveRun(r.Context(), run, pm); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("save run: %v", err))
		return
	}
	monitoring.Logf("locate run %s: %s over %d frames from %s (%d failures)",
		run.ID, run.Method, run.Frames, req.Source, run.Summary.Failures)

	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"run":       run,
		"positions": jsonPositions(pm),
		"failures":  pm.Failures,
	})
}

// jsonPosition mirrors locate.Position with nullable coordinates, since
// JSON has no NaN.
type jsonPosition struct {
	FrameIndex int      `json:"frame_index"`
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
}

func jsonPositions(pm *locate.PositionMap) []jsonPosition {
	out := make([]jsonPosition, pm.Len())
	for i, p := range pm.Positions {
		out[i] = jsonPosition{FrameIndex: i}
		if !pm.Failed(i) {
			x, y := p.X, p.Y
			out[i].X, out[i].Y = &x, &y
		}
	}
	return out
}

// loadRun fetches a run and its positions for an ?id= request, writing
// the error response itself on failure.
func (ws *WebServer) loadRun(w http.ResponseWriter, r *http.Request) (*store.Run, *locate.PositionMap, bool) {
	id := r.URL.Query().Get("id")
	if id == "" {
		httputil.BadRequest(w, "missing 'id' parameter")
		return nil, nil, false
	}
	run, err := ws.store.GetRun(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			httputil.NotFound(w, err.Error())
			return nil, nil, false
		}
		httputil.InternalServerError(w, fmt.Sprintf("get run: %v", err))
		return nil, nil, false
	}
	pm, err := ws.store.GetPositions(r.Context(), id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("get positions: %v", err))
		return nil, nil, false
	}
	return run, pm, true
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
