package monitor

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/bravais-data/beamtrace/internal/httputil"
	"github.com/bravais-data/beamtrace/internal/monitoring"
)

// echartsAssetsPrefix points chart pages at the public asset CDN.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleShiftChart renders an interactive scatter (HTML) of per-frame
// beam shifts relative to the frame centre, coloured by frame index.
// Query params:
//
//	id (required)
func (ws *WebServer) handleShiftChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	run, pm, ok := ws.loadRun(w, r)
	if !ok {
		return
	}

	shifts := pm.Shifts(run.FrameRows, run.FrameCols)
	data := make([]opts.ScatterData, 0, len(shifts))
	maxAbs := 0.0
	for i, s := range shifts {
		if math.IsNaN(s.X) || math.IsNaN(s.Y) {
			continue
		}
		if math.Abs(s.X) > maxAbs {
			maxAbs = math.Abs(s.X)
		}
		if math.Abs(s.Y) > maxAbs {
			maxAbs = math.Abs(s.Y)
		}
		data = append(data, opts.ScatterData{Value: []interface{}{s.X, s.Y, i}})
	}
	if len(data) == 0 {
		httputil.NotFound(w, "run has no successful frames to chart")
		return
	}

	// Pad the symmetric axis range so edge points stay visible.
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Beam Shifts", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Direct Beam Shift", Subtitle: fmt.Sprintf("run=%s method=%s frames=%d", run.ID, run.Method, run.Frames)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "shift x (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "shift y (px)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(run.Frames - 1),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}},
		}),
	)
	scatter.AddSeries("shift", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleShiftPlot renders a static PNG of the x and y beam positions
// over the frame sequence. Failed frames leave gaps.
// Query params:
//
//	id (required)
func (ws *WebServer) handleShiftPlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	run, pm, ok := ws.loadRun(w, r)
	if !ok {
		return
	}

	xPts := make(plotter.XYs, 0, pm.Len())
	yPts := make(plotter.XYs, 0, pm.Len())
	for i, p := range pm.Positions {
		if pm.Failed(i) {
			continue
		}
		xPts = append(xPts, plotter.XY{X: float64(i), Y: p.X})
		yPts = append(yPts, plotter.XY{X: float64(i), Y: p.Y})
	}
	if len(xPts) == 0 {
		httputil.NotFound(w, "run has no successful frames to plot")
		return
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Beam position, run %s (%s)", run.ID, run.Method)
	p.X.Label.Text = "frame"
	p.Y.Label.Text = "position (px)"

	xLine, err := plotter.NewLine(xPts)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("build x line: %v", err))
		return
	}
	xLine.Width = vg.Points(1)
	xLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}

	yLine, err := plotter.NewLine(yPts)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("build y line: %v", err))
		return
	}
	yLine.Width = vg.Points(1)
	yLine.Color = color.RGBA{R: 255, G: 127, B: 14, A: 255}

	p.Add(xLine, yLine)
	p.Legend.Add("x", xLine)
	p.Legend.Add("y", yLine)
	p.Legend.Top = true

	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := wt.WriteTo(w); err != nil {
		// Headers already sent; just record the failure.
		monitoring.Logf("write plot: %v", err)
	}
}
