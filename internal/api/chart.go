package api

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/talgya/contagion/internal/history"
)

const maxChartSamples = 5000

// handleChart renders the recorded epidemic curves of a run as a PNG.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		http.Error(w, "history not available", http.StatusServiceUnavailable)
		return
	}
	run, ok := s.runID(w, r)
	if !ok {
		return
	}

	samples, err := s.History.Latest(run, maxChartSamples)
	if err != nil {
		handleError(w, err)
		return
	}
	if len(samples) < 2 {
		http.Error(w, "not enough samples to chart yet", http.StatusConflict)
		return
	}

	buf, err := renderChart(samples, s.ChartWidth, s.ChartHeight)
	if err != nil {
		slog.Error("chart render failed", "run", run, "samples", len(samples), "error", err)
		http.Error(w, "chart render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(buf.Bytes())
}

func renderChart(samples []history.Sample, width, height int) (*bytes.Buffer, error) {
	n := len(samples)
	ticks := make([]float64, n)
	healthy := make([]float64, n)
	infected := make([]float64, n)
	hospitalized := make([]float64, n)
	casualties := make([]float64, n)
	for i, sm := range samples {
		ticks[i] = float64(sm.Tick)
		healthy[i] = float64(sm.Healthy)
		infected[i] = float64(sm.Infected)
		hospitalized[i] = float64(sm.Hospitalized)
		casualties[i] = float64(sm.Casualties)
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "Healthy",
			XValues: ticks,
			YValues: healthy,
			Style:   chart.Style{StrokeColor: chart.ColorGreen, StrokeWidth: 2.0},
		},
		chart.ContinuousSeries{
			Name:    "Infected",
			XValues: ticks,
			YValues: infected,
			Style:   chart.Style{StrokeColor: chart.ColorRed, StrokeWidth: 2.0},
		},
		chart.ContinuousSeries{
			Name:    "Hospitalized",
			XValues: ticks,
			YValues: hospitalized,
			Style:   chart.Style{StrokeColor: drawing.Color{R: 255, G: 165, B: 0, A: 255}, StrokeWidth: 2.0},
		},
		chart.ContinuousSeries{
			Name:    "Casualties",
			XValues: ticks,
			YValues: casualties,
			Style:   chart.Style{StrokeColor: chart.ColorBlack, StrokeWidth: 2.0},
		},
	}

	graph := chart.Chart{
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  "tick",
			Style: chart.Style{FontSize: 10.0},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  "agents",
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: 0, Max: float64(max(samples[n-1].Population, 1))},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buffer, nil
}
