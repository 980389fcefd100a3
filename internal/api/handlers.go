package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/newmo-oss/ergo"

	"github.com/talgya/contagion/internal/agents"
	"github.com/talgya/contagion/internal/engine"
	"github.com/talgya/contagion/internal/history"
)

// Status is the body of GET /api/v1/status.
type Status struct {
	engine.Stats
	SpreadingFactor float64       `json:"spreading_factor"`
	MortalityRate   float64       `json:"mortality_rate"`
	Limits          agents.Limits `json:"limits"`
	Subscribers     int           `json:"subscribers"` // live tick streams, recorder included
	Fault           string        `json:"fault,omitempty"`
}

func statusOf(sim *engine.Simulation) Status {
	d := sim.Disease()
	st := Status{
		Stats:           sim.Stats(),
		SpreadingFactor: d.SpreadingFactor(),
		MortalityRate:   d.MortalityRate(),
		Limits:          sim.Limits(),
		Subscribers:     sim.Subscribers(),
	}
	if err := sim.Fault(); err != nil {
		st.Fault = err.Error()
	}
	return st
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sim := s.Ctrl.Current()
	if sim == nil {
		writeJSON(w, map[string]any{"state": "idle"})
		return
	}
	writeJSON(w, statusOf(sim))
}

// handleAgents serves the render snapshot on GET and adds agents on POST.
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		s.handleAddAgents(w, r)
		return
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sim := s.current(w)
	if sim == nil {
		return
	}
	views := sim.Snapshot()

	filter := r.URL.Query().Get("filter")
	if filter == "" {
		writeJSON(w, views)
		return
	}
	result := []agents.View{}
	for _, v := range views {
		var keep bool
		switch filter {
		case "healthy":
			keep = v.Alive && !v.Hospitalized && !v.Infected
		case "infected":
			keep = v.Alive && !v.Hospitalized && v.Infected
		case "hospitalized":
			keep = v.Alive && v.Hospitalized
		case "dead":
			keep = !v.Alive
		default:
			http.Error(w, "unknown filter "+strconv.Quote(filter), http.StatusBadRequest)
			return
		}
		if keep {
			result = append(result, v)
		}
	}
	writeJSON(w, result)
}

// runID resolves the ?run= parameter, defaulting to the current run.
func (s *Server) runID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if id := r.URL.Query().Get("run"); id != "" {
		return id, true
	}
	sim := s.current(w)
	if sim == nil {
		return "", false
	}
	return sim.RunID().String(), true
}

func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		http.Error(w, "history not available", http.StatusServiceUnavailable)
		return
	}
	run, ok := s.runID(w, r)
	if !ok {
		return
	}

	fromTick := 0
	toTick := -1
	limit := 300

	if f := r.URL.Query().Get("from"); f != "" {
		if v, err := strconv.Atoi(f); err == nil && v >= 0 {
			fromTick = v
		}
	}
	if t := r.URL.Query().Get("to"); t != "" {
		if v, err := strconv.Atoi(t); err == nil && v >= 0 {
			toTick = v
		}
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 5000 {
			limit = v
		}
	}

	rows, err := s.History.Range(run, fromTick, toTick, limit)
	if err != nil {
		slog.Error("stats history query failed", "error", err)
		// Empty array instead of an error; the run may not have samples yet.
		writeJSON(w, []history.Sample{})
		return
	}
	if rows == nil {
		rows = []history.Sample{}
	}
	writeJSON(w, rows)
}

// RunSummary is one item of GET /api/v1/runs.
type RunSummary struct {
	history.Run
	Samples int `json:"samples"`
}

// handleRuns lists recorded runs on GET and drops one on DELETE.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		http.Error(w, "history not available", http.StatusServiceUnavailable)
		return
	}
	switch r.Method {
	case http.MethodGet:
	case http.MethodDelete:
		s.handleDeleteRun(w, r)
		return
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runs, err := s.History.Runs()
	if err != nil {
		handleError(w, err)
		return
	}
	out := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		n, err := s.History.Count(run.ID)
		if err != nil {
			handleError(w, err)
			return
		}
		out = append(out, RunSummary{Run: run, Samples: n})
	}
	writeJSON(w, out)
}

// handleDeleteRun drops the samples of ?run=. The current run is still being
// recorded and cannot be dropped.
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	run := r.URL.Query().Get("run")
	if run == "" {
		http.Error(w, "run parameter required", http.StatusBadRequest)
		return
	}
	if sim := s.Ctrl.Current(); sim != nil && sim.RunID().String() == run && sim.State() != engine.Ended {
		http.Error(w, "run "+run+" is still being recorded", http.StatusConflict)
		return
	}
	if err := s.History.Reset(run); err != nil {
		handleError(w, err)
		return
	}
	slog.Info("admin: run history dropped", "run", run)
	w.WriteHeader(http.StatusNoContent)
}

type startRequest struct {
	Population      *int     `json:"population"`
	SpreadingFactor *float64 `json:"spreading_factor"`
	MortalityRate   *float64 `json:"mortality_rate"`
}

// params fills omitted fields from the server defaults, drawing zero default
// rates at random. Explicit values are passed through unchecked.
func (s *Server) params(req startRequest) engine.Params {
	p := s.Defaults
	if p.Population == 0 && req.Population == nil {
		p.Population = engine.DefaultPopulation
	}
	if req.Population != nil {
		p.Population = *req.Population
	}
	switch {
	case req.SpreadingFactor != nil:
		p.SpreadingFactor = *req.SpreadingFactor
	case p.SpreadingFactor == 0:
		p.SpreadingFactor = engine.RandomSpreadingFactor(s.Rand)
	}
	switch {
	case req.MortalityRate != nil:
		p.MortalityRate = *req.MortalityRate
	case p.MortalityRate == 0:
		p.MortalityRate = engine.RandomMortalityRate(s.Rand)
	}
	return p
}

func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return ergo.Wrap(errBadRequest, "decode body", slog.String("cause", err.Error()))
}

var errBadRequest = errors.New("malformed request body")

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeBody(r, &req); err != nil {
		handleError(w, err)
		return
	}
	p := s.params(req)

	sim, err := s.Ctrl.Start(r.Context(), p)
	if err != nil {
		handleError(w, err)
		return
	}
	slog.Info("admin: run started", "run", sim.RunID(), "population", p.Population,
		"spreading_factor", p.SpreadingFactor, "mortality_rate", p.MortalityRate)
	writeJSONStatus(w, http.StatusCreated, statusOf(sim))
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, "pause", func(sim *engine.Simulation) error { return sim.PauseContext(r.Context()) })
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, "resume", (*engine.Simulation).Resume)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, "end", func(sim *engine.Simulation) error { return sim.EndContext(r.Context()) })
}

type addAgentsRequest struct {
	Count *int `json:"count"`
}

func (s *Server) handleAddAgents(w http.ResponseWriter, r *http.Request) {
	var req addAgentsRequest
	if err := decodeBody(r, &req); err != nil {
		handleError(w, err)
		return
	}
	count := 1
	if req.Count != nil {
		count = *req.Count
	}
	s.command(w, r, fmt.Sprintf("add %d agents", count), func(sim *engine.Simulation) error {
		return sim.AddAgents(count)
	})
}

// command applies fn to the current run and replies with its status.
func (s *Server) command(w http.ResponseWriter, r *http.Request, name string, fn func(*engine.Simulation) error) {
	sim := s.current(w)
	if sim == nil {
		return
	}
	if err := fn(sim); err != nil {
		handleError(w, err)
		return
	}
	slog.Info("admin: "+name, "run", sim.RunID(), "state", sim.State(), "tick", sim.Tick())
	writeJSON(w, statusOf(sim))
}

// handleError maps engine errors to HTTP statuses and logs their attributes.
func handleError(w http.ResponseWriter, err error) {
	attrs := []any{slog.Any("error", err)}
	for attr := range ergo.AttrsAll(err) {
		attrs = append(attrs, attr)
	}

	switch {
	case errors.Is(err, engine.ErrInvalidParams), errors.Is(err, errBadRequest):
		slog.Warn("handleError: invalid request", attrs...)
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, engine.ErrNoSimulation):
		slog.Warn("handleError: no simulation", attrs...)
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrEnded), errors.Is(err, engine.ErrAlreadyRunning):
		slog.Warn("handleError: invalid transition", attrs...)
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrInterruptedWait):
		slog.Warn("handleError: wait interrupted", attrs...)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		slog.Error("handleError: internal error", attrs...)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
