// Package watch follows a running simulation through its HTTP API: it
// observes status and history, assesses the outbreak and can issue commands.
package watch

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talgya/contagion/internal/engine"
)

// Snapshot holds all data collected during one observation.
type Snapshot struct {
	Status  Status      `json:"status"`
	History []SampleRow `json:"history"`
}

// Status mirrors GET /api/v1/status.
type Status struct {
	RunID        string  `json:"run_id"`
	State        string  `json:"state"`
	Tick         int     `json:"tick"`
	Population   int     `json:"population"`
	Healthy      int     `json:"healthy"`
	Infected     int     `json:"infected"`
	Hospitalized int     `json:"hospitalized"`
	Casualties   int     `json:"casualties"`
	Capacity     int     `json:"capacity"`
	MaskUsage    float64 `json:"current_mask_usage_pct"`
	Spreading    float64 `json:"spreading_factor"`
	Mortality    float64 `json:"mortality_rate"`
	Subscribers  int     `json:"subscribers"`
	Fault        string  `json:"fault"`
}

// Idle reports whether no run has been started yet.
func (s Status) Idle() bool { return s.State == "idle" }

// Phase parses State into the engine lifecycle. ok is false while idle.
func (s Status) Phase() (phase engine.State, ok bool) {
	if err := phase.UnmarshalText([]byte(s.State)); err != nil {
		return phase, false
	}
	return phase, true
}

// Ended reports whether the run is over.
func (s Status) Ended() bool {
	phase, ok := s.Phase()
	return ok && phase == engine.Ended
}

// SampleRow mirrors items from GET /api/v1/stats/history.
type SampleRow struct {
	Tick         int `json:"tick"`
	Population   int `json:"population"`
	Healthy      int `json:"healthy"`
	Infected     int `json:"infected"`
	Hospitalized int `json:"hospitalized"`
	Casualties   int `json:"casualties"`
}

// Observer fetches run state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
	Window     int // history samples per observation
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		Window: 30,
	}
}

// Observe fetches status and, for a started run, its most recent history.
func (o *Observer) Observe() (*Snapshot, error) {
	snap := &Snapshot{}

	if err := o.fetchJSON("/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if snap.Status.Idle() {
		return snap, nil
	}

	from := max(snap.Status.Tick-o.Window, 0)
	path := fmt.Sprintf("/api/v1/stats/history?run=%s&from=%d&limit=%d", snap.Status.RunID, from, o.Window+1)
	if err := o.fetchJSON(path, &snap.History); err != nil {
		return nil, fmt.Errorf("fetch stats history: %w", err)
	}
	return snap, nil
}

// Ready reports whether the API answers its status endpoint.
func (o *Observer) Ready() bool {
	resp, err := o.HTTPClient.Get(o.BaseURL + "/api/v1/status")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(path string, target any) error {
	resp, err := o.HTTPClient.Get(o.BaseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
