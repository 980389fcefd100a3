package watch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StartRequest is the body of POST /api/v1/start. Nil fields use server defaults.
type StartRequest struct {
	Population      *int     `json:"population,omitempty"`
	SpreadingFactor *float64 `json:"spreading_factor,omitempty"`
	MortalityRate   *float64 `json:"mortality_rate,omitempty"`
}

// Actor issues commands via the admin API.
type Actor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL with admin auth.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Start begins a new run, ending any current one.
func (a *Actor) Start(req StartRequest) (*Status, error) {
	return a.post("/api/v1/start", req, http.StatusCreated)
}

// Pause toggles the current run between running and paused.
func (a *Actor) Pause() (*Status, error) {
	return a.post("/api/v1/pause", nil, http.StatusOK)
}

// Resume continues a paused run.
func (a *Actor) Resume() (*Status, error) {
	return a.post("/api/v1/resume", nil, http.StatusOK)
}

// End ends the current run.
func (a *Actor) End() (*Status, error) {
	return a.post("/api/v1/end", nil, http.StatusOK)
}

// AddAgents adds count agents to the current run.
func (a *Actor) AddAgents(count int) (*Status, error) {
	return a.post("/api/v1/agents", map[string]int{"count": count}, http.StatusOK)
}

func (a *Actor) post(path string, payload any, want int) (*Status, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(http.MethodPost, a.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.AdminKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != want {
		return nil, fmt.Errorf("POST %s failed (%d): %s", path, resp.StatusCode, bytes.TrimSpace(respBody))
	}

	var st Status
	if err := json.Unmarshal(respBody, &st); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &st, nil
}
