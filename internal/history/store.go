// Package history keeps a per-tick time series of run statistics in an
// in-memory SQLite database. Nothing outlives the process.
package history

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/contagion/internal/engine"
)

// Sample is one row of the time series.
type Sample struct {
	RunID                 string  `db:"run_id" json:"run_id"`
	Tick                  int     `db:"tick" json:"tick"`
	Population            int     `db:"population" json:"population"`
	Healthy               int     `db:"healthy" json:"healthy"`
	Infected              int     `db:"infected" json:"infected"`
	Hospitalized          int     `db:"hospitalized" json:"hospitalized"`
	Casualties            int     `db:"casualties" json:"casualties"`

	// Over every agent ever created.
	AverageSocialDistance float64 `db:"avg_social_distance" json:"avg_social_distance"`
	MaskUsage             float64 `db:"mask_usage" json:"mask_usage_pct"`

	// Over living, non-hospitalized agents.
	CurrentAverageSocialDistance float64 `db:"current_avg_social_distance" json:"current_avg_social_distance"`
	CurrentMaskUsage             float64 `db:"current_mask_usage" json:"current_mask_usage_pct"`
}

// SampleOf converts engine stats into a sample.
func SampleOf(st engine.Stats) Sample {
	return Sample{
		RunID:                 st.RunID.String(),
		Tick:                  st.Tick,
		Population:            st.Population,
		Healthy:               st.Healthy,
		Infected:              st.Infected,
		Hospitalized:          st.Hospitalized,
		Casualties:            st.Casualties,
		AverageSocialDistance: st.AverageSocialDistance,
		MaskUsage:             st.MaskUsagePercentage,

		CurrentAverageSocialDistance: st.CurrentAverageSocialDistance,
		CurrentMaskUsage:             st.CurrentMaskUsagePercentage,
	}
}

const insertSample = `INSERT OR REPLACE INTO samples
	(run_id, tick, population, healthy, infected, hospitalized, casualties,
	 avg_social_distance, mask_usage, current_avg_social_distance, current_mask_usage)
	VALUES (:run_id, :tick, :population, :healthy, :infected, :hospitalized, :casualties,
	 :avg_social_distance, :mask_usage, :current_avg_social_distance, :current_mask_usage)`

// Run describes one recorded run.
type Run struct {
	ID              string    `db:"id" json:"id"`
	StartedAt       time.Time `db:"started_at" json:"started_at"`
	SpreadingFactor float64   `db:"spreading_factor" json:"spreading_factor"`
	MortalityRate   float64   `db:"mortality_rate" json:"mortality_rate"`
}

// Store wraps the sample database.
type Store struct {
	conn *sqlx.DB
}

// Open creates a store on dsn, which must name an in-memory database.
func Open(dsn string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	// Every pooled connection to ":memory:" would see its own empty database.
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the database; its contents are lost.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		spreading_factor REAL NOT NULL,
		mortality_rate REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS samples (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		population INTEGER NOT NULL,
		healthy INTEGER NOT NULL,
		infected INTEGER NOT NULL,
		hospitalized INTEGER NOT NULL,
		casualties INTEGER NOT NULL,
		avg_social_distance REAL NOT NULL,
		mask_usage REAL NOT NULL,
		current_avg_social_distance REAL NOT NULL,
		current_mask_usage REAL NOT NULL,
		PRIMARY KEY (run_id, tick)
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// BeginRun registers a run so its samples can be listed later.
func (s *Store) BeginRun(id uuid.UUID, sf, mr float64, at time.Time) error {
	_, err := s.conn.Exec(
		"INSERT OR REPLACE INTO runs (id, started_at, spreading_factor, mortality_rate) VALUES (?, ?, ?, ?)",
		id.String(), at.UTC(), sf, mr,
	)
	return err
}

// Runs lists registered runs, newest first.
func (s *Store) Runs() ([]Run, error) {
	var runs []Run
	err := s.conn.Select(&runs, "SELECT id, started_at, spreading_factor, mortality_rate FROM runs ORDER BY started_at DESC")
	return runs, err
}

// Record stores one sample. A repeated (run, tick) replaces the earlier row.
func (s *Store) Record(sm Sample) error {
	_, err := s.conn.NamedExec(insertSample, sm)
	if err != nil {
		return fmt.Errorf("record tick %d: %w", sm.Tick, err)
	}
	return nil
}

// RecordBatch stores samples in one transaction.
func (s *Store) RecordBatch(batch []Sample) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := s.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamed(insertSample)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, sm := range batch {
		if _, err := stmt.Exec(sm); err != nil {
			return fmt.Errorf("record tick %d: %w", sm.Tick, err)
		}
	}
	return tx.Commit()
}

// Range returns samples of runID with from <= tick <= to in tick order. A
// negative to means no upper bound; limit <= 0 means no limit.
func (s *Store) Range(runID string, from, to, limit int) ([]Sample, error) {
	if to < 0 {
		to = int(^uint32(0) >> 1)
	}
	if limit <= 0 {
		limit = -1
	}
	var out []Sample
	err := s.conn.Select(&out,
		`SELECT * FROM samples WHERE run_id = ? AND tick >= ? AND tick <= ? ORDER BY tick LIMIT ?`,
		runID, from, to, limit,
	)
	return out, err
}

// Latest returns the last n samples of runID in tick order.
func (s *Store) Latest(runID string, n int) ([]Sample, error) {
	var out []Sample
	err := s.conn.Select(&out,
		`SELECT * FROM (SELECT * FROM samples WHERE run_id = ? ORDER BY tick DESC LIMIT ?) ORDER BY tick`,
		runID, n,
	)
	return out, err
}

// Count returns the number of samples stored for runID.
func (s *Store) Count(runID string) (int, error) {
	var n int
	err := s.conn.Get(&n, "SELECT COUNT(*) FROM samples WHERE run_id = ?", runID)
	return n, err
}

// Reset drops every sample and the run entry for runID.
func (s *Store) Reset(runID string) error {
	tx, err := s.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM samples WHERE run_id = ?", runID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM runs WHERE id = ?", runID); err != nil {
		return err
	}
	return tx.Commit()
}
