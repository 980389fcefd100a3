package watch

const maxRecords = 10

// CycleRecord captures what one watch cycle saw.
type CycleRecord struct {
	RunID  string  `json:"run_id"`
	Tick   int     `json:"tick"`
	Active int     `json:"active"`
	Growth float64 `json:"growth"`
	Level  string  `json:"level"`
}

// Journal keeps a ring of recent cycle records.
type Journal struct {
	Records []CycleRecord `json:"records"`
}

// Record adds a cycle record, trimming to maxRecords. A record from a
// different run than the previous one clears the journal first.
func (j *Journal) Record(r CycleRecord) {
	if n := len(j.Records); n > 0 && j.Records[n-1].RunID != r.RunID {
		j.Records = j.Records[:0]
	}
	j.Records = append(j.Records, r)
	if len(j.Records) > maxRecords {
		j.Records = j.Records[len(j.Records)-maxRecords:]
	}
}

// Escalated reports whether the latest record is more severe than the one
// before it.
func (j *Journal) Escalated() bool {
	n := len(j.Records)
	if n < 2 {
		return false
	}
	return severity(j.Records[n-1].Level) > severity(j.Records[n-2].Level)
}

// PeakLevel returns the most severe level recorded, or "" if empty.
func (j *Journal) PeakLevel() string {
	peak := ""
	for _, r := range j.Records {
		if peak == "" || severity(r.Level) > severity(peak) {
			peak = r.Level
		}
	}
	return peak
}
