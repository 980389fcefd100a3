package watch

// Outbreak levels, most to least severe.
const (
	LevelCritical  = "CRITICAL"
	LevelWarning   = "WARNING"
	LevelWatch     = "WATCH"
	LevelReceding  = "RECEDING"
	LevelContained = "CONTAINED"
	LevelOver      = "OVER"
)

// Outlook holds derived signals computed from a Snapshot.
type Outlook struct {
	Tick          int
	Active        int     // infected + hospitalized
	ActiveShare   float64 // of the living
	CasualtyShare float64 // of the whole population
	HospitalLoad  float64 // hospitalized / ventilators; 0 without ventilators
	Growth        float64 // active cases per tick across the history window
	Peak          int     // highest active count in the window
	Level         string
}

// Assess computes an Outlook from the snapshot's data.
func Assess(snap *Snapshot) *Outlook {
	st := snap.Status
	o := &Outlook{
		Tick:   st.Tick,
		Active: st.Infected + st.Hospitalized,
	}
	o.Peak = o.Active

	if living := st.Population - st.Casualties; living > 0 {
		o.ActiveShare = float64(o.Active) / float64(living)
	}
	if st.Population > 0 {
		o.CasualtyShare = float64(st.Casualties) / float64(st.Population)
	}
	if st.Capacity > 0 {
		o.HospitalLoad = float64(st.Hospitalized) / float64(st.Capacity)
	}

	// History is sorted by tick ASC.
	if n := len(snap.History); n >= 2 {
		first, last := snap.History[0], snap.History[n-1]
		if span := last.Tick - first.Tick; span > 0 {
			o.Growth = float64(active(last)-active(first)) / float64(span)
		}
		for _, row := range snap.History {
			o.Peak = max(o.Peak, active(row))
		}
	}

	o.Level = level(st, o)
	return o
}

func active(row SampleRow) int { return row.Infected + row.Hospitalized }

func level(st Status, o *Outlook) string {
	switch {
	case st.Ended():
		return LevelOver
	case o.Active == 0:
		return LevelContained
	case st.Capacity > 0 && o.HospitalLoad >= 1, o.CasualtyShare >= 0.25:
		return LevelCritical
	case o.Growth > 0 && o.ActiveShare >= 0.1:
		return LevelWarning
	case o.Growth > 0:
		return LevelWatch
	}
	return LevelReceding
}

// severity orders levels for escalation checks; higher is worse.
func severity(level string) int {
	switch level {
	case LevelCritical:
		return 4
	case LevelWarning:
		return 3
	case LevelWatch:
		return 2
	case LevelReceding:
		return 1
	}
	return 0
}
