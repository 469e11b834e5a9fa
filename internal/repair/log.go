package repair

import "sync"

// Log is the append-only audit record of completed repair runs.
type Log struct {
	mu      sync.Mutex
	results []Result
}

func NewLog() *Log { return &Log{} }

func (l *Log) Append(r Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, r)
}

// Results returns a snapshot of recorded repairs in append order.
func (l *Log) Results() []Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Result, len(l.results))
	copy(out, l.results)
	return out
}

// Stats aggregates recorded repairs for reporting.
type Stats struct {
	Runs      int          `json:"runs"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	ByType    map[Type]int `json:"by_type"`
}

func (l *Log) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{ByType: map[Type]int{}}
	for _, r := range l.results {
		stats.Runs++
		if r.Success {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
		if r.Type != "" {
			stats.ByType[r.Type]++
		}
	}
	return stats
}
