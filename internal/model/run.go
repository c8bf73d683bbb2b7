package model

import "time"

// RunStatus tracks the lifecycle of a loader batch run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// LoadStats summarizes one loader invocation.
type LoadStats struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Add accumulates another stats block into s.
func (s *LoadStats) Add(other LoadStats) {
	s.Added += other.Added
	s.Updated += other.Updated
	s.Skipped += other.Skipped
	s.Errors += other.Errors
}

// LoadRun is a persisted record of one loader batch invocation.
type LoadRun struct {
	ID          string     `json:"id"`
	BatchIndex  int        `json:"batch_index"`
	Region      string     `json:"region,omitempty"`
	Status      RunStatus  `json:"status"`
	Stats       LoadStats  `json:"stats"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// GeocodeStats summarizes one geocoder batch invocation.
type GeocodeStats struct {
	Geocoded int `json:"geocoded"`
	Failed   int `json:"failed"`
}
