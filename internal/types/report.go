package types

import "time"

// Failure describes a story that could not be turned into a record.
type Failure struct {
	ID    string `json:"id"`
	Cause string `json:"cause"`
}

// RunReport summarises one full rebuild.
type RunReport struct {
	RunID      string    `json:"run_id"`
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Fetched    int       `json:"fetched"`
	Indexed    int       `json:"indexed"`
	Failures   []Failure `json:"failures,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// TriggerEvent is the message consumed from the trigger topic. Every field
// is optional, an empty message triggers a rebuild as well.
type TriggerEvent struct {
	Reason    string `json:"reason"`
	TimeStamp int64  `json:"ts_ms"`
}
