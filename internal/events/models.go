package events

// JobsPendingEvent signals connected runners that pending work exists. It is
// a wake-up call, not a work assignment: runners still claim jobs through
// their own polling.
type JobsPendingEvent struct {
	PendingCount int `json:"pending_count,omitempty"`
}

// JobFinishedEvent is emitted when a job reaches a terminal state.
type JobFinishedEvent struct {
	JobUUID string `json:"job_uuid"`
	Type    string `json:"type"`
	State   string `json:"state"`
	Error   string `json:"error,omitempty"`
}
