package models

// PollResponse is the body returned by the polling endpoint. Data carries
// the buffered updates drained for the caller, keyed by update type.
type PollResponse struct {
	// Success is false when the server could not assemble the payload;
	// the client records a polling failure and retries on the next tick.
	Success bool `json:"success"`

	// Data holds the drained queue items for the requesting recipient.
	Data PollData `json:"data"`

	// Timestamp is the server wall clock at response time, Unix
	// milliseconds. Clients use it as the `since` bound of their next poll.
	Timestamp int64 `json:"timestamp"`
}

// PollData is the payload portion of a PollResponse.
type PollData struct {
	Updates []QueuedItem `json:"updates"`
	Length  int          `json:"length"`
}

// ConsistencyResponse is the body returned by the consistency-check
// endpoint.
type ConsistencyResponse struct {
	Consistent      bool     `json:"consistent"`
	Inconsistencies []string `json:"inconsistencies"`
}
