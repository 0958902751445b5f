package events

import "time"

// HTTPStart is emitted when the server accepts a request. The request
// context carries the execution id.
type HTTPStart struct {
	Method string
	Target string
}

// HTTPFinish is emitted after the response was written.
type HTTPFinish struct {
	Method   string
	Target   string
	Status   int
	Duration time.Duration
}
