package events

import "time"

// CompileFinish is emitted after an operation was lowered and finalized.
type CompileFinish struct {
	OperationName string
	Routines      int
	Err           error
	Duration      time.Duration
}

// ExecuteFinish is emitted after a compiled program ran. Fatal is the error
// that aborted the execution, if any.
type ExecuteFinish struct {
	OperationName string
	ExecutionID   string
	Errors        int
	Fatal         error
	Duration      time.Duration
}
