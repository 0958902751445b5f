// Package events defines the payloads published on the event bus while
// requests are served, operations compiled and programs executed.
package events

import "time"

// GraphQLStart is emitted before an operation is prepared.
type GraphQLStart struct {
	Query         string
	OperationName string
	OperationType string
}

// GraphQLFinish is emitted after an operation produced its response. Errors
// holds the response errors, located or not.
type GraphQLFinish struct {
	OperationName string
	OperationType string
	Errors        []error
	Duration      time.Duration
}
