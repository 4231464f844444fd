package pipeline

import "fmt"

// SetupError reports a failure before any message was touched: listing mail
// or reading the ledger snapshot. Nothing has been marked or appended.
type SetupError struct {
	Stage string
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("pipeline setup failed at %s: %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// CommitError reports a failed append after messages were already marked
// handled. The staged transactions are lost from this run; the rows must be
// recovered from the logs or the messages re-processed by hand.
type CommitError struct {
	Staged int
	Err    error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("pipeline commit failed with %d staged transactions: %v", e.Staged, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }
