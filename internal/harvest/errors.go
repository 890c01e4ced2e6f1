package harvest

import "errors"

var (
	// ErrNoSources signals that discovery produced nothing; the run emits an
	// empty dataset and reports failure.
	ErrNoSources = errors.New("discovery found no record sources")

	// ErrQueueClosed is returned by Dequeue once a closed queue is drained.
	ErrQueueClosed = errors.New("queue closed")
)
