// Package system provides the wall clock used to stamp harvest runs.
package system

import "time"

// Clock implements harvest.Clock. Times are UTC so run summaries compare
// across hosts.
type Clock struct{}

// New creates a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
