// Package retry holds the message-level back-off table (§5 retry
// discipline) and a thin wrapper around cenkalti/backoff for bounding a
// single in-process call (e.g. one object-store request) before the
// message-level retry table takes over.
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Table is an indexed sequence of delays; Delay(retries) looks up the delay
// to apply before the (retries+1)th attempt. The default matches the
// spec's back-off table: 0, 30s, 60s, 1h, 24h, 5d.
type Table struct {
	Delays     []time.Duration
	MaxRetries int
}

// DefaultTable is the NLDS default back-off schedule.
var DefaultTable = Table{
	Delays: []time.Duration{
		0,
		30 * time.Second,
		60 * time.Second,
		time.Hour,
		24 * time.Hour,
		5 * 24 * time.Hour,
	},
	MaxRetries: 5,
}

// Delay returns the delay to apply before retrying for the given retries
// count, clamped to the last table entry once retries exceeds the table's
// length.
func (t Table) Delay(retries int) time.Duration {
	if retries < 0 {
		retries = 0
	}

	if retries >= len(t.Delays) {
		return t.Delays[len(t.Delays)-1]
	}

	return t.Delays[retries]
}

// Exhausted reports whether retries has reached or passed MaxRetries; a
// file at or beyond this count is permanently failed per testable
// property 4.
func (t Table) Exhausted(retries int) bool {
	return retries >= t.MaxRetries
}

// NewCallBackoff returns a backoff.BackOff bounding the number of attempts
// of a single in-process call (for example one HTTP request to the object
// store) independently of the message-level retry table above; maxElapsed
// bounds the whole call, not a single message redelivery.
func NewCallBackoff(maxElapsed time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsed

	return b
}
