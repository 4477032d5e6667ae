package collector

import "time"

const (
	// read attempts per register group before it is recorded as absent
	retryBudget = 3
	// pause between failed attempts
	retryBackoff = 20 * time.Millisecond
	// DefaultInterReadPause separates register group reads on the shared bus.
	DefaultInterReadPause = 10 * time.Millisecond
)
