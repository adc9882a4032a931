package core

import "time"

// Scheduler runs fn after d. The returned function cancels the task and reports
// whether it was still pending. Implementations must run fn on the same loop that
// owns the registries.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) (cancel func() bool)
}
