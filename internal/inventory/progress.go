package inventory

import "time"

// UnitEvent describes one completed unit of work
type UnitEvent struct {
	Unit    UnitOfWork
	Status  Status
	Count   int
	Err     error
	Elapsed time.Duration
}

// ProgressSink receives one event per completed unit of work. Events may
// arrive concurrently from several workers.
type ProgressSink interface {
	UnitCompleted(event UnitEvent)
}

// ProgressFunc lets an ordinary function act as a ProgressSink
type ProgressFunc func(event UnitEvent)

// UnitCompleted calls f(event)
func (f ProgressFunc) UnitCompleted(event UnitEvent) {
	f(event)
}
