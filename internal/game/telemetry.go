package game

import "time"

// Telemetry receives counters from the match and the runner. Calls happen
// on the tick path and must not block.
type Telemetry interface {
	ObserveTick(d time.Duration)
	EventResolved(kind EventKind)
	QueueOverflow()
	StateTimeout(state string)
	InputCorrected()
}

// NopTelemetry discards everything.
type NopTelemetry struct{}

func (NopTelemetry) ObserveTick(time.Duration) {}
func (NopTelemetry) EventResolved(EventKind)   {}
func (NopTelemetry) QueueOverflow()            {}
func (NopTelemetry) StateTimeout(string)       {}
func (NopTelemetry) InputCorrected()           {}
