package models

// EventKind discriminates decoded scrape-stream frames.
type EventKind int

const (
	EventLog EventKind = iota
	EventResult
	EventDone
	EventMalformed
)

func (k EventKind) String() string {
	switch k {
	case EventLog:
		return "log"
	case EventResult:
		return "result"
	case EventDone:
		return "done"
	default:
		return "malformed"
	}
}

// Event is one decoded frame of the scrape stream. Message is the log text
// for EventLog, or a diagnostic for EventMalformed. Result is set only for
// EventResult.
type Event struct {
	Kind    EventKind
	Message string
	Result  *StoreResult
}
