package pipeline

import "github.com/newhook/tidybot/internal/github"

// EventKind identifies a progress event.
type EventKind int

const (
	// EventRunsListed fires once after listing; Total is the number of failed runs.
	EventRunsListed EventKind = iota
	// EventRunFetched fires when a run's logs were downloaded.
	EventRunFetched
	// EventRunScanned fires after a run's logs were scanned.
	EventRunScanned
	// EventRunSkipped fires for a run whose logs could not be used.
	EventRunSkipped
)

// Event reports analysis progress.
type Event struct {
	Kind EventKind
	Run  github.WorkflowRun
	Err  error
	// Done and Total count scanned runs.
	Done   int
	Total  int
	Result *Result
}

// Observer receives progress events. Calls are never concurrent.
type Observer func(Event)

func (o Observer) notify(e Event) {
	if o != nil {
		o(e)
	}
}
