package engine

import "github.com/bamsammich/banana/internal/event"

// Observer receives a run's progress and outcome. Implementations must be
// safe for concurrent use: copy workers report progress in parallel.
type Observer interface {
	OnProgress(event.Event)
	OnComplete(BackupResult, event.Notification)
	OnError(error)
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) OnProgress(event.Event)                     {}
func (NopObserver) OnComplete(BackupResult, event.Notification) {}
func (NopObserver) OnError(error)                              {}

// Completion pairs a finished run with its notification.
type Completion struct {
	Result       BackupResult
	Notification event.Notification
}

// ChanObserver forwards callbacks to buffered channels. Progress sends never
// block: when Events is full the event is dropped, so a slow consumer cannot
// stall the copy workers.
type ChanObserver struct {
	Events      chan event.Event
	Completions chan Completion
	Errors      chan error
}

// NewChanObserver returns a ChanObserver whose event channel holds buffer
// events.
func NewChanObserver(buffer int) *ChanObserver {
	return &ChanObserver{
		Events:      make(chan event.Event, buffer),
		Completions: make(chan Completion, 1),
		Errors:      make(chan error, 1),
	}
}

func (o *ChanObserver) OnProgress(e event.Event) {
	select {
	case o.Events <- e:
	default:
	}
}

func (o *ChanObserver) OnComplete(r BackupResult, n event.Notification) {
	select {
	case o.Completions <- Completion{Result: r, Notification: n}:
	default:
	}
}

func (o *ChanObserver) OnError(err error) {
	select {
	case o.Errors <- err:
	default:
	}
}

// MultiObserver fans callbacks out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) OnProgress(e event.Event) {
	for _, o := range m {
		o.OnProgress(e)
	}
}

func (m MultiObserver) OnComplete(r BackupResult, n event.Notification) {
	for _, o := range m {
		o.OnComplete(r, n)
	}
}

func (m MultiObserver) OnError(err error) {
	for _, o := range m {
		o.OnError(err)
	}
}
