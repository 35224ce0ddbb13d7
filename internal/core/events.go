package core

import (
	"sync"

	"github.com/hq-launcher/hql/internal/domain"
)

// Event names observed by the CLI and TUI
const (
	EventDownloadProgress  = "download://progress"
	EventDownloadFinished  = "download://finished"
	EventDownloadError     = "download://error"
	EventUpdatableProgress = "updatable://progress"
	EventUpdatableFinished = "updatable://finished"
	EventUpdatableError    = "updatable://error"
	EventDepotAuth         = "depot://auth"
	EventDepotOutput       = "depot://output"
	EventGameStarted       = "game://started"
	EventGameExited        = "game://exited"
)

// Event is one notification on the bus. Progress events carry the current state,
// never a delta, so a dropped or repeated event is harmless.
type Event struct {
	Name    string
	TaskID  string
	Version int
	Mode    domain.TaskMode
	Phase   domain.Phase

	Step       int
	StepsTotal int
	StepName   string
	Percent    float64

	BytesDownloaded int64
	BytesTotal      int64

	// update checks
	Checked   int
	Total     int
	Updatable []domain.ModID

	// depot login
	SessionID    int64
	SessionPhase string

	Message string
}

// IsProgress reports whether the event may be coalesced
func (e Event) IsProgress() bool {
	return e.Name == EventDownloadProgress || e.Name == EventUpdatableProgress || e.Name == EventDepotOutput
}

// Bus fans events out to subscribers without ever blocking the publisher
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBus creates an event bus
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a function that ends the subscription
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

// Publish delivers e to every subscriber. A full subscriber drops progress events;
// other events displace the oldest buffered one.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- e:
			continue
		default:
		}
		if e.IsProgress() {
			continue
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- e:
		default:
		}
	}
}
