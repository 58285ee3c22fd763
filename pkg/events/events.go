// Package events defines the run event vocabulary and two distinct
// channels that carry it: a single-consumer Bus feeding the RunState
// writer, and a lossy Broker feeding any number of UI subscribers.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"ipcrawler/pkg/types"
)

// Kind is the closed set of event types a plugin or the scheduler can
// emit.
type Kind string

const (
	KindTaskStarted      Kind = "task.started"
	KindTaskCompleted    Kind = "task.completed"
	KindPortDiscovered   Kind = "port.discovered"
	KindServiceDiscovered Kind = "service.discovered"
	KindTaskFailed       Kind = "task.failed"
)

// Event is the tagged union flowing through both the Bus and the Broker.
// Only the fields relevant to Kind are populated.
type Event struct {
	ID        string
	Kind      Kind
	Timestamp time.Time
	Plugin    string
	Port      uint16
	PortName  string
	Service   types.Service
	Err       *types.ExecError
}

func newEvent(kind Kind, plugin string) Event {
	return Event{ID: uuid.NewString(), Kind: kind, Timestamp: time.Now(), Plugin: plugin}
}

// TaskStarted builds a task.started event for the named plugin.
func TaskStarted(plugin string) Event {
	return newEvent(KindTaskStarted, plugin)
}

// TaskCompleted builds a task.completed event for the named plugin.
func TaskCompleted(plugin string) Event {
	return newEvent(KindTaskCompleted, plugin)
}

// PortDiscovered builds a port.discovered event.
func PortDiscovered(plugin string, port uint16, name string) Event {
	ev := newEvent(KindPortDiscovered, plugin)
	ev.Port = port
	ev.PortName = name
	return ev
}

// ServiceDiscovered builds a service.discovered event.
func ServiceDiscovered(plugin string, svc types.Service) Event {
	ev := newEvent(KindServiceDiscovered, plugin)
	ev.Service = svc
	return ev
}

// TaskFailed builds a task.failed event carrying the ExecError that
// caused the failure.
func TaskFailed(plugin string, execErr types.ExecError) Event {
	ev := newEvent(KindTaskFailed, plugin)
	ev.Err = &execErr
	return ev
}

// Bus is the authoritative, single-consumer event channel: every plugin
// and the scheduler itself publish to it, and exactly one goroutine (the
// RunState writer) drains it. Unlike Broker below, Bus never drops an
// event — Publish blocks until the consumer keeps up or the run is
// stopped.
type Bus struct {
	ch     chan Event
	stopCh chan struct{}

	mu      sync.RWMutex
	stopped bool
}

// NewBus creates a Bus with the given buffer size.
func NewBus(buffer int) *Bus {
	return &Bus{ch: make(chan Event, buffer), stopCh: make(chan struct{})}
}

// Publish sends ev to the single consumer, blocking if the buffer is
// full, or returning immediately if the bus has been stopped.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		return
	}
	select {
	case b.ch <- ev:
	case <-b.stopCh:
	}
}

// Events returns the channel the single consumer should range over.
func (b *Bus) Events() <-chan Event {
	return b.ch
}

// Stop unblocks any pending Publish calls and signals the consumer no
// more events will arrive once Events() is drained. Safe to call once.
func (b *Bus) Stop() {
	close(b.stopCh)
	b.mu.Lock()
	b.stopped = true
	close(b.ch)
	b.mu.Unlock()
}

// Subscriber is a channel an interactive UI reads from.
type Subscriber chan Event

// Broker is a lossy multi-subscriber fan-out used only by the UI Event
// Channel (spec §4.7): a slow or absent UI subscriber must never block
// scan progress, so Publish is non-blocking per subscriber.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]bool
	eventCh     chan Event
	stopCh      chan struct{}
}

// NewBroker creates a new lossy event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe registers a new UI subscriber with its own buffered channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscriber.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribers[sub] {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// Publish fans ev out to every subscriber, dropping it for any subscriber
// whose buffer is full.
func (b *Broker) Publish(ev Event) {
	select {
	case b.eventCh <- ev:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case ev := <-b.eventCh:
			b.broadcast(ev)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subscribers {
		select {
		case sub <- ev:
		default:
		}
	}
}

// SubscriberCount returns the number of active UI subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
