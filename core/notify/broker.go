package notify

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventKind tells readers what changed.
type EventKind string

const (
	// EventCommit is published after a merge transaction committed.
	EventCommit EventKind = "commit"
	// EventState is published when a bucket's load state changed.
	EventState EventKind = "state"
)

// Event announces a change to one bucket of one account. An empty Bucket
// addresses every bucket of the account; an empty Account addresses everyone.
type Event struct {
	Account string    `json:"account"`
	Bucket  string    `json:"bucket,omitempty"`
	Kind    EventKind `json:"kind"`
	Origin  string    `json:"origin,omitempty"`
}

// Publisher is implemented by anything events can be handed to.
type Publisher interface {
	Publish(ev Event)
}

// Relay forwards locally published events to other processes.
type Relay interface {
	Forward(ev Event)
}

type subscription struct {
	account string
	bucket  string
	ch      chan Event
}

// Broker fans events out to in-process subscribers.
type Broker struct {
	id  string
	log *zap.Logger

	mu    sync.RWMutex
	subs  map[uint64]*subscription
	next  uint64
	relay Relay
}

// NewBroker returns an empty broker with a random origin id.
func NewBroker(log *zap.Logger) *Broker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broker{
		id:   uuid.NewString(),
		log:  log,
		subs: make(map[uint64]*subscription),
	}
}

// ID returns the origin id stamped on events published through this broker.
func (b *Broker) ID() string { return b.id }

// SetRelay attaches a relay that receives every locally published event.
func (b *Broker) SetRelay(r Relay) {
	b.mu.Lock()
	b.relay = r
	b.mu.Unlock()
}

// Subscribe registers interest in one bucket of one account. The returned
// channel has capacity one; cancel must be called to release it.
func (b *Broker) Subscribe(account, bucket string) (<-chan Event, func()) {
	sub := &subscription{account: account, bucket: bucket, ch: make(chan Event, 1)}

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// Publish delivers ev to matching subscribers and hands it to the relay.
func (b *Broker) Publish(ev Event) {
	if ev.Origin == "" {
		ev.Origin = b.id
	}
	b.deliver(ev)

	b.mu.RLock()
	relay := b.relay
	b.mu.RUnlock()
	if relay != nil {
		relay.Forward(ev)
	}
}

// deliver hands ev to local subscribers only.
func (b *Broker) deliver(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if ev.Account != "" && sub.account != ev.Account {
			continue
		}
		if ev.Bucket != "" && sub.bucket != ev.Bucket {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// A pending event already wakes the reader.
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
