package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertEmpty(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestBroker_Routing(t *testing.T) {
	b := NewBroker(zap.NewNop())

	home, cancelHome := b.Subscribe("acc@a", "home")
	defer cancelHome()
	user, cancelUser := b.Subscribe("acc@a", "user_u@a")
	defer cancelUser()
	other, cancelOther := b.Subscribe("acc@b", "home")
	defer cancelOther()

	b.Publish(Event{Account: "acc@a", Bucket: "home", Kind: EventCommit})
	ev := receive(t, home)
	assert.Equal(t, EventCommit, ev.Kind)
	assert.Equal(t, b.ID(), ev.Origin)
	assertEmpty(t, user)
	assertEmpty(t, other)

	// Wildcard reaches every bucket of the account only.
	b.Publish(Event{Account: "acc@a", Kind: EventCommit})
	receive(t, home)
	receive(t, user)
	assertEmpty(t, other)

	b.Publish(Event{Kind: EventCommit})
	receive(t, home)
	receive(t, user)
	receive(t, other)
}

func TestBroker_Coalesces(t *testing.T) {
	b := NewBroker(nil)
	ch, cancel := b.Subscribe("acc@a", "home")
	defer cancel()

	for i := 0; i < 10; i++ {
		b.Publish(Event{Account: "acc@a", Bucket: "home", Kind: EventState})
	}
	receive(t, ch)
	assertEmpty(t, ch)
}

func TestBroker_Cancel(t *testing.T) {
	b := NewBroker(nil)
	ch, cancel := b.Subscribe("acc@a", "home")
	require.Equal(t, 1, b.Subscribers())

	cancel()
	cancel()
	assert.Equal(t, 0, b.Subscribers())

	b.Publish(Event{Account: "acc@a", Bucket: "home"})
	assertEmpty(t, ch)
}

type recordingRelay struct{ events []Event }

func (r *recordingRelay) Forward(ev Event) { r.events = append(r.events, ev) }

func TestBroker_Relay(t *testing.T) {
	b := NewBroker(nil)
	relay := &recordingRelay{}
	b.SetRelay(relay)

	b.Publish(Event{Account: "acc@a", Bucket: "home"})
	require.Len(t, relay.events, 1)
	assert.Equal(t, b.ID(), relay.events[0].Origin)

	// Remote deliveries are not relayed again.
	b.deliver(Event{Account: "acc@a", Bucket: "home", Origin: "elsewhere"})
	assert.Len(t, relay.events, 1)
}
