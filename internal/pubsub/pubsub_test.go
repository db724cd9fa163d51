package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvserver/internal/protocol"
)

type fakeOutbox struct {
	alive bool
	got   []protocol.Frame
}

func (f *fakeOutbox) Send(fr protocol.Frame) bool {
	if !f.alive {
		return false
	}
	f.got = append(f.got, fr)
	return true
}

func TestPublishFansOutAndCountsDelivered(t *testing.T) {
	r := New()
	a := &fakeOutbox{alive: true}
	b := &fakeOutbox{alive: true}
	r.Subscribe("c1", a)
	r.Subscribe("c1", b)

	n := r.Publish("c1", "hello")
	assert.Equal(t, 2, n)
	require.Len(t, a.got, 1)
	require.Len(t, b.got, 1)
}

func TestPublishPrunesDeadOutboxes(t *testing.T) {
	r := New()
	dead := &fakeOutbox{alive: false}
	r.Subscribe("c1", dead)

	n := r.Publish("c1", "hello")
	assert.Equal(t, 0, n)

	alive := &fakeOutbox{alive: true}
	r.Subscribe("c1", alive)
	n = r.Publish("c1", "again")
	assert.Equal(t, 1, n, "dead outbox from the earlier publish must have been pruned")
}

func TestUnsubscribeRemovesOutbox(t *testing.T) {
	r := New()
	a := &fakeOutbox{alive: true}
	r.Subscribe("c1", a)
	r.Unsubscribe("c1", a)
	assert.Equal(t, 0, r.Publish("c1", "x"))
}
