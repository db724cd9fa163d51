package replication

import (
	"testing"

	"github.com/stretchr/testify/assert"

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

func TestGenerateReplIDIs40Chars(t *testing.T) {
	id := GenerateReplID()
	assert.Len(t, id, 40)
}

func TestPropagateSendsToEveryReplica(t *testing.T) {
	reg := NewRegistry()
	a := &fakeOutbox{alive: true}
	b := &fakeOutbox{alive: true}
	reg.AddReplica(a)
	reg.AddReplica(b)

	reg.Propagate([]string{"SET", "k", "v"})

	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
	assert.Equal(t, 2, reg.ReplicaCount())
}

func TestPropagatePrunesDeadReplicas(t *testing.T) {
	reg := NewRegistry()
	dead := &fakeOutbox{alive: false}
	reg.AddReplica(dead)
	reg.Propagate([]string{"SET", "k", "v"})
	assert.Equal(t, 0, reg.ReplicaCount())
}

func TestOffsetAccumulates(t *testing.T) {
	reg := NewRegistry()
	reg.AddOffset(10)
	reg.AddOffset(5)
	assert.Equal(t, int64(15), reg.Offset())
}
