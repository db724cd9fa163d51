package server

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvserver/internal/protocol"
)

func newTestServer(t *testing.T) (*Server, *Session) {
	t.Helper()
	srv := New(&Config{MaxConnections: 10})
	srv.isMaster.Store(true)
	client, _ := net.Pipe()
	sess := newSession(1, client)
	return srv, sess
}

func TestSetThenGetRoundTrip(t *testing.T) {
	srv, sess := newTestServer(t)

	reply, send := srv.Execute(sess, []string{"SET", "foo", "bar"}, 0)
	require.True(t, send)
	assert.Equal(t, protocol.NewBulkStringFromText("OK"), reply)

	reply, send = srv.Execute(sess, []string{"GET", "foo"}, 0)
	require.True(t, send)
	assert.Equal(t, protocol.NewBulkStringFromText("bar"), reply)
}

func TestGetMissingKeyIsNullBulk(t *testing.T) {
	srv, sess := newTestServer(t)
	reply, _ := srv.Execute(sess, []string{"GET", "nope"}, 0)
	assert.True(t, reply.IsNullBulk())
}

func TestIncrOnWrongTypeIsWrongTypeError(t *testing.T) {
	srv, sess := newTestServer(t)
	srv.Execute(sess, []string{"RPUSH", "alist", "a"}, 0)
	reply, _ := srv.Execute(sess, []string{"INCR", "alist"}, 0)
	assert.Equal(t, protocol.KindSimpleError, reply.Kind)
	assert.Contains(t, reply.Str, "WRONGTYPE")
}

func TestBlpopDeliversFromConcurrentRpush(t *testing.T) {
	srv, sess1 := newTestServer(t)
	client2, _ := net.Pipe()
	sess2 := newSession(2, client2)

	replyCh := make(chan protocol.Frame, 1)
	go func() {
		reply, _ := srv.Execute(sess1, []string{"BLPOP", "queue", "1"}, 0)
		replyCh <- reply
	}()

	// Give the blocking call time to register as a waiter before pushing.
	time.Sleep(50 * time.Millisecond)
	srv.Execute(sess2, []string{"RPUSH", "queue", "item1"}, 0)

	select {
	case reply := <-replyCh:
		items, ok := reply.StringArgs()
		require.True(t, ok)
		assert.Equal(t, []string{"queue", "item1"}, items)
	case <-time.After(2 * time.Second):
		t.Fatal("BLPOP never woke up")
	}
}

func TestBlpopTimesOutToNilArray(t *testing.T) {
	srv, sess := newTestServer(t)
	reply, _ := srv.Execute(sess, []string{"BLPOP", "neverpushed", "0.05"}, 0)
	assert.Equal(t, protocol.KindArray, reply.Kind)
	assert.Nil(t, reply.Items)
}

func TestMultiExecQueuesAndRunsInOrder(t *testing.T) {
	srv, sess := newTestServer(t)

	reply, _ := srv.Execute(sess, []string{"MULTI"}, 0)
	assert.Equal(t, protocol.NewSimpleString("OK"), reply)

	reply, _ = srv.Execute(sess, []string{"SET", "k", "1"}, 0)
	assert.Equal(t, protocol.NewSimpleString("QUEUED"), reply)

	reply, _ = srv.Execute(sess, []string{"INCR", "k"}, 0)
	assert.Equal(t, protocol.NewSimpleString("QUEUED"), reply)

	reply, _ = srv.Execute(sess, []string{"EXEC"}, 0)
	require.Equal(t, protocol.KindArray, reply.Kind)
	require.Len(t, reply.Items, 2)
	assert.Equal(t, protocol.NewBulkStringFromText("OK"), reply.Items[0])
	assert.Equal(t, protocol.NewInteger(2), reply.Items[1])

	assert.False(t, sess.InTransaction())
}

func TestExecWithoutMultiErrors(t *testing.T) {
	srv, sess := newTestServer(t)
	reply, _ := srv.Execute(sess, []string{"EXEC"}, 0)
	assert.Equal(t, "ERR EXEC without MULTI", reply.Str)
}

func TestDiscardWithoutMultiErrors(t *testing.T) {
	srv, sess := newTestServer(t)
	reply, _ := srv.Execute(sess, []string{"DISCARD"}, 0)
	assert.Equal(t, "ERR DISCARD without MULTI", reply.Str)
}

func TestSubscribedModeGatesCommands(t *testing.T) {
	srv, sess := newTestServer(t)

	// Drain the per-channel subscribe confirmation sent via Session.Send.
	go func() {
		<-sess.outbox
	}()
	reply, send := srv.Execute(sess, []string{"SUBSCRIBE", "news"}, 0)
	assert.False(t, send)
	assert.Equal(t, protocol.Kind(0), reply.Kind)

	reply, send = srv.Execute(sess, []string{"GET", "foo"}, 0)
	assert.True(t, send)
	assert.Equal(t, protocol.KindSimpleError, reply.Kind)
	assert.Contains(t, reply.Str, "only (P|S)SUBSCRIBE")

	reply, send = srv.Execute(sess, []string{"PING"}, 0)
	assert.True(t, send)
	items, ok := reply.StringArgs()
	require.True(t, ok)
	assert.Equal(t, []string{"pong", ""}, items)
}

func TestXreadBlockWithoutTimeoutIsSyntaxError(t *testing.T) {
	srv, sess := newTestServer(t)
	reply, _ := srv.Execute(sess, []string{"XREAD", "BLOCK"}, 0)
	assert.Equal(t, protocol.KindSimpleError, reply.Kind)
	assert.Equal(t, "ERR syntax error", reply.Str)
}

func TestXaddAndXrange(t *testing.T) {
	srv, sess := newTestServer(t)

	reply, _ := srv.Execute(sess, []string{"XADD", "s", "1-1", "field", "value"}, 0)
	assert.Equal(t, protocol.NewBulkStringFromText("1-1"), reply)

	reply, _ = srv.Execute(sess, []string{"XADD", "s", "1-1", "field", "value"}, 0)
	assert.Contains(t, reply.Str, "equal or smaller")

	reply, _ = srv.Execute(sess, []string{"XRANGE", "s", "-", "+"}, 0)
	require.Equal(t, protocol.KindArray, reply.Kind)
	require.Len(t, reply.Items, 1)
}

// TestBlpopNoLostWakeupUnderRace fires RPUSH immediately alongside BLPOP,
// with no synchronizing sleep, so the RPUSH has a real chance of landing in
// the window between BLPOP's initial TryPopFront miss and its waiter
// registration. Without the post-registration recheck, an RPUSH that wins
// that race stores its value in the list instead of delivering it, and the
// already-blocked BLPOP hangs to its timeout despite the value being
// present. Run many iterations to make that window likely to be hit at
// least once.
func TestBlpopNoLostWakeupUnderRace(t *testing.T) {
	srv, _ := newTestServer(t)

	const iterations = 200
	for i := 0; i < iterations; i++ {
		key := "race" + strconv.Itoa(i)
		client1, _ := net.Pipe()
		client2, _ := net.Pipe()
		sess1 := newSession(int64(i*2+1), client1)
		sess2 := newSession(int64(i*2+2), client2)

		replyCh := make(chan protocol.Frame, 1)
		go func() {
			reply, _ := srv.Execute(sess1, []string{"BLPOP", key, "2"}, 0)
			replyCh <- reply
		}()
		go func() {
			srv.Execute(sess2, []string{"RPUSH", key, "item"}, 0)
		}()

		select {
		case reply := <-replyCh:
			items, ok := reply.StringArgs()
			require.True(t, ok, "iteration %d: expected array reply, got %v", i, reply)
			assert.Equal(t, []string{key, "item"}, items, "iteration %d", i)
		case <-time.After(2 * time.Second):
			t.Fatalf("iteration %d: BLPOP never woke up (lost wakeup)", i)
		}
	}
}

func TestXreadBlocksAcrossMultipleKeysAndReturnsTheOneThatFires(t *testing.T) {
	srv, sess1 := newTestServer(t)
	client2, _ := net.Pipe()
	sess2 := newSession(2, client2)

	replyCh := make(chan protocol.Frame, 1)
	go func() {
		reply, _ := srv.Execute(sess1, []string{"XREAD", "BLOCK", "0", "STREAMS", "a", "b", "$", "$"}, 0)
		replyCh <- reply
	}()

	time.Sleep(50 * time.Millisecond)
	srv.Execute(sess2, []string{"XADD", "b", "1-1", "f", "v"}, 0)

	select {
	case reply := <-replyCh:
		require.Equal(t, protocol.KindArray, reply.Kind)
		require.Len(t, reply.Items, 1)
		keyFrame := reply.Items[0].Items[0]
		assert.Equal(t, "b", string(keyFrame.Bulk))
	case <-time.After(2 * time.Second):
		t.Fatal("XREAD never woke up")
	}
}

func TestReplicatedWriteAppliesAndSuppressesReply(t *testing.T) {
	srv, sess := newTestServer(t)
	sess.setFromMaster(true)

	reply, send := srv.Execute(sess, []string{"SET", "k", "v"}, 11)
	assert.False(t, send)
	assert.Equal(t, protocol.NewBulkStringFromText("OK"), reply)
	assert.Equal(t, int64(11), srv.replicas.Offset())

	v, ok := srv.store.GetString("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestReplconfGetAckAlwaysReplies(t *testing.T) {
	srv, sess := newTestServer(t)
	sess.setFromMaster(true)

	reply, send := srv.Execute(sess, []string{"REPLCONF", "GETACK", "*"}, 5)
	assert.True(t, send)
	items, ok := reply.StringArgs()
	require.True(t, ok)
	assert.Equal(t, "REPLCONF", items[0])
	assert.Equal(t, "ACK", items[1])
}
