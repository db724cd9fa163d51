package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRPushThenLRange(t *testing.T) {
	s := New()
	n, err := s.RPush("k", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	got, err := s.LRange("k", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestLPushReversesArgumentOrder(t *testing.T) {
	s := New()
	_, err := s.LPush("k", []string{"a", "b"})
	require.NoError(t, err)
	got, err := s.LRange("k", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, got)
}

func TestSetExpiryThenGetReturnsAbsent(t *testing.T) {
	s := New()
	past := time.Now().Add(-time.Millisecond)
	s.SetString("k", "v", &past)
	_, ok := s.GetString("k")
	assert.False(t, ok)
}

func TestIncrCreatesThenIncrements(t *testing.T) {
	s := New()
	v, err := s.Incr("k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	v, err = s.Incr("k")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestIncrWrongTypeErrors(t *testing.T) {
	s := New()
	s.SetString("k", "not-a-number", nil)
	_, err := s.Incr("k")
	require.Error(t, err)
}

func TestWrongTypeOnList(t *testing.T) {
	s := New()
	s.SetString("k", "v", nil)
	_, err := s.RPush("k", []string{"x"})
	assert.ErrorIs(t, err, ErrWrongType{})
}

func TestRPushWakesBLPOPWaiter(t *testing.T) {
	s := New()
	ch, cancel := s.ListWaiters().Wait("x")
	defer cancel()

	n, err := s.RPush("x", []string{"v"})
	require.NoError(t, err)
	assert.Equal(t, 0, n, "delivered item must not be stored in the list")

	select {
	case got := <-ch:
		assert.Equal(t, "v", got)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken")
	}
}

func TestXAddStrictlyIncreasing(t *testing.T) {
	s := New()
	id1, err := s.XAdd("s", 1, 1, false, []string{"f", "v"})
	require.NoError(t, err)
	assert.Equal(t, StreamID{1, 1}, id1)

	_, err = s.XAdd("s", 1, 0, false, []string{"f", "v"})
	require.Error(t, err)
	assert.Equal(t, "ERR The ID specified in XADD is equal or smaller than the target stream top item", err.Error())
}

func TestXAddRejectsZero(t *testing.T) {
	s := New()
	_, err := s.XAdd("s", 0, 0, false, []string{"f", "v"})
	require.Error(t, err)
}

func TestXAddAutoSeq(t *testing.T) {
	s := New()
	id1, err := s.XAdd("s", 5, 0, true, []string{"f", "v"})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id1.Seq)

	id2, err := s.XAdd("s", 5, 0, true, []string{"f", "v"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id2.Seq)
}

func TestZAddNewVsReplace(t *testing.T) {
	s := New()
	n, err := s.ZAdd("z", "alice", 1.0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.ZAdd("z", "alice", 2.0)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "replacing an existing member must return 0")
}

func TestZRankOrdering(t *testing.T) {
	s := New()
	_, _ = s.ZAdd("z", "b", 2)
	_, _ = s.ZAdd("z", "a", 1)
	rank, ok, err := s.ZRank("z", "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, rank)
}
