// Package store implements the concurrent typed keyspace: a sharded map
// with per-shard guards, lazy expiry, and the list/stream waiter
// registries that blocking commands suspend on.
package store

import (
	"container/list"
	"sort"
	"time"
)

// Kind identifies which of the five value variants a keyspace entry holds.
type Kind int

const (
	KindInteger Kind = iota
	KindString
	KindList
	KindStream
	KindSortedSet
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "int"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindStream:
		return "stream"
	case KindSortedSet:
		return "zset"
	default:
		return "none"
	}
}

// Value is one keyspace entry. Data holds exactly the Go type matching Kind:
// int64, string, *List, *Stream, or *SortedSet.
type Value struct {
	Kind      Kind
	Data      interface{}
	ExpiresAt *time.Time
}

func (v *Value) expired(now time.Time) bool {
	return v.ExpiresAt != nil && now.After(*v.ExpiresAt)
}

// List is a doubly-linked sequence of byte strings, pushed/popped at either
// end in O(1) and indexable in O(n).
type List struct {
	l *list.List
}

func NewList() *List { return &List{l: list.New()} }

func (l *List) Len() int { return l.l.Len() }

func (l *List) PushFront(v string) { l.l.PushFront(v) }
func (l *List) PushBack(v string)  { l.l.PushBack(v) }

func (l *List) PopFront() (string, bool) {
	e := l.l.Front()
	if e == nil {
		return "", false
	}
	l.l.Remove(e)
	return e.Value.(string), true
}

func (l *List) PopBack() (string, bool) {
	e := l.l.Back()
	if e == nil {
		return "", false
	}
	l.l.Remove(e)
	return e.Value.(string), true
}

// Range returns the inclusive slice [start, stop] with Redis-style negative
// indexing (-1 is the last element).
func (l *List) Range(start, stop int) []string {
	n := l.l.Len()
	start = normalizeIndex(start, n)
	stop = normalizeIndex(stop, n)
	if stop >= n {
		stop = n - 1
	}
	if start < 0 {
		start = 0
	}
	if start > stop || start >= n {
		return []string{}
	}

	out := make([]string, 0, stop-start+1)
	i := 0
	for e := l.l.Front(); e != nil && i <= stop; e, i = e.Next(), i+1 {
		if i >= start {
			out = append(out, e.Value.(string))
		}
	}
	return out
}

func normalizeIndex(idx, n int) int {
	if idx < 0 {
		return n + idx
	}
	return idx
}

// StreamID is the 128-bit composite id (ms, seq).
type StreamID struct {
	Ms  uint64
	Seq uint64
}

func (a StreamID) Less(b StreamID) bool {
	if a.Ms != b.Ms {
		return a.Ms < b.Ms
	}
	return a.Seq < b.Seq
}

func (a StreamID) IsZero() bool { return a.Ms == 0 && a.Seq == 0 }

// StreamEntry is one ordered (id -> field/value pairs) record.
type StreamEntry struct {
	ID     StreamID
	Fields []string // flattened field,value,field,value...
}

// Stream is an append-only ordered log keyed by strictly increasing ids.
type Stream struct {
	entries []StreamEntry
}

func NewStream() *Stream { return &Stream{} }

func (s *Stream) Len() int { return len(s.entries) }

func (s *Stream) Top() (StreamID, bool) {
	if len(s.entries) == 0 {
		return StreamID{}, false
	}
	return s.entries[len(s.entries)-1].ID, true
}

// LastSeqAtMs returns the sequence of the last entry at the given ms, if any.
func (s *Stream) LastSeqAtMs(ms uint64) (uint64, bool) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].ID.Ms == ms {
			return s.entries[i].ID.Seq, true
		}
		if s.entries[i].ID.Ms < ms {
			break
		}
	}
	return 0, false
}

func (s *Stream) Append(e StreamEntry) { s.entries = append(s.entries, e) }

// Range returns entries with id in [start, end], both inclusive.
func (s *Stream) Range(start, end StreamID) []StreamEntry {
	var out []StreamEntry
	for _, e := range s.entries {
		if e.ID.Less(start) {
			continue
		}
		if end.Less(e.ID) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// After returns entries with id strictly greater than after.
func (s *Stream) After(after StreamID) []StreamEntry {
	var out []StreamEntry
	for _, e := range s.entries {
		if after.Less(e.ID) {
			out = append(out, e)
		}
	}
	return out
}

// SortedSet holds (score, member) pairs unique by member, ordered by
// (score, member).
type SortedSet struct {
	scores  map[string]float64
	members []string // kept sorted by (score, member)
}

func NewSortedSet() *SortedSet {
	return &SortedSet{scores: make(map[string]float64)}
}

func (z *SortedSet) Len() int { return len(z.members) }

func (z *SortedSet) less(a, b string) bool {
	sa, sb := z.scores[a], z.scores[b]
	if sa != sb {
		return sa < sb
	}
	return a < b
}

// Add upserts member with score. Returns true if member is new.
func (z *SortedSet) Add(member string, score float64) bool {
	if _, exists := z.scores[member]; exists {
		z.remove(member)
		z.scores[member] = score
		z.insertSorted(member)
		return false
	}
	z.scores[member] = score
	z.insertSorted(member)
	return true
}

func (z *SortedSet) insertSorted(member string) {
	i := sort.Search(len(z.members), func(i int) bool { return !z.less(z.members[i], member) })
	z.members = append(z.members, "")
	copy(z.members[i+1:], z.members[i:])
	z.members[i] = member
}

func (z *SortedSet) remove(member string) {
	for i, m := range z.members {
		if m == member {
			z.members = append(z.members[:i], z.members[i+1:]...)
			return
		}
	}
}

func (z *SortedSet) Remove(member string) bool {
	if _, exists := z.scores[member]; !exists {
		return false
	}
	z.remove(member)
	delete(z.scores, member)
	return true
}

func (z *SortedSet) Score(member string) (float64, bool) {
	s, ok := z.scores[member]
	return s, ok
}

// Rank returns the 0-based rank of member in ascending (score, member)
// order, or -1 if absent.
func (z *SortedSet) Rank(member string) int {
	if _, ok := z.scores[member]; !ok {
		return -1
	}
	for i, m := range z.members {
		if m == member {
			return i
		}
	}
	return -1
}

// Range returns members in rank order [start, stop] inclusive, supporting
// negative indices counted from the end.
func (z *SortedSet) Range(start, stop int) []string {
	n := len(z.members)
	start = normalizeIndex(start, n)
	stop = normalizeIndex(stop, n)
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || n == 0 || start >= n {
		return []string{}
	}
	out := make([]string, stop-start+1)
	copy(out, z.members[start:stop+1])
	return out
}
