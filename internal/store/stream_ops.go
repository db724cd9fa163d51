package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrStreamIDTooSmall is XADD's rejection of an id not strictly greater
// than the stream's current top id.
type ErrStreamIDTooSmall struct{}

func (ErrStreamIDTooSmall) Error() string {
	return "ERR The ID specified in XADD is equal or smaller than the target stream top item"
}

// ErrStreamIDZero is XADD's rejection of the id (0,0), which is never valid.
type ErrStreamIDZero struct{}

func (ErrStreamIDZero) Error() string {
	return "ERR The ID specified in XADD must be greater than 0-0"
}

// ParseStreamIDSpec parses an XADD id argument ("*", "ms-*", or "ms-seq")
// into a partially-resolved id: ms is always known (current time for "*"),
// autoSeq indicates the sequence must still be allocated.
func ParseStreamIDSpec(spec string) (ms uint64, seq uint64, autoSeq bool, err error) {
	if spec == "*" {
		return uint64(time.Now().UnixMilli()), 0, true, nil
	}
	parts := strings.SplitN(spec, "-", 2)
	msVal, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("ERR Invalid stream ID specified as stream command argument")
	}
	if len(parts) == 1 || parts[1] == "*" {
		return msVal, 0, true, nil
	}
	seqVal, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("ERR Invalid stream ID specified as stream command argument")
	}
	return msVal, seqVal, false, nil
}

// XAdd resolves the id, validates ordering, appends the entry, and notifies
// stream waiters. fields is the flattened field/value sequence.
func (s *Store) XAdd(key string, ms uint64, seq uint64, autoSeq bool, fields []string) (StreamID, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()

	v := sh.getLocked(key, time.Now())
	var st *Stream
	if v == nil {
		st = NewStream()
	} else if v.Kind != KindStream {
		sh.mu.Unlock()
		return StreamID{}, ErrWrongType{}
	} else {
		st = v.Data.(*Stream)
	}

	if autoSeq {
		if last, ok := st.LastSeqAtMs(ms); ok {
			seq = last + 1
		} else if ms != 0 {
			seq = 0
		} else {
			seq = 1
		}
	}
	id := StreamID{Ms: ms, Seq: seq}

	if id.IsZero() {
		sh.mu.Unlock()
		return StreamID{}, ErrStreamIDZero{}
	}
	if top, ok := st.Top(); ok && !top.Less(id) {
		sh.mu.Unlock()
		return StreamID{}, ErrStreamIDTooSmall{}
	}

	entry := StreamEntry{ID: id, Fields: append([]string(nil), fields...)}
	st.Append(entry)
	sh.data[key] = &Value{Kind: KindStream, Data: st}
	sh.mu.Unlock()

	s.streamWaiters.Publish(key, entry)
	return id, nil
}

// ParseRangeEndpoint parses an XRANGE "-"/"+"/"ms"/"ms-seq" endpoint. open
// is true for "-"/"+"; low selects whether a bare ms expands to (ms,0)
// (start) or (ms, math.MaxUint64) (end).
func ParseRangeEndpoint(s string, low bool) (StreamID, bool, error) {
	if s == "-" {
		return StreamID{0, 0}, true, nil
	}
	if s == "+" {
		return StreamID{^uint64(0), ^uint64(0)}, true, nil
	}
	parts := strings.SplitN(s, "-", 2)
	ms, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return StreamID{}, false, fmt.Errorf("ERR Invalid stream ID specified as stream command argument")
	}
	if len(parts) == 2 {
		seq, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return StreamID{}, false, fmt.Errorf("ERR Invalid stream ID specified as stream command argument")
		}
		return StreamID{ms, seq}, false, nil
	}
	if low {
		return StreamID{ms, 0}, false, nil
	}
	return StreamID{ms, ^uint64(0)}, false, nil
}

// XRange returns entries in [start, end] inclusive.
func (s *Store) XRange(key string, start, end StreamID) ([]StreamEntry, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v := sh.getLocked(key, time.Now())
	if v == nil {
		return nil, nil
	}
	if v.Kind != KindStream {
		return nil, ErrWrongType{}
	}
	return v.Data.(*Stream).Range(start, end), nil
}

// XReadImmediate returns entries with id strictly greater than after, for
// the non-blocking path and as the first check before a BLOCK suspend.
func (s *Store) XReadImmediate(key string, after StreamID) ([]StreamEntry, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v := sh.getLocked(key, time.Now())
	if v == nil {
		return nil, nil
	}
	if v.Kind != KindStream {
		return nil, ErrWrongType{}
	}
	return v.Data.(*Stream).After(after), nil
}

// LastStreamID returns the current top id of key's stream, used to resolve
// XREAD's "$" meaning "only entries added after this call".
func (s *Store) LastStreamID(key string) StreamID {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v := sh.getLocked(key, time.Now())
	if v == nil {
		return StreamID{}
	}
	if v.Kind != KindStream {
		return StreamID{}
	}
	top, _ := v.Data.(*Stream).Top()
	return top
}
