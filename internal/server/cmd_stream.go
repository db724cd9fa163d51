package server

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"kvserver/internal/protocol"
	"kvserver/internal/store"
)

func formatStreamID(id store.StreamID) string {
	return fmt.Sprintf("%d-%d", id.Ms, id.Seq)
}

func entryFrame(e store.StreamEntry) protocol.Frame {
	return protocol.NewArray([]protocol.Frame{
		protocol.NewBulkStringFromText(formatStreamID(e.ID)),
		stringArrayFrame(e.Fields),
	})
}

func entriesFrame(entries []store.StreamEntry) protocol.Frame {
	items := make([]protocol.Frame, len(entries))
	for i, e := range entries {
		items[i] = entryFrame(e)
	}
	return protocol.NewArray(items)
}

// cmdXAdd implements XADD key id field value [field value ...].
func cmdXAdd(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) < 5 || len(argv)%2 != 1 {
		return arityError("XADD")
	}
	ms, seq, autoSeq, err := store.ParseStreamIDSpec(argv[2])
	if err != nil {
		return protocol.NewSimpleError(err.Error())
	}
	id, err := srv.store.XAdd(argv[1], ms, seq, autoSeq, argv[3:])
	if err != nil {
		return errorFrame(err)
	}
	return protocol.NewBulkStringFromText(formatStreamID(id))
}

// cmdXRange implements XRANGE key start end.
func cmdXRange(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) != 4 {
		return arityError("XRANGE")
	}
	start, _, err := store.ParseRangeEndpoint(argv[2], true)
	if err != nil {
		return protocol.NewSimpleError(err.Error())
	}
	end, _, err := store.ParseRangeEndpoint(argv[3], false)
	if err != nil {
		return protocol.NewSimpleError(err.Error())
	}
	entries, err := srv.store.XRange(argv[1], start, end)
	if err != nil {
		return errorFrame(err)
	}
	return entriesFrame(entries)
}

// cmdXRead implements XREAD [BLOCK milliseconds] STREAMS key id, where id
// may be "$" meaning "only entries appended after this call".
func cmdXRead(srv *Server, sess *Session, argv []string) protocol.Frame {
	i := 1
	var blockMs int64 = -1
	if i < len(argv) && strings.ToUpper(argv[i]) == "BLOCK" {
		if i+1 >= len(argv) {
			return protocol.NewSimpleError("ERR syntax error")
		}
		ms, err := strconv.ParseInt(argv[i+1], 10, 64)
		if err != nil || ms < 0 {
			return protocol.NewSimpleError("ERR timeout is not an integer or out of range")
		}
		blockMs = ms
		i += 2
	}
	if i >= len(argv) || strings.ToUpper(argv[i]) != "STREAMS" {
		return protocol.NewSimpleError("ERR syntax error")
	}
	rest := argv[i+1:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return protocol.NewSimpleError("ERR Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified.")
	}
	n := len(rest) / 2
	keys := rest[:n]
	idSpecs := rest[n:]

	after := make([]store.StreamID, n)
	for k, idSpec := range idSpecs {
		if idSpec == "$" {
			after[k] = srv.store.LastStreamID(keys[k])
			continue
		}
		id, _, err := store.ParseRangeEndpoint(idSpec, false)
		if err != nil {
			return protocol.NewSimpleError(err.Error())
		}
		after[k] = id
	}

	perKey, err := xreadImmediateAll(srv, keys, after)
	if err != nil {
		return errorFrame(err)
	}
	if anyNonEmpty(perKey) || blockMs < 0 {
		if !anyNonEmpty(perKey) {
			return protocol.NewNilArray()
		}
		return xreadReply(keys, perKey)
	}

	// Subscribe to every listed key's stream waiter; the first event across
	// any of them wins the block.
	type sub struct {
		key    string
		ch     <-chan store.StreamEvent
		cancel func()
	}
	subs := make([]sub, n)
	for k, key := range keys {
		ch, cancel := srv.store.StreamWaiters().Subscribe(key)
		subs[k] = sub{key: key, ch: ch, cancel: cancel}
	}
	defer func() {
		for _, s := range subs {
			s.cancel()
		}
	}()

	// Subscribing and checking the stream happen under two different locks
	// (the waiter registry's and the shard's), so an XADD landing between
	// the first xreadImmediateAll miss and these Subscribe calls would be
	// published to no one yet (no subscriber was registered) and then never
	// observed, since the entry it added is otherwise only delivered via
	// that broadcast. Unlike a list push, the entry is always retained in
	// the stream regardless of subscribers, so re-checking immediately
	// after subscribing (before suspending) is sufficient to recover it.
	perKey, err = xreadImmediateAll(srv, keys, after)
	if err != nil {
		return errorFrame(err)
	}
	if anyNonEmpty(perKey) {
		return xreadReply(keys, perKey)
	}

	var timeout <-chan time.Time
	if blockMs > 0 {
		timer := time.NewTimer(time.Duration(blockMs) * time.Millisecond)
		defer timer.Stop()
		timeout = timer.C
	}

	result := make(chan store.StreamEvent, 1)
	done := make(chan struct{})
	defer close(done)
	for _, s := range subs {
		go func(s sub) {
			select {
			case ev := <-s.ch:
				select {
				case result <- ev:
				default:
				}
			case <-done:
			}
		}(s)
	}

	select {
	case ev := <-result:
		return xreadReply([]string{ev.Key}, [][]store.StreamEntry{{ev.Entry}})
	case <-timeout:
		return protocol.NewNilArray()
	case <-sess.done:
		return protocol.NewNilArray()
	}
}

func anyNonEmpty(perKey [][]store.StreamEntry) bool {
	for _, e := range perKey {
		if len(e) > 0 {
			return true
		}
	}
	return false
}

func xreadImmediateAll(srv *Server, keys []string, after []store.StreamID) ([][]store.StreamEntry, error) {
	out := make([][]store.StreamEntry, len(keys))
	for i, key := range keys {
		entries, err := srv.store.XReadImmediate(key, after[i])
		if err != nil {
			return nil, err
		}
		out[i] = entries
	}
	return out, nil
}

func xreadReply(keys []string, perKey [][]store.StreamEntry) protocol.Frame {
	items := make([]protocol.Frame, 0, len(keys))
	for i, key := range keys {
		if len(perKey[i]) == 0 {
			continue
		}
		items = append(items, protocol.NewArray([]protocol.Frame{
			protocol.NewBulkStringFromText(key),
			entriesFrame(perKey[i]),
		}))
	}
	return protocol.NewArray(items)
}
