package server

import (
	"strconv"
	"time"

	"kvserver/internal/protocol"
)

func cmdRPush(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) < 3 {
		return arityError("RPUSH")
	}
	n, err := srv.store.RPush(argv[1], argv[2:])
	if err != nil {
		return errorFrame(err)
	}
	return protocol.NewInteger(int64(n))
}

func cmdLPush(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) < 3 {
		return arityError("LPUSH")
	}
	n, err := srv.store.LPush(argv[1], argv[2:])
	if err != nil {
		return errorFrame(err)
	}
	return protocol.NewInteger(int64(n))
}

func cmdLPop(srv *Server, sess *Session, argv []string) protocol.Frame {
	return popReply(srv, argv, "LPOP", true)
}

func cmdRPop(srv *Server, sess *Session, argv []string) protocol.Frame {
	return popReply(srv, argv, "RPOP", false)
}

func popReply(srv *Server, argv []string, name string, fromHead bool) protocol.Frame {
	if len(argv) < 2 || len(argv) > 3 {
		return arityError(name)
	}
	count := -1
	hasCount := len(argv) == 3
	if hasCount {
		n, err := strconv.Atoi(argv[2])
		if err != nil || n < 0 {
			return protocol.NewSimpleError("ERR value is out of range, must be positive")
		}
		count = n
	}

	var out []string
	var err error
	if fromHead {
		out, err = srv.store.LPop(argv[1], count)
	} else {
		out, err = srv.store.RPop(argv[1], count)
	}
	if err != nil {
		return errorFrame(err)
	}
	if len(out) == 0 {
		if hasCount {
			return protocol.NewNilArray()
		}
		return protocol.NewNullBulkString()
	}
	if !hasCount {
		return protocol.NewBulkStringFromText(out[0])
	}
	return stringArrayFrame(out)
}

func cmdLLen(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) != 2 {
		return arityError("LLEN")
	}
	n, err := srv.store.LLen(argv[1])
	if err != nil {
		return errorFrame(err)
	}
	return protocol.NewInteger(int64(n))
}

func cmdLRange(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) != 4 {
		return arityError("LRANGE")
	}
	start, err1 := strconv.Atoi(argv[2])
	stop, err2 := strconv.Atoi(argv[3])
	if err1 != nil || err2 != nil {
		return protocol.NewSimpleError("ERR value is not an integer or out of range")
	}
	out, err := srv.store.LRange(argv[1], start, stop)
	if err != nil {
		return errorFrame(err)
	}
	return stringArrayFrame(out)
}

// cmdBLPop implements BLPOP key timeout: a non-blocking check followed, if
// empty, by registering as a list waiter and suspending until RPUSH/LPUSH
// delivers an item or the timeout elapses. A timeout of 0 waits forever.
//
// Registering the waiter and checking the list happen under two different
// locks (the shard's and the waiter registry's), so a plain
// check-then-register has a lost-wakeup window: an RPUSH landing between the
// first TryPopFront miss and Wait's registration sees no waiter yet and
// stores the value in the list instead of delivering it, and the
// already-blocked BLPOP would then wait on a channel that never fires. Close
// that window by re-checking the list once immediately after registering the
// waiter and before suspending: any RPUSH that ran before the registration left its
// value sitting in the list, where this recheck will find it; any RPUSH that
// runs after the registration delivers straight through the waiter channel
// as usual.
func cmdBLPop(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) != 3 {
		return arityError("BLPOP")
	}
	key := argv[1]
	seconds, err := strconv.ParseFloat(argv[2], 64)
	if err != nil || seconds < 0 {
		return protocol.NewSimpleError("ERR timeout is not a float or out of range")
	}

	if val, ok, err := srv.store.TryPopFront(key); err != nil {
		return errorFrame(err)
	} else if ok {
		return stringArrayFrame([]string{key, val})
	}

	ch, cancel := srv.store.ListWaiters().Wait(key)

	// Drain the channel first (non-blocking): if a push already landed on
	// our freshly-registered waiter, take that delivery rather than also
	// popping the list directly, which would risk consuming two items for
	// one BLPOP if a second, unrelated push is sitting in the list too.
	select {
	case val := <-ch:
		return stringArrayFrame([]string{key, val})
	default:
	}

	if val, ok, err := srv.store.TryPopFront(key); err != nil {
		cancel()
		return errorFrame(err)
	} else if ok {
		cancel()
		return stringArrayFrame([]string{key, val})
	}

	var timeout <-chan time.Time
	if seconds > 0 {
		timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case val := <-ch:
		return stringArrayFrame([]string{key, val})
	case <-timeout:
		cancel()
		// A push may have landed on the waiter between the timer firing
		// and cancel; hand that item to this caller rather than drop it.
		select {
		case val := <-ch:
			return stringArrayFrame([]string{key, val})
		default:
		}
		return protocol.NewNilArray()
	case <-sess.done:
		cancel()
		// The connection is gone; put an item that already landed on the
		// waiter back at the list head.
		select {
		case val := <-ch:
			_, _ = srv.store.LPush(key, []string{val})
		default:
		}
		return protocol.NewNilArray()
	}
}
