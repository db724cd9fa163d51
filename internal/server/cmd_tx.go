package server

import "kvserver/internal/protocol"

func cmdMulti(srv *Server, sess *Session, argv []string) protocol.Frame {
	if sess.InTransaction() {
		return protocol.NewSimpleError("ERR MULTI calls can not be nested")
	}
	sess.beginTransaction()
	return protocol.NewSimpleString("OK")
}

// cmdExec drains the queued commands, running each through the same
// fan-out/handler path as a top-level command, and collects every reply
// (including per-command errors) into the result array rather than
// aborting on the first failure.
func cmdExec(srv *Server, sess *Session, argv []string) protocol.Frame {
	if !sess.InTransaction() {
		return protocol.NewSimpleError("ERR EXEC without MULTI")
	}
	queued := sess.takeTransaction()
	items := make([]protocol.Frame, len(queued))
	for i, cmd := range queued {
		name := cmd[0]
		items[i] = srv.executeOne(sess, upperCommand(name), cmd)
	}
	return protocol.NewArray(items)
}

func cmdDiscard(srv *Server, sess *Session, argv []string) protocol.Frame {
	if !sess.InTransaction() {
		return protocol.NewSimpleError("ERR DISCARD without MULTI")
	}
	sess.discardTransaction()
	return protocol.NewSimpleString("OK")
}
