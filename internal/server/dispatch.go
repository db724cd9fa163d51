package server

import (
	"fmt"
	"strings"

	"kvserver/internal/protocol"
)

type handlerFunc func(srv *Server, sess *Session, argv []string) protocol.Frame

// writeCommands names every command whose execution must be re-encoded and
// fanned out to connected replicas when this process is a primary.
var writeCommands = map[string]bool{
	"SET": true, "DEL": true, "INCR": true, "DECR": true, "INCRBY": true,
	"EXPIRE": true, "RPUSH": true, "LPUSH": true, "LPOP": true, "RPOP": true,
	"XADD": true, "ZADD": true,
}

// subscribedModeAllowed names the only commands a connection in Subscribed
// mode may issue, per the pub/sub mode gate.
var subscribedModeAllowed = map[string]bool{
	"SUBSCRIBE": true, "UNSUBSCRIBE": true, "PSUBSCRIBE": true, "PUNSUBSCRIBE": true,
	"PING": true, "QUIT": true, "RESET": true,
}

var handlers map[string]handlerFunc

func init() {
	handlers = map[string]handlerFunc{
		"PING": cmdPing,
		"QUIT": cmdQuit,

		"SET":    cmdSet,
		"GET":    cmdGet,
		"INCR":   cmdIncr,
		"DECR":   cmdDecr,
		"INCRBY": cmdIncrBy,
		"DEL":    cmdDel,
		"EXISTS": cmdExists,
		"EXPIRE": cmdExpire,
		"TTL":    cmdTTL,
		"TYPE":   cmdType,
		"KEYS":   cmdKeys,
		"CONFIG": cmdConfig,

		"RPUSH":  cmdRPush,
		"LPUSH":  cmdLPush,
		"LPOP":   cmdLPop,
		"RPOP":   cmdRPop,
		"LLEN":   cmdLLen,
		"LRANGE": cmdLRange,
		"BLPOP":  cmdBLPop,

		"XADD":   cmdXAdd,
		"XRANGE": cmdXRange,
		"XREAD":  cmdXRead,

		"ZADD":   cmdZAdd,
		"ZRANK":  cmdZRank,
		"ZRANGE": cmdZRange,
		"ZSCORE": cmdZScore,

		"MULTI":   cmdMulti,
		"EXEC":    cmdExec,
		"DISCARD": cmdDiscard,

		"SUBSCRIBE":   cmdSubscribe,
		"UNSUBSCRIBE": cmdUnsubscribe,
		"PUBLISH":     cmdPublish,
		"RESET":       cmdReset,

		"INFO":     cmdInfo,
		"REPLCONF": cmdReplConf,
		"PSYNC":    cmdPSync,
	}
}

// Execute runs the full six-step dispatch rule for one parsed frame: mode
// gating, transaction queuing, replica fan-out, handler execution, and the
// from-master reply-suppression/offset bookkeeping. consumed is the number
// of wire bytes the frame took, used only when sess is a from-master
// connection. The returned bool is false when nothing should be written:
// a suppressed from-master reply, or a zero Frame from a handler that
// already replied through Session.Send.
func (srv *Server) Execute(sess *Session, argv []string, consumed int) (protocol.Frame, bool) {
	if len(argv) == 0 {
		return protocol.Frame{}, false
	}
	name := strings.ToUpper(argv[0])

	if sess.Mode() == ModeSubscribed && !subscribedModeAllowed[name] {
		reply := protocol.NewSimpleError(fmt.Sprintf(
			"ERR Can't execute '%s': only (P|S)SUBSCRIBE / (P|S)UNSUBSCRIBE / PING / QUIT / RESET are allowed in this context",
			argv[0]))
		return reply, true
	}

	var reply protocol.Frame
	if sess.InTransaction() && name != "EXEC" && name != "DISCARD" && name != "MULTI" && name != "RESET" {
		sess.queue(argv)
		reply = protocol.NewSimpleString("QUEUED")
	} else {
		reply = srv.executeOne(sess, name, argv)
	}

	isGetAck := name == "REPLCONF" && len(argv) >= 2 && strings.ToUpper(argv[1]) == "GETACK"
	suppress := sess.FromMaster() && !isGetAck
	if sess.FromMaster() {
		srv.replicas.AddOffset(consumed)
	}

	return reply, !suppress && reply.Kind != 0
}

// executeOne runs a single command's write fan-out and handler, without any
// of the transaction-queuing or mode-gating surrounding it. EXEC calls this
// directly per queued command so each gets its own fan-out decision.
func (srv *Server) executeOne(sess *Session, name string, argv []string) protocol.Frame {
	if writeCommands[name] && srv.IsMaster() {
		srv.replicas.Propagate(argv)
	}
	h, ok := handlers[name]
	if !ok {
		return protocol.NewSimpleError(fmt.Sprintf("ERR unknown command '%s'", argv[0]))
	}
	return h(srv, sess, argv)
}

func upperCommand(name string) string { return strings.ToUpper(name) }

func errorFrame(err error) protocol.Frame {
	return protocol.NewSimpleError(err.Error())
}

func arityError(cmd string) protocol.Frame {
	return protocol.NewSimpleError(fmt.Sprintf("ERR wrong number of arguments for '%s' command", strings.ToLower(cmd)))
}

func stringArrayFrame(items []string) protocol.Frame {
	out := make([]protocol.Frame, len(items))
	for i, s := range items {
		out[i] = protocol.NewBulkStringFromText(s)
	}
	return protocol.NewArray(out)
}
