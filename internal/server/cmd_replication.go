package server

import (
	"fmt"
	"strconv"
	"strings"

	"kvserver/internal/protocol"
	"kvserver/internal/rdbsnap"
)

// cmdInfo implements INFO replication (the only section this server needs
// to report: role, replid, and the replication byte offset).
func cmdInfo(srv *Server, sess *Session, argv []string) protocol.Frame {
	var b strings.Builder
	b.WriteString("# Replication\r\n")
	if srv.IsMaster() {
		b.WriteString("role:master\r\n")
	} else {
		b.WriteString("role:slave\r\n")
	}
	fmt.Fprintf(&b, "master_replid:%s\r\n", srv.replID)
	fmt.Fprintf(&b, "master_repl_offset:%d\r\n", srv.replicas.Offset())
	return protocol.NewBulkStringFromText(b.String())
}

// cmdReplConf implements REPLCONF listening-port/capa (always +OK) and
// REPLCONF GETACK (replies with the replica's current offset).
func cmdReplConf(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) >= 2 && strings.ToUpper(argv[1]) == "GETACK" {
		return protocol.ArgvFrame([]string{"REPLCONF", "ACK", strconv.FormatInt(srv.replicas.Offset(), 10)})
	}
	return protocol.NewSimpleString("OK")
}

// cmdPSync implements PSYNC ? -1: register the caller as a replica and send
// FULLRESYNC followed by a live snapshot of the current keyspace. Partial
// resync is never offered; every PSYNC gets a fresh full snapshot.
func cmdPSync(srv *Server, sess *Session, argv []string) protocol.Frame {
	if len(argv) != 3 || argv[1] != "?" || argv[2] != "-1" {
		return protocol.NewSimpleError("ERR PSYNC only supports full resync (PSYNC ? -1)")
	}

	offset := srv.replicas.Offset()
	sess.Send(protocol.NewSimpleString(fmt.Sprintf("FULLRESYNC %s %d", srv.replID, offset)))

	entries := srv.store.Snapshot()
	rdbEntries := make([]rdbsnap.Entry, len(entries))
	for i, e := range entries {
		rdbEntries[i] = rdbsnap.Entry{Key: e.Key, Value: e.Value, ExpiresAt: e.ExpiresAt}
	}
	payload, err := rdbsnap.Encode(rdbEntries)
	if err != nil {
		return protocol.NewSimpleError("ERR failed to build replication snapshot")
	}
	sess.Send(protocol.NewRawPayload(payload))

	srv.replicas.AddReplica(sess)
	return protocol.Frame{}
}
