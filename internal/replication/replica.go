package replication

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"

	"kvserver/internal/protocol"
)

// HandshakeResult carries what the replica learned from its primary during
// bootstrap: the primary's replication id/offset and the snapshot payload
// bytes, for callers that choose to load them.
type HandshakeResult struct {
	ReplID  string
	Offset  int64
	Payload []byte
}

// Handshake performs the replica bootstrap sequence against a primary at
// host:port: PING, REPLCONF listening-port, REPLCONF capa psync2, PSYNC ? -1.
// It aborts (returns an error) on any unexpected response, per the
// handshake's strict-matching propagation policy. The returned reader is
// positioned to begin reading the primary's replicated command stream.
func Handshake(host string, port int, listeningPort int) (net.Conn, *bufio.Reader, *HandshakeResult, error) {
	conn, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("dialing primary: %w", err)
	}

	w := bufio.NewWriter(conn)
	r := bufio.NewReader(conn)

	if err := sendCommandExpectSimple(w, r, []string{"PING"}, "PONG"); err != nil {
		conn.Close()
		return nil, nil, nil, err
	}
	if err := sendCommandExpectSimple(w, r, []string{"REPLCONF", "listening-port", strconv.Itoa(listeningPort)}, "OK"); err != nil {
		conn.Close()
		return nil, nil, nil, err
	}
	if err := sendCommandExpectSimple(w, r, []string{"REPLCONF", "capa", "psync2"}, "OK"); err != nil {
		conn.Close()
		return nil, nil, nil, err
	}

	if err := protocol.Encode(w, protocol.ArgvFrame([]string{"PSYNC", "?", "-1"})); err != nil {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("sending PSYNC: %w", err)
	}
	if err := w.Flush(); err != nil {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("flushing PSYNC: %w", err)
	}

	frame, _, err := protocol.Decode(r)
	if err != nil {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("reading PSYNC response: %w", err)
	}
	if frame.Kind != protocol.KindSimpleString || !strings.HasPrefix(frame.Str, "FULLRESYNC") {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("expected FULLRESYNC, got %q", frame.Str)
	}

	fields := strings.Fields(frame.Str)
	if len(fields) != 3 {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("malformed FULLRESYNC line %q", frame.Str)
	}
	offset, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("malformed FULLRESYNC offset %q", fields[2])
	}

	payload, _, err := protocol.DecodeRawPayload(r)
	if err != nil {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("reading snapshot payload: %w", err)
	}

	return conn, r, &HandshakeResult{ReplID: fields[1], Offset: offset, Payload: payload}, nil
}

func sendCommandExpectSimple(w *bufio.Writer, r *bufio.Reader, argv []string, want string) error {
	if err := protocol.Encode(w, protocol.ArgvFrame(argv)); err != nil {
		return fmt.Errorf("sending %v: %w", argv, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing %v: %w", argv, err)
	}
	frame, _, err := protocol.Decode(r)
	if err != nil {
		return fmt.Errorf("reading reply to %v: %w", argv, err)
	}
	if frame.Kind != protocol.KindSimpleString || !strings.Contains(frame.Str, want) {
		return fmt.Errorf("expected +%s reply to %v, got %v", want, argv, frame)
	}
	return nil
}
