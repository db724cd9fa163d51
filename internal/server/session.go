package server

import (
	"bufio"
	"net"
	"sync"

	"github.com/google/uuid"

	"kvserver/internal/protocol"
)

// Mode is a connection's subscription-mode gate (pub/sub command rules).
type Mode int

const (
	ModeNormal Mode = iota
	ModeSubscribed
)

// Session is the per-connection state machine (C8): an optional
// transaction buffer, a subscribed-channel set, a mode, an outbox, and the
// "driven by master" flag. The shared store/registries are not owned here;
// Session only holds what's exclusive to one connection.
type Session struct {
	ID int64
	// PeerID is an opaque per-connection identifier used only for log
	// correlation.
	PeerID string
	conn   net.Conn

	outbox chan protocol.Frame
	done   chan struct{}
	once   sync.Once

	mu         sync.Mutex
	txBuffer   [][]string // nil = no MULTI active
	channels   map[string]bool
	mode       Mode
	fromMaster bool
}

func newSession(id int64, conn net.Conn) *Session {
	return &Session{
		ID:       id,
		PeerID:   uuid.New().String(),
		conn:     conn,
		outbox:   make(chan protocol.Frame, 256),
		done:     make(chan struct{}),
		channels: make(map[string]bool),
	}
}

// Send enqueues a frame for the writer goroutine. It never blocks: a full
// outbox or a closed session drops the send and reports false, which
// callers (pub/sub, replication fan-out) treat as "this handle is dead".
func (s *Session) Send(f protocol.Frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.outbox <- f:
		return true
	default:
		return false
	}
}

func (s *Session) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *Session) writeLoop() {
	w := bufio.NewWriter(s.conn)
	for {
		select {
		case f := <-s.outbox:
			if err := protocol.Encode(w, f); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// InTransaction reports whether MULTI has been issued without a matching
// EXEC/DISCARD yet.
func (s *Session) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txBuffer != nil
}

func (s *Session) beginTransaction() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txBuffer = [][]string{}
}

func (s *Session) queue(argv []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txBuffer = append(s.txBuffer, argv)
}

// takeTransaction detaches and clears the transaction buffer, per the
// design note that EXEC re-enters dispatch with the buffer moved out so a
// nested MULTI inside EXEC has no effect.
func (s *Session) takeTransaction() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := s.txBuffer
	s.txBuffer = nil
	return buf
}

func (s *Session) discardTransaction() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txBuffer = nil
}

func (s *Session) setMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) subscribe(channel string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[channel] = true
	s.mode = ModeSubscribed
	return len(s.channels)
}

func (s *Session) unsubscribe(channel string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, channel)
	if len(s.channels) == 0 {
		s.mode = ModeNormal
	}
	return len(s.channels)
}

func (s *Session) subscribedChannels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.channels))
	for c := range s.channels {
		out = append(out, c)
	}
	return out
}

func (s *Session) setFromMaster(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fromMaster = v
}

func (s *Session) FromMaster() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fromMaster
}
