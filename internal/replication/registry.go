// Package replication implements the replica registry a primary fans write
// commands out to, the 40-character replication id generator, and the
// replica-side bootstrap handshake client. PSYNC always performs a full
// resync; there is no partial-resync backlog.
package replication

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"kvserver/internal/protocol"
)

// Outbox is the minimal interface a replica connection exposes for fan-out.
type Outbox interface {
	Send(protocol.Frame) bool
}

// GenerateReplID produces the 40-character alphanumeric replication
// identifier the server state requires at startup.
func GenerateReplID() string {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		// With no random source available, fall back to a
		// fixed-but-valid-shape id rather than panic
		// mid-registry-construction.
		return strings.Repeat("0", 40)
	}
	return hex.EncodeToString(buf)
}

// Registry is the ordered set of replica outboxes receiving write commands
// as frames, plus the monotone replication byte-offset counter.
type Registry struct {
	mu       sync.Mutex
	replicas []Outbox
	offset   atomic.Int64
}

func NewRegistry() *Registry {
	return &Registry{}
}

// AddReplica registers a newly PSYNC'd replica's outbox.
func (r *Registry) AddReplica(o Outbox) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replicas = append(r.replicas, o)
}

// Propagate re-encodes argv as its original command-frame and sends it to
// every currently registered replica, pruning any outbox whose Send fails.
func (r *Registry) Propagate(argv []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.replicas) == 0 {
		return
	}
	frame := protocol.ArgvFrame(argv)
	alive := r.replicas[:0]
	for _, o := range r.replicas {
		if o.Send(frame) {
			alive = append(alive, o)
		} else {
			log.Printf("replication: pruning dead replica outbox")
		}
	}
	r.replicas = alive
}

// ReplicaCount reports how many replicas are currently attached.
func (r *Registry) ReplicaCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.replicas)
}

// Offset returns the current replication byte-offset.
func (r *Registry) Offset() int64 { return r.offset.Load() }

// AddOffset advances the replication byte-offset by n bytes. A replica
// calls it with the primary's offset from FULLRESYNC and then with the
// bytes of every command received "from master"; Propagate does not
// advance the offset.
func (r *Registry) AddOffset(n int) { r.offset.Add(int64(n)) }
