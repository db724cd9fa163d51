// Package pubsub implements the channel-name to subscriber-outbox
// registry: exact-channel SUBSCRIBE/PUBLISH/UNSUBSCRIBE only, no pattern
// matching.
package pubsub

import (
	"log"
	"sync"

	"kvserver/internal/protocol"
)

// Outbox is the minimal interface a subscriber connection exposes for
// fan-out delivery.
type Outbox interface {
	Send(protocol.Frame) bool
}

// Registry is the channel -> subscriber-outbox-list registry.
type Registry struct {
	mu       sync.RWMutex
	channels map[string][]Outbox
}

func New() *Registry {
	return &Registry{channels: make(map[string][]Outbox)}
}

// Subscribe appends outbox to channel's subscriber list.
func (r *Registry) Subscribe(channel string, outbox Outbox) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[channel] = append(r.channels[channel], outbox)
}

// Unsubscribe removes outbox from channel's subscriber list.
func (r *Registry) Unsubscribe(channel string, outbox Outbox) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.channels[channel]
	for i, o := range subs {
		if o == outbox {
			r.channels[channel] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(r.channels[channel]) == 0 {
		delete(r.channels, channel)
	}
}

// Publish fans out a ["message", channel, payload] frame to every current
// subscriber, pruning any outbox whose Send fails (dead connection), and
// returns the number of subscribers the message was delivered to.
func (r *Registry) Publish(channel, payload string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.channels[channel]
	if len(subs) == 0 {
		return 0
	}

	frame := protocol.NewArray([]protocol.Frame{
		protocol.NewBulkStringFromText("message"),
		protocol.NewBulkStringFromText(channel),
		protocol.NewBulkStringFromText(payload),
	})

	delivered := 0
	alive := subs[:0]
	for _, o := range subs {
		if o.Send(frame) {
			delivered++
			alive = append(alive, o)
		} else {
			log.Printf("pubsub: pruning dead subscriber on channel %q", channel)
		}
	}
	if len(alive) == 0 {
		delete(r.channels, channel)
	} else {
		r.channels[channel] = alive
	}
	return delivered
}
