package store

import (
	"hash/fnv"
	"sort"
	"strconv"
	"sync"
	"time"
)

// shardCount is chosen to give reasonable parallelism for typical
// connection counts without per-shard overhead dominating for small
// keyspaces.
const shardCount = 32

type shard struct {
	mu   sync.RWMutex
	data map[string]*Value
}

// Store is the concurrent typed keyspace: C3. It exposes key-scoped atomic
// access and leaves blocking/suspension entirely to callers, who must
// release any exclusive handle (implicit in these methods' short critical
// sections) before suspending.
type Store struct {
	shards [shardCount]*shard

	listWaiters   *ListWaiterRegistry
	streamWaiters *StreamWaiterRegistry
}

func New() *Store {
	s := &Store{
		listWaiters:   newListWaiterRegistry(),
		streamWaiters: newStreamWaiterRegistry(),
	}
	for i := range s.shards {
		s.shards[i] = &shard{data: make(map[string]*Value)}
	}
	return s
}

func (s *Store) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

// ErrWrongType is returned when a command addresses a key holding a value
// of a different Kind.
type ErrWrongType struct{}

func (ErrWrongType) Error() string {
	return "WRONGTYPE Operation against a key holding the wrong kind of value"
}

// getLocked returns the live (non-expired) value for key under the shard's
// write lock, deleting it first if it has expired. Callers must hold sh.mu.
func (sh *shard) getLocked(key string, now time.Time) *Value {
	v, ok := sh.data[key]
	if !ok {
		return nil
	}
	if v.expired(now) {
		delete(sh.data, key)
		return nil
	}
	return v
}

// Get returns the current value for key, or nil if absent/expired.
func (s *Store) Get(key string) *Value {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.getLocked(key, time.Now())
}

// Exists reports whether key currently holds a live value.
func (s *Store) Exists(key string) bool { return s.Get(key) != nil }

// Del removes key if present, reporting whether it existed.
func (s *Store) Del(key string) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.getLocked(key, time.Now()) == nil {
		return false
	}
	delete(sh.data, key)
	return true
}

// Keys returns every currently live key (lazily dropping expired ones as it
// scans). Matches KEYS * only, per the command surface this store serves.
func (s *Store) Keys() []string {
	var out []string
	now := time.Now()
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, v := range sh.data {
			if v.expired(now) {
				delete(sh.data, k)
				continue
			}
			out = append(out, k)
		}
		sh.mu.Unlock()
	}
	sort.Strings(out)
	return out
}

// SetExpiry sets or clears (nil) the expiry on an existing key. Reports
// false if the key doesn't currently exist.
func (s *Store) SetExpiry(key string, at *time.Time) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v := sh.getLocked(key, time.Now())
	if v == nil {
		return false
	}
	v.ExpiresAt = at
	return true
}

// TTL returns remaining time to live, ok=false if the key is absent, and a
// nil duration if the key has no expiry set.
func (s *Store) TTL(key string) (ttl *time.Duration, ok bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v := sh.getLocked(key, time.Now())
	if v == nil {
		return nil, false
	}
	if v.ExpiresAt == nil {
		return nil, true
	}
	d := time.Until(*v.ExpiresAt)
	return &d, true
}

// ListWaiters returns the list waiter registry, shared across the store so
// push commands and BLPOP agree on identity.
func (s *Store) ListWaiters() *ListWaiterRegistry { return s.listWaiters }

// StreamWaiters returns the stream waiter registry.
func (s *Store) StreamWaiters() *StreamWaiterRegistry { return s.streamWaiters }

// Snapshot renders every live key as a rdbsnap.Entry-shaped tuple for
// persistence. Only String/Integer values are representable in the
// snapshot format (per the format's scope); other kinds are skipped.
func (s *Store) Snapshot() []SnapshotEntry {
	var out []SnapshotEntry
	now := time.Now()
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k, v := range sh.data {
			if v.expired(now) {
				continue
			}
			switch v.Kind {
			case KindString:
				out = append(out, SnapshotEntry{Key: k, Value: v.Data.(string), ExpiresAt: v.ExpiresAt})
			case KindInteger:
				out = append(out, SnapshotEntry{Key: k, Value: strconv.FormatInt(v.Data.(int64), 10), ExpiresAt: v.ExpiresAt})
			}
		}
		sh.mu.RUnlock()
	}
	return out
}

// SnapshotEntry mirrors rdbsnap.Entry without importing it here, keeping
// store free of a persistence-format dependency.
type SnapshotEntry struct {
	Key       string
	Value     string
	ExpiresAt *time.Time
}

