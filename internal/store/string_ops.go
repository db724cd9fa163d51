package store

import (
	"strconv"
	"time"
)

// SetString unconditionally writes key, applying write-side numeric
// coercion: a value whose textual form parses as a signed 64-bit integer is
// stored as Integer rather than String, per the data model.
func (s *Store) SetString(key, value string, expiresAt *time.Time) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		sh.data[key] = &Value{Kind: KindInteger, Data: n, ExpiresAt: expiresAt}
		return
	}
	sh.data[key] = &Value{Kind: KindString, Data: value, ExpiresAt: expiresAt}
}

// GetString returns the decimal-or-literal text form for GET: Integer
// coerces to its decimal text, String returns as-is, absent or a
// non-scalar kind (list/stream/zset) returns ok=false ("wrong-type-for-get"
// collapses to the same null reply as absent, per the resolved Open
// Question on GET's type coercion).
func (s *Store) GetString(key string) (string, bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v := sh.getLocked(key, time.Now())
	if v == nil {
		return "", false
	}
	switch v.Kind {
	case KindInteger:
		return strconv.FormatInt(v.Data.(int64), 10), true
	case KindString:
		return v.Data.(string), true
	default:
		return "", false
	}
}

// Incr implements INCR: absent keys are created as Integer(1); an existing
// Integer is incremented; a non-numeric String is ErrNotInteger and any
// other kind is ErrWrongType.
func (s *Store) Incr(key string) (int64, error) {
	return s.incrBy(key, 1)
}

func (s *Store) Decr(key string) (int64, error) {
	return s.incrBy(key, -1)
}

func (s *Store) IncrBy(key string, delta int64) (int64, error) {
	return s.incrBy(key, delta)
}

// ErrNotInteger is INCR's overflow/non-numeric error.
type ErrNotInteger struct{}

func (ErrNotInteger) Error() string { return "ERR value is not an integer or out of range" }

func (s *Store) incrBy(key string, delta int64) (int64, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	v := sh.getLocked(key, time.Now())
	if v == nil {
		sh.data[key] = &Value{Kind: KindInteger, Data: delta}
		return delta, nil
	}
	if v.Kind != KindInteger {
		if v.Kind == KindString {
			return 0, ErrNotInteger{}
		}
		return 0, ErrWrongType{}
	}
	cur := v.Data.(int64)
	next := cur + delta
	if (delta > 0 && next < cur) || (delta < 0 && next > cur) {
		return 0, ErrNotInteger{}
	}
	v.Data = next
	return next, nil
}
