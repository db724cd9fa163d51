package store

import "time"

func (s *Store) getOrCreateListLocked(sh *shard, key string) (*List, error) {
	v := sh.getLocked(key, time.Now())
	if v == nil {
		return NewList(), nil
	}
	if v.Kind != KindList {
		return nil, ErrWrongType{}
	}
	return v.Data.(*List), nil
}

func (s *Store) saveList(sh *shard, key string, l *List) {
	if l.Len() == 0 {
		delete(sh.data, key)
		return
	}
	sh.data[key] = &Value{Kind: KindList, Data: l}
}

// RPush appends values to the tail of key's list, first draining any
// registered list waiters front-to-back from the batch so the waiting
// receivers get items directly without the item ever touching the list.
func (s *Store) RPush(key string, values []string) (int, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	l, err := s.getOrCreateListLocked(sh, key)
	if err != nil {
		return 0, err
	}

	var undelivered []string
	for _, v := range values {
		if s.listWaiters.DeliverFront(key, v) {
			continue
		}
		undelivered = append(undelivered, v)
	}
	for _, v := range undelivered {
		l.PushBack(v)
	}

	s.saveList(sh, key, l)
	return l.Len(), nil
}

// LPush prepends values to the head of key's list (final stored order is
// the reverse of argument order), draining any registered list waiters
// back-to-front from the batch so the most-recently-pushed item is
// delivered first.
func (s *Store) LPush(key string, values []string) (int, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	l, err := s.getOrCreateListLocked(sh, key)
	if err != nil {
		return 0, err
	}

	var undelivered []string
	for i := len(values) - 1; i >= 0; i-- {
		v := values[i]
		if s.listWaiters.DeliverFront(key, v) {
			continue
		}
		undelivered = append(undelivered, v)
	}
	// undelivered is in back-to-front delivery order; push front in
	// reverse of that to land the items at the head in the right order.
	for i := len(undelivered) - 1; i >= 0; i-- {
		l.PushFront(undelivered[i])
	}

	s.saveList(sh, key, l)
	return l.Len(), nil
}

// LPop pops up to count elements from the head. count<0 means "no count
// argument given" (single-element form).
func (s *Store) LPop(key string, count int) ([]string, error) {
	return s.popN(key, count, true)
}

// RPop pops up to count elements from the tail.
func (s *Store) RPop(key string, count int) ([]string, error) {
	return s.popN(key, count, false)
}

func (s *Store) popN(key string, count int, fromHead bool) ([]string, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	v := sh.getLocked(key, time.Now())
	if v == nil {
		return nil, nil
	}
	if v.Kind != KindList {
		return nil, ErrWrongType{}
	}
	l := v.Data.(*List)
	if l.Len() == 0 {
		return nil, nil
	}

	n := count
	if n < 0 {
		n = 1
	}
	if n > l.Len() {
		n = l.Len()
	}

	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		var val string
		var ok bool
		if fromHead {
			val, ok = l.PopFront()
		} else {
			val, ok = l.PopBack()
		}
		if !ok {
			break
		}
		out = append(out, val)
	}

	s.saveList(sh, key, l)
	return out, nil
}

// LLen returns the length of key's list, or 0 if absent.
func (s *Store) LLen(key string) (int, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v := sh.getLocked(key, time.Now())
	if v == nil {
		return 0, nil
	}
	if v.Kind != KindList {
		return 0, ErrWrongType{}
	}
	return v.Data.(*List).Len(), nil
}

// LRange returns the inclusive [start, stop] slice of key's list.
func (s *Store) LRange(key string, start, stop int) ([]string, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v := sh.getLocked(key, time.Now())
	if v == nil {
		return []string{}, nil
	}
	if v.Kind != KindList {
		return nil, ErrWrongType{}
	}
	return v.Data.(*List).Range(start, stop), nil
}

// TryPopFront attempts a non-blocking pop for BLPOP's immediate-availability
// check, returning ok=false when the list is empty or absent.
func (s *Store) TryPopFront(key string) (string, bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v := sh.getLocked(key, time.Now())
	if v == nil {
		return "", false, nil
	}
	if v.Kind != KindList {
		return "", false, ErrWrongType{}
	}
	l := v.Data.(*List)
	val, ok := l.PopFront()
	if ok {
		s.saveList(sh, key, l)
	}
	return val, ok, nil
}
