package store

import "time"

func (s *Store) getOrCreateZSetLocked(sh *shard, key string) (*SortedSet, error) {
	v := sh.getLocked(key, time.Now())
	if v == nil {
		return NewSortedSet(), nil
	}
	if v.Kind != KindSortedSet {
		return nil, ErrWrongType{}
	}
	return v.Data.(*SortedSet), nil
}

func (s *Store) saveZSet(sh *shard, key string, z *SortedSet) {
	if z.Len() == 0 {
		delete(sh.data, key)
		return
	}
	sh.data[key] = &Value{Kind: KindSortedSet, Data: z}
}

// ZAdd upserts member with score, returning 1 if it was newly added or 0 if
// an existing member's score was replaced.
func (s *Store) ZAdd(key, member string, score float64) (int, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	z, err := s.getOrCreateZSetLocked(sh, key)
	if err != nil {
		return 0, err
	}
	isNew := z.Add(member, score)
	s.saveZSet(sh, key, z)
	if isNew {
		return 1, nil
	}
	return 0, nil
}

// ZRank returns the 0-based ascending rank of member, or ok=false if absent.
func (s *Store) ZRank(key, member string) (int, bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v := sh.getLocked(key, time.Now())
	if v == nil {
		return 0, false, nil
	}
	if v.Kind != KindSortedSet {
		return 0, false, ErrWrongType{}
	}
	z := v.Data.(*SortedSet)
	rank := z.Rank(member)
	if rank < 0 {
		return 0, false, nil
	}
	return rank, true, nil
}

// ZScore returns member's score, or ok=false if absent.
func (s *Store) ZScore(key, member string) (float64, bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v := sh.getLocked(key, time.Now())
	if v == nil {
		return 0, false, nil
	}
	if v.Kind != KindSortedSet {
		return 0, false, ErrWrongType{}
	}
	score, ok := v.Data.(*SortedSet).Score(member)
	return score, ok, nil
}

// ZRange returns members by rank range, inclusive, negative-index aware.
func (s *Store) ZRange(key string, start, stop int) ([]string, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v := sh.getLocked(key, time.Now())
	if v == nil {
		return []string{}, nil
	}
	if v.Kind != KindSortedSet {
		return nil, ErrWrongType{}
	}
	return v.Data.(*SortedSet).Range(start, stop), nil
}
