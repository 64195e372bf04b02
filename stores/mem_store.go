package stores

import (
	"fmt"
	"strings"
	"time"

	"github.com/bluele/gcache"
	pe "filecodebox.io/fcb/errors"
)

// MemRecordStore is a RecordStore held in process memory, backed by gcache for
// its per-entry TTL support. Meant for tests and single-node dev runs; it keeps
// the documented last-writer-wins semantics of the Redis implementation.
type MemRecordStore struct {
	c gcache.Cache
}

func NewMemRecordStore(size int) *MemRecordStore {
	return &MemRecordStore{c: gcache.New(size).LRU().Build()}
}

func (s *MemRecordStore) Get(key string) ([]byte, *pe.Err) {
	v, err := s.c.Get(key)
	if err != nil {
		if err == gcache.KeyNotFoundError {
			return nil, pe.NewNotFound(fmt.Sprintf("key %s not found", key))
		}
		return nil, pe.NewServiceFailure("error getting value from memory store").WithCause(err)
	}
	b := v.([]byte)
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp, nil
}

func (s *MemRecordStore) Put(key string, val []byte, ttl time.Duration) *pe.Err {
	cp := make([]byte, len(val))
	copy(cp, val)
	var err error
	if ttl > 0 {
		err = s.c.SetWithExpire(key, cp, ttl)
	} else {
		err = s.c.Set(key, cp)
	}
	if err != nil {
		return pe.NewServiceFailure("error saving value to memory store").WithCause(err)
	}
	return nil
}

func (s *MemRecordStore) Delete(key string) *pe.Err {
	s.c.Remove(key)
	return nil
}

func (s *MemRecordStore) ListKeys(prefix string) ([]string, *pe.Err) {
	var keys []string
	for _, k := range s.c.Keys(true) {
		ks, ok := k.(string)
		if ok && strings.HasPrefix(ks, prefix) {
			keys = append(keys, ks)
		}
	}
	return keys, nil
}

func (s *MemRecordStore) Close() *pe.Err {
	s.c.Purge()
	return nil
}
