package stores

import (
	"fmt"
	"time"

	"github.com/go-redis/redis"
	log "github.com/sirupsen/logrus"
	pe "filecodebox.io/fcb/errors"
)

// RecordStore vends the key-value interface backing share records, staged
// upload chunks and rate-limit counters. Put is last-writer-wins; there is no
// optimistic concurrency control, and callers must not assume retried writes
// land in order. A ttl of zero means the entry never expires on the store's
// side.
type RecordStore interface {
	// Get returns the value under key, or a NotFound Err when absent.
	Get(key string) ([]byte, *pe.Err)
	Put(key string, val []byte, ttl time.Duration) *pe.Err
	// Delete deletes the entry under key. Delete must be idempotent.
	Delete(key string) *pe.Err
	// ListKeys returns all keys carrying the given prefix. Only the sweeper
	// scans; everything else addresses entries directly.
	ListKeys(prefix string) ([]string, *pe.Err)
	Close() *pe.Err
}

// RedisRecordStore is a RecordStore implementation driven by Redis.
type RedisRecordStore struct {
	DB *redis.Client
}

func (s *RedisRecordStore) Get(key string) ([]byte, *pe.Err) {
	b, err := s.DB.Get(key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, pe.NewNotFound(fmt.Sprintf("key %s not found", key))
		}
		msg := "error getting value from Redis"
		log.WithError(err).WithField("key", key).Error(msg)
		return nil, pe.NewServiceFailure(msg).WithCause(err)
	}
	return b, nil
}

func (s *RedisRecordStore) Put(key string, val []byte, ttl time.Duration) *pe.Err {
	if _, err := s.DB.Set(key, val, ttl).Result(); err != nil {
		msg := "error saving value to Redis"
		log.WithError(err).WithField("key", key).Error(msg)
		return pe.NewServiceFailure(msg).WithCause(err)
	}
	return nil
}

func (s *RedisRecordStore) Delete(key string) *pe.Err {
	// redis ignores the error upon DEL if the key is non-existent
	if _, err := s.DB.Del(key).Result(); err != nil && err != redis.Nil {
		msg := "error deleting value from Redis"
		log.WithError(err).WithField("key", key).Error(msg)
		return pe.NewServiceFailure(msg).WithCause(err)
	}
	return nil
}

func (s *RedisRecordStore) ListKeys(prefix string) ([]string, *pe.Err) {
	var keys []string
	var cursor uint64
	for {
		ks, next, err := s.DB.Scan(cursor, prefix+"*", 100).Result()
		if err != nil {
			msg := "error scanning keys in Redis"
			log.WithError(err).WithField("prefix", prefix).Error(msg)
			return nil, pe.NewServiceFailure(msg).WithCause(err)
		}
		keys = append(keys, ks...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func (s *RedisRecordStore) Close() *pe.Err {
	if err := s.DB.Close(); err != nil {
		return pe.NewServiceFailure("failed close Redis client").WithCause(err)
	}
	return nil
}
