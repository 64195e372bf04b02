// Package ratelimit implements a fixed-window request counter on top of
// the record store. Counting is read-then-write, so concurrent requests
// near a window boundary may slip through. The limiter fails open: when
// the store errors out we let the request pass instead of blocking
// legitimate traffic on a flaky backend.
package ratelimit

import (
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"filecodebox.io/fcb/constants"
	pe "filecodebox.io/fcb/errors"
	"filecodebox.io/fcb/stores"
)

// Limiter tracks per-identity request counts in fixed windows.
type Limiter struct {
	Store stores.RecordStore
	// Grace extends counter TTL past the window so a counter written at
	// the very end of its window still covers the window's tail.
	Grace time.Duration
	// Now is overridable for tests. Defaults to time.Now.
	Now func() time.Time
}

func NewLimiter(store stores.RecordStore) *Limiter {
	return &Limiter{
		Store: store,
		Grace: 10 * time.Second,
		Now:   time.Now,
	}
}

// Allow reports whether the identity may make another request against
// the named limit. limit is the max request count per window; limit <= 0
// disables the check.
func (l *Limiter) Allow(name, identity string, limit int, window time.Duration) bool {
	if limit <= 0 {
		return true
	}
	logger := log.WithFields(log.Fields{
		constants.LogFieldFuncName: "Limiter.Allow",
		"limiter":                  name,
		"identity":                 identity,
	})
	now := l.Now()
	bucket := now.Unix() / int64(window.Seconds())
	key := fmt.Sprintf("%s%s:%s:%d", constants.KeyPrefixRateLimit, name, identity, bucket)

	count := 0
	raw, err := l.Store.Get(key)
	switch {
	case err == nil:
		n, perr := strconv.Atoi(string(raw))
		if perr != nil {
			logger.WithError(perr).Warn("malformed rate limit counter; resetting")
		} else {
			count = n
		}
	case err.Code == pe.ErrCodeNotFound:
		// first request in this window
	default:
		logger.WithField("error", err.Trace()).Warn("rate limit counter read failed; allowing request")
		return true
	}

	if count >= limit {
		return false
	}
	ttl := window + l.Grace
	if err := l.Store.Put(key, []byte(strconv.Itoa(count+1)), ttl); err != nil {
		logger.WithField("error", err.Trace()).Warn("rate limit counter write failed; allowing request")
	}
	return true
}
