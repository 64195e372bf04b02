// Package sweep reclaims expired shares. Records are persisted without a
// store-level TTL so that their blobs can be reconciled here after expiry
// instead of leaking forever.
package sweep

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"filecodebox.io/fcb/constants"
	pe "filecodebox.io/fcb/errors"
	"filecodebox.io/fcb/models"
	"filecodebox.io/fcb/stores"
)

// Sweeper scans share records and deletes the expired ones along with
// their blobs.
type Sweeper struct {
	Records   stores.RecordStore
	Blobs     stores.BlobStore
	BatchSize int
}

// Sweep runs one full pass. The record delete is authoritative: once the
// record is gone the share is unreachable, so a failed blob delete only
// counts as an error and the next pass or a bucket lifecycle rule mops up.
func (s *Sweeper) Sweep(ctx context.Context) models.SweepResult {
	logger := log.WithField(constants.LogFieldFuncName, "Sweeper.Sweep")
	res := models.SweepResult{Timestamp: time.Now()}

	keys, err := s.Records.ListKeys(constants.KeyPrefixRecord)
	if err != nil {
		logger.WithField("error", err.Trace()).Error("failed to list share records")
		res.Errors++
		return res
	}
	res.Total = len(keys)

	batch := s.BatchSize
	if batch <= 0 {
		batch = 10
	}
	var cleaned, errors int64
	for start := 0; start < len(keys); start += batch {
		end := start + batch
		if end > len(keys) {
			end = len(keys)
		}
		var wg sync.WaitGroup
		for _, key := range keys[start:end] {
			wg.Add(1)
			go func(key string) {
				defer wg.Done()
				wasCleaned, hadError := s.sweepOne(ctx, key)
				if wasCleaned {
					atomic.AddInt64(&cleaned, 1)
				}
				if hadError {
					atomic.AddInt64(&errors, 1)
				}
			}(key)
		}
		wg.Wait()
	}
	res.Cleaned = int(cleaned)
	res.Errors = int(errors)
	logger.WithFields(log.Fields{
		"total":   res.Total,
		"cleaned": res.Cleaned,
		"errors":  res.Errors,
	}).Info("sweep pass done")
	return res
}

// sweepOne reclaims a single record if it has expired. Deleting the record
// is the authoritative action: once it succeeds the share counts as
// cleaned even when the trailing blob delete fails, which only adds to the
// error tally.
func (s *Sweeper) sweepOne(ctx context.Context, key string) (wasCleaned, hadError bool) {
	logger := log.WithFields(log.Fields{
		constants.LogFieldFuncName: "Sweeper.sweepOne",
		"key":                      key,
	})
	raw, err := s.Records.Get(key)
	if err != nil {
		if err.Code == pe.ErrCodeNotFound {
			// raced with another sweeper
			return false, false
		}
		logger.WithField("error", err.Trace()).Error("failed to load share record")
		return false, true
	}
	rec := &models.ShareRecord{}
	if uerr := json.Unmarshal(raw, rec); uerr != nil {
		logger.WithError(uerr).Error("corrupt share record")
		return false, true
	}
	if !rec.Expired() {
		return false, false
	}
	if err := s.Records.Delete(key); err != nil {
		logger.WithField("error", err.Trace()).Error("failed to delete share record")
		return false, true
	}
	if rec.BlobKey != "" {
		if err := s.Blobs.Delete(ctx, rec.BlobKey); err != nil {
			logger.WithFields(log.Fields{
				"blobKey": rec.BlobKey,
				"error":   err.Trace(),
			}).Warn("failed to delete share content")
			return true, true
		}
	}
	return true, false
}

// RecordStats folds one sweep result into the rolling per-day statistic.
func (s *Sweeper) RecordStats(res models.SweepResult) {
	logger := log.WithField(constants.LogFieldFuncName, "Sweeper.RecordStats")
	key := constants.KeyPrefixCleanupStats + res.Timestamp.UTC().Format("2006-01-02")

	stats := &models.CleanupStats{}
	raw, err := s.Records.Get(key)
	switch {
	case err == nil:
		if uerr := json.Unmarshal(raw, stats); uerr != nil {
			logger.WithError(uerr).Warn("corrupt cleanup stats; resetting")
			stats = &models.CleanupStats{}
		}
	case err.Code != pe.ErrCodeNotFound:
		logger.WithField("error", err.Trace()).Warn("failed to load cleanup stats")
		return
	}

	stats.Runs++
	stats.TotalCleaned += res.Cleaned
	stats.LastRun = res.Timestamp
	stats.LastResult = res

	out, merr := json.Marshal(stats)
	if merr != nil {
		logger.WithError(merr).Warn("failed to encode cleanup stats")
		return
	}
	if err := s.Records.Put(key, out, constants.CleanupStatsTTL); err != nil {
		logger.WithField("error", err.Trace()).Warn("failed to store cleanup stats")
	}
}
