// Package share implements the core share lifecycle: creating text and
// file shares behind short numeric codes, retrieving them, and streaming
// file content back out.
package share

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
	log "github.com/sirupsen/logrus"

	"filecodebox.io/fcb/constants"
	pe "filecodebox.io/fcb/errors"
	"filecodebox.io/fcb/models"
	"filecodebox.io/fcb/stores"
)

const codeGenMaxAttempts = 3

// Service owns the share lifecycle against the record and blob stores.
type Service struct {
	Records     stores.RecordStore
	Blobs       stores.BlobStore
	MaxTextSize int64
	MaxFileSize int64
}

// ShareText stores a text share and returns its retrieval code.
func (s *Service) ShareText(text string, expireValue int, expireStyle string) (string, *pe.Err) {
	if text == "" {
		return "", pe.NewBadInput("text must not be empty")
	}
	if int64(len(text)) > s.MaxTextSize {
		return "", pe.NewOversized(fmt.Sprintf("text exceeds %d bytes", s.MaxTextSize))
	}
	now := time.Now()
	rec := &models.ShareRecord{
		Text:      text,
		Size:      int64(len(text)),
		ExpiredAt: ExpireAt(now, expireValue, expireStyle),
		CreatedAt: now,
	}
	return s.publish(rec)
}

// ShareFile stores file content in the blob backend and a metadata record
// behind a fresh code. The reader is consumed fully.
func (s *Service) ShareFile(ctx context.Context, data io.Reader, size int64, fileName string, expireValue int, expireStyle string) (string, *pe.Err) {
	if size <= 0 {
		return "", pe.NewBadInput("file must not be empty")
	}
	if size > s.MaxFileSize {
		return "", pe.NewOversized(fmt.Sprintf("file exceeds %d bytes", s.MaxFileSize))
	}
	prefix, suffix := splitName(fileName)
	key := blobKey(fileName)
	if err := s.Blobs.Put(ctx, key, data); err != nil {
		return "", pe.NewServiceFailure("failed to store file content").WithCause(err)
	}
	now := time.Now()
	rec := &models.ShareRecord{
		Size:      size,
		ExpiredAt: ExpireAt(now, expireValue, expireStyle),
		CreatedAt: now,
		Prefix:    prefix,
		Suffix:    suffix,
		BlobKey:   key,
	}
	code, err := s.publish(rec)
	if err != nil {
		// Record never made it in; don't leave the blob orphaned for a
		// month until the sweeper can't even find it.
		if derr := s.Blobs.Delete(ctx, key); derr != nil {
			log.WithFields(log.Fields{
				constants.LogFieldFuncName: "Service.ShareFile",
				"blobKey":                  key,
				"error":                    derr.Trace(),
			}).Warn("failed to remove blob after record publish failure")
		}
		return "", err
	}
	return code, nil
}

// PublishRecord persists a prepared record under a fresh code. Used by the
// chunk assembler once all parts are merged.
func (s *Service) PublishRecord(rec *models.ShareRecord) (string, *pe.Err) {
	return s.publish(rec)
}

// Retrieve looks up a share by code and records the access. Expired shares
// are reported as missing; their cleanup is the sweeper's job.
func (s *Service) Retrieve(code string) (*models.ShareRecord, *pe.Err) {
	rec, err := s.getRecord(code)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	rec.UsedCount++
	rec.LastAccess = &now
	// Best effort; a lost access bump is not worth failing the read.
	if perr := s.putRecord(rec); perr != nil {
		log.WithFields(log.Fields{
			constants.LogFieldFuncName: "Service.Retrieve",
			"code":                     code,
			"error":                    perr.Trace(),
		}).Warn("failed to record share access")
	}
	return rec, nil
}

// Download opens the content stream of a file share. Text shares are not
// downloadable; their content already came back from Retrieve.
func (s *Service) Download(ctx context.Context, code string) (*models.ShareRecord, io.ReadCloser, *pe.Err) {
	rec, err := s.getRecord(code)
	if err != nil {
		return nil, nil, err
	}
	if rec.Kind() != models.KindFile {
		return nil, nil, pe.NewBadInput("share is not a file")
	}
	rc, berr := s.Blobs.Get(ctx, rec.BlobKey)
	if berr != nil {
		if berr.Code == pe.ErrCodeNotFound {
			return nil, nil, pe.NewNotFound("share content no longer available").WithCause(berr)
		}
		return nil, nil, pe.NewServiceFailure("failed to open share content").WithCause(berr)
	}
	return rec, rc, nil
}

func (s *Service) getRecord(code string) (*models.ShareRecord, *pe.Err) {
	if !ValidCode(code) {
		return nil, pe.NewBadInput("malformed share code")
	}
	raw, err := s.Records.Get(constants.KeyPrefixRecord + code)
	if err != nil {
		if err.Code == pe.ErrCodeNotFound {
			return nil, pe.NewNotFound("share not found")
		}
		return nil, pe.NewServiceFailure("failed to load share").WithCause(err)
	}
	rec := &models.ShareRecord{}
	if uerr := json.Unmarshal(raw, rec); uerr != nil {
		return nil, pe.NewServiceFailure("corrupt share record").WithCause(uerr)
	}
	if rec.Expired() {
		return nil, pe.NewNotFound("share not found")
	}
	return rec, nil
}

func (s *Service) putRecord(rec *models.ShareRecord) *pe.Err {
	raw, merr := json.Marshal(rec)
	if merr != nil {
		return pe.NewServiceFailure("failed to encode share record").WithCause(merr)
	}
	return s.Records.Put(constants.KeyPrefixRecord+rec.Code, raw, 0)
}

// publish assigns a fresh code and persists the record. Codes are only six
// digits so collide eventually; retry a few times rather than silently
// clobbering an existing share.
func (s *Service) publish(rec *models.ShareRecord) (string, *pe.Err) {
	for i := 0; i < codeGenMaxAttempts; i++ {
		code := GenerateCode()
		if _, err := s.Records.Get(constants.KeyPrefixRecord + code); err == nil {
			continue
		} else if err.Code != pe.ErrCodeNotFound {
			return "", pe.NewServiceFailure("failed to check code availability").WithCause(err)
		}
		rec.Code = code
		if err := s.putRecord(rec); err != nil {
			return "", pe.NewServiceFailure("failed to store share record").WithCause(err)
		}
		return code, nil
	}
	return "", pe.NewServiceFailure(fmt.Sprintf("no free share code after %d attempts", codeGenMaxAttempts))
}

// blobKey derives a unique storage key while keeping the original base name
// visible for operators poking around the bucket.
func blobKey(fileName string) string {
	return ksuid.New().String() + "_" + filepath.Base(fileName)
}

// splitName splits a filename into base and extension. A leading dot is
// part of the base, not an extension.
func splitName(fileName string) (prefix, suffix string) {
	base := filepath.Base(fileName)
	if i := strings.LastIndex(base, "."); i > 0 {
		return base[:i], base[i:]
	}
	return base, ""
}
