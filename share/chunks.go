package share

import (
	"bytes"
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"filecodebox.io/fcb/constants"
	pe "filecodebox.io/fcb/errors"
	"filecodebox.io/fcb/models"
	"filecodebox.io/fcb/stores"
)

// ChunkAssembler stages chunked uploads in the record store until the
// client asks to merge them into a real share. Staged chunks carry a TTL
// so abandoned uploads clean themselves up.
type ChunkAssembler struct {
	Records stores.RecordStore
	Service *Service
}

// SaveChunk stages one chunk of an in-flight upload. Re-uploading an index
// overwrites the previous bytes, so clients can simply retry failed parts.
func (a *ChunkAssembler) SaveChunk(uploadID string, index, total int, data []byte) *pe.Err {
	if uploadID == "" {
		return pe.NewBadInput("upload id must not be empty")
	}
	if total <= 0 {
		return pe.NewBadInput("chunk total must be positive")
	}
	if index < 0 || index >= total {
		return pe.NewBadInput(fmt.Sprintf("chunk index %d out of range [0, %d)", index, total))
	}
	if len(data) == 0 {
		return pe.NewBadInput("chunk must not be empty")
	}
	key := chunkKey(uploadID, index)
	if err := a.Records.Put(key, data, constants.ChunkTTL); err != nil {
		return pe.NewServiceFailure("failed to stage chunk").WithCause(err)
	}
	return nil
}

// Merge assembles the staged chunks in index order, stores the result as a
// file share and returns its code. Nothing is published if any chunk is
// missing or the assembled size disagrees with what the client declared.
func (a *ChunkAssembler) Merge(ctx context.Context, uploadID, fileName string, fileSize int64, totalChunks int, expireValue int, expireStyle string) (string, *pe.Err) {
	if uploadID == "" {
		return "", pe.NewBadInput("upload id must not be empty")
	}
	if totalChunks <= 0 {
		return "", pe.NewBadInput("chunk total must be positive")
	}
	if fileSize > a.Service.MaxFileSize {
		return "", pe.NewOversized(fmt.Sprintf("file exceeds %d bytes", a.Service.MaxFileSize))
	}

	var buf bytes.Buffer
	for i := 0; i < totalChunks; i++ {
		raw, err := a.Records.Get(chunkKey(uploadID, i))
		if err != nil {
			if err.Code == pe.ErrCodeNotFound {
				return "", pe.NewBadInput(fmt.Sprintf("chunk %d missing, re-upload it and merge again", i))
			}
			return "", pe.NewServiceFailure("failed to load staged chunk").WithCause(err)
		}
		buf.Write(raw)
	}
	if int64(buf.Len()) != fileSize {
		return "", pe.NewBadInput(fmt.Sprintf("assembled %d bytes but client declared %d", buf.Len(), fileSize))
	}

	prefix, suffix := splitName(fileName)
	key := blobKey(fileName)
	if err := a.Service.Blobs.Put(ctx, key, &buf); err != nil {
		return "", pe.NewServiceFailure("failed to store merged file").WithCause(err)
	}
	now := time.Now()
	code, err := a.Service.PublishRecord(&models.ShareRecord{
		Size:      fileSize,
		ExpiredAt: ExpireAt(now, expireValue, expireStyle),
		CreatedAt: now,
		Prefix:    prefix,
		Suffix:    suffix,
		BlobKey:   key,
	})
	if err != nil {
		if derr := a.Service.Blobs.Delete(ctx, key); derr != nil {
			log.WithFields(log.Fields{
				constants.LogFieldFuncName: "ChunkAssembler.Merge",
				"blobKey":                  key,
				"error":                    derr.Trace(),
			}).Warn("failed to remove blob after record publish failure")
		}
		return "", err
	}

	// Staged chunks would expire on their own; reclaim them now anyway.
	for i := 0; i < totalChunks; i++ {
		if derr := a.Records.Delete(chunkKey(uploadID, i)); derr != nil {
			log.WithFields(log.Fields{
				constants.LogFieldFuncName: "ChunkAssembler.Merge",
				"uploadID":                 uploadID,
				"chunk":                    i,
				"error":                    derr.Trace(),
			}).Warn("failed to delete staged chunk")
		}
	}
	return code, nil
}

func chunkKey(uploadID string, index int) string {
	return fmt.Sprintf("%s%s:%d", constants.KeyPrefixChunk, uploadID, index)
}
