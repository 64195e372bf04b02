package share

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"filecodebox.io/fcb/constants"
	pe "filecodebox.io/fcb/errors"
)

func newTestAssembler(t *testing.T) *ChunkAssembler {
	t.Helper()
	svc := newTestService(t)
	return &ChunkAssembler{Records: svc.Records, Service: svc}
}

func TestChunkAssembler_RoundTrip(t *testing.T) {
	a := newTestAssembler(t)
	parts := [][]byte{[]byte("first-"), []byte("second-"), []byte("third")}
	var size int64
	for i, p := range parts {
		assert.Nil(t, a.SaveChunk("upload-1", i, len(parts), p))
		size += int64(len(p))
	}

	code, err := a.Merge(context.Background(), "upload-1", "big.dat", size, len(parts), 1, ExpireStyleDay)
	assert.Nil(t, err)
	assert.True(t, ValidCode(code))

	rec, rc, err := a.Service.Download(context.Background(), code)
	assert.Nil(t, err)
	defer rc.Close()
	got, rerr := io.ReadAll(rc)
	assert.NoError(t, rerr)
	assert.Equal(t, "first-second-third", string(got))
	assert.Equal(t, "big.dat", rec.FileName())

	// Staged chunks are reclaimed after a successful merge.
	keys, kerr := a.Records.ListKeys(constants.KeyPrefixChunk)
	assert.Nil(t, kerr)
	assert.Empty(t, keys)
}

func TestChunkAssembler_SaveChunk_Validation(t *testing.T) {
	a := newTestAssembler(t)
	tcs := []struct {
		name     string
		uploadID string
		index    int
		total    int
		data     []byte
	}{
		{"EmptyUploadID", "", 0, 2, []byte("x")},
		{"ZeroTotal", "u", 0, 0, []byte("x")},
		{"NegativeIndex", "u", -1, 2, []byte("x")},
		{"IndexBeyondTotal", "u", 2, 2, []byte("x")},
		{"EmptyChunk", "u", 0, 2, nil},
	}
	for _, c := range tcs {
		t.Run(c.name, func(t *testing.T) {
			err := a.SaveChunk(c.uploadID, c.index, c.total, c.data)
			assert.NotNil(t, err)
			assert.Equal(t, pe.ErrCodeBadInput, err.Code)
		})
	}
}

func TestChunkAssembler_SaveChunk_RetryOverwrites(t *testing.T) {
	a := newTestAssembler(t)
	assert.Nil(t, a.SaveChunk("upload-1", 0, 2, []byte("garbled")))
	assert.Nil(t, a.SaveChunk("upload-1", 0, 2, []byte("clean-")))
	assert.Nil(t, a.SaveChunk("upload-1", 1, 2, []byte("tail")))

	code, err := a.Merge(context.Background(), "upload-1", "f.bin", int64(len("clean-tail")), 2, 1, ExpireStyleDay)
	assert.Nil(t, err)
	_, rc, err := a.Service.Download(context.Background(), code)
	assert.Nil(t, err)
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	assert.Equal(t, "clean-tail", string(got))
}

func TestChunkAssembler_Merge_MissingChunk(t *testing.T) {
	a := newTestAssembler(t)
	assert.Nil(t, a.SaveChunk("upload-1", 0, 3, []byte("aa")))
	assert.Nil(t, a.SaveChunk("upload-1", 2, 3, []byte("cc")))

	_, err := a.Merge(context.Background(), "upload-1", "f.bin", 6, 3, 1, ExpireStyleDay)
	assert.NotNil(t, err)
	assert.Equal(t, pe.ErrCodeBadInput, err.Code)
	assert.Contains(t, err.Error(), "chunk 1")

	// The staged chunks survive a failed merge so the client only has to
	// re-upload the missing one.
	assert.Nil(t, a.SaveChunk("upload-1", 1, 3, []byte("bb")))
	code, merr := a.Merge(context.Background(), "upload-1", "f.bin", 6, 3, 1, ExpireStyleDay)
	assert.Nil(t, merr)
	assert.True(t, ValidCode(code))
}

func TestChunkAssembler_Merge_SizeMismatch(t *testing.T) {
	a := newTestAssembler(t)
	assert.Nil(t, a.SaveChunk("upload-1", 0, 1, []byte("abc")))

	_, err := a.Merge(context.Background(), "upload-1", "f.bin", 99, 1, 1, ExpireStyleDay)
	assert.NotNil(t, err)
	assert.Equal(t, pe.ErrCodeBadInput, err.Code)
}

func TestChunkAssembler_Merge_Oversized(t *testing.T) {
	a := newTestAssembler(t)
	_, err := a.Merge(context.Background(), "upload-1", "f.bin", a.Service.MaxFileSize+1, 1, 1, ExpireStyleDay)
	assert.NotNil(t, err)
	assert.Equal(t, pe.ErrCodeOversized, err.Code)
}
