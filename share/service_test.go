package share

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	pe "filecodebox.io/fcb/errors"
	"filecodebox.io/fcb/models"
	"filecodebox.io/fcb/stores"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return &Service{
		Records:     stores.NewMemRecordStore(1024),
		Blobs:       &stores.LocalBlobStore{Dir: t.TempDir()},
		MaxTextSize: 1024,
		MaxFileSize: 1 << 20,
	}
}

func TestService_ShareTextAndRetrieve(t *testing.T) {
	s := newTestService(t)
	code, err := s.ShareText("hello from the other side", 1, ExpireStyleDay)
	assert.Nil(t, err)
	assert.True(t, ValidCode(code))

	rec, err := s.Retrieve(code)
	assert.Nil(t, err)
	assert.Equal(t, "hello from the other side", rec.Text)
	assert.Equal(t, models.KindText, rec.Kind())
	assert.Equal(t, int64(1), rec.UsedCount)
	assert.NotNil(t, rec.LastAccess)
	assert.NotNil(t, rec.ExpiredAt)

	rec, err = s.Retrieve(code)
	assert.Nil(t, err)
	assert.Equal(t, int64(2), rec.UsedCount)
}

func TestService_ShareText_Validation(t *testing.T) {
	s := newTestService(t)
	tcs := []struct {
		name       string
		text       string
		expErrCode pe.ErrCode
	}{
		{"EmptyText", "", pe.ErrCodeBadInput},
		{"OversizedText", strings.Repeat("x", 1025), pe.ErrCodeOversized},
	}
	for _, c := range tcs {
		t.Run(c.name, func(t *testing.T) {
			_, err := s.ShareText(c.text, 1, ExpireStyleDay)
			assert.NotNil(t, err)
			assert.Equal(t, c.expErrCode, err.Code)
		})
	}
}

func TestService_ShareFileAndDownload(t *testing.T) {
	s := newTestService(t)
	content := "PDF-ish bytes \x00\x01\x02"
	code, err := s.ShareFile(context.Background(), strings.NewReader(content), int64(len(content)), "report.pdf", 1, ExpireStyleHour)
	assert.Nil(t, err)

	rec, rc, err := s.Download(context.Background(), code)
	assert.Nil(t, err)
	defer rc.Close()
	assert.Equal(t, models.KindFile, rec.Kind())
	assert.Equal(t, "report.pdf", rec.FileName())
	assert.Equal(t, int64(len(content)), rec.Size)
	got, rerr := io.ReadAll(rc)
	assert.NoError(t, rerr)
	assert.Equal(t, content, string(got))

	// Download does not count as an access.
	info, ierr := s.Retrieve(code)
	assert.Nil(t, ierr)
	assert.Equal(t, int64(1), info.UsedCount)
}

func TestService_ShareFile_Validation(t *testing.T) {
	s := newTestService(t)
	t.Run("EmptyFile", func(t *testing.T) {
		_, err := s.ShareFile(context.Background(), strings.NewReader(""), 0, "empty.txt", 1, ExpireStyleDay)
		assert.NotNil(t, err)
		assert.Equal(t, pe.ErrCodeBadInput, err.Code)
	})
	t.Run("OversizedFile", func(t *testing.T) {
		_, err := s.ShareFile(context.Background(), strings.NewReader("x"), s.MaxFileSize+1, "big.bin", 1, ExpireStyleDay)
		assert.NotNil(t, err)
		assert.Equal(t, pe.ErrCodeOversized, err.Code)
	})
}

func TestService_Retrieve_Misses(t *testing.T) {
	s := newTestService(t)
	tcs := []struct {
		name       string
		code       string
		expErrCode pe.ErrCode
	}{
		{"MalformedCode", "abc123", pe.ErrCodeBadInput},
		{"UnknownCode", "999999", pe.ErrCodeNotFound},
	}
	for _, c := range tcs {
		t.Run(c.name, func(t *testing.T) {
			_, err := s.Retrieve(c.code)
			assert.NotNil(t, err)
			assert.Equal(t, c.expErrCode, err.Code)
		})
	}
}

func TestService_Retrieve_ExpiredLooksMissing(t *testing.T) {
	s := newTestService(t)
	code, err := s.ShareText("short lived", 1, ExpireStyleMinute)
	assert.Nil(t, err)

	// Rewrite the record with an expiry in the past to simulate the
	// passage of time.
	rec, err := s.getRecord(code)
	assert.Nil(t, err)
	past := time.Now().Add(-time.Minute)
	rec.ExpiredAt = &past
	assert.Nil(t, s.putRecord(rec))

	_, err = s.Retrieve(code)
	assert.NotNil(t, err)
	assert.Equal(t, pe.ErrCodeNotFound, err.Code)
}

func TestService_Download_TextShareRejected(t *testing.T) {
	s := newTestService(t)
	code, err := s.ShareText("not a file", 1, ExpireStyleDay)
	assert.Nil(t, err)

	_, _, err = s.Download(context.Background(), code)
	assert.NotNil(t, err)
	assert.Equal(t, pe.ErrCodeBadInput, err.Code)
}

func TestService_Download_MissingBlobLooksMissing(t *testing.T) {
	s := newTestService(t)
	code, err := s.ShareFile(context.Background(), strings.NewReader("payload"), 7, "doomed.txt", 1, ExpireStyleDay)
	assert.Nil(t, err)

	rec, err := s.getRecord(code)
	assert.Nil(t, err)
	assert.Nil(t, s.Blobs.Delete(context.Background(), rec.BlobKey))

	_, _, err = s.Download(context.Background(), code)
	assert.NotNil(t, err)
	assert.Equal(t, pe.ErrCodeNotFound, err.Code)
}

func TestSplitName(t *testing.T) {
	tcs := []struct {
		in, prefix, suffix string
	}{
		{"report.pdf", "report", ".pdf"},
		{"archive.tar.gz", "archive.tar", ".gz"},
		{"README", "README", ""},
		{".bashrc", ".bashrc", ""},
		{"dir/nested.txt", "nested", ".txt"},
	}
	for _, c := range tcs {
		p, s := splitName(c.in)
		assert.Equal(t, c.prefix, p, "prefix of %q", c.in)
		assert.Equal(t, c.suffix, s, "suffix of %q", c.in)
	}
}
