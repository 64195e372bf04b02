package stores

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	se "filecodebox.io/fcb/errors"
)

func TestMemRecordStore_PutGetDelete(t *testing.T) {
	s := NewMemRecordStore(128)
	defer s.Close()

	_, err := s.Get("file:123456")
	assert.NotNil(t, err)
	assert.Equal(t, se.ErrCodeNotFound, err.Code)

	assert.Nil(t, s.Put("file:123456", []byte(`{"code":"123456"}`), 0))
	got, err := s.Get("file:123456")
	assert.Nil(t, err)
	assert.Equal(t, []byte(`{"code":"123456"}`), got)

	// last writer wins
	assert.Nil(t, s.Put("file:123456", []byte(`{"code":"123456","used_count":1}`), 0))
	got, err = s.Get("file:123456")
	assert.Nil(t, err)
	assert.Equal(t, []byte(`{"code":"123456","used_count":1}`), got)

	assert.Nil(t, s.Delete("file:123456"))
	// idempotent
	assert.Nil(t, s.Delete("file:123456"))
	_, err = s.Get("file:123456")
	assert.NotNil(t, err)
	assert.Equal(t, se.ErrCodeNotFound, err.Code)
}

func TestMemRecordStore_TTL(t *testing.T) {
	s := NewMemRecordStore(128)
	defer s.Close()

	assert.Nil(t, s.Put("chunk:up1:0", []byte("abc"), 20*time.Millisecond))
	_, err := s.Get("chunk:up1:0")
	assert.Nil(t, err)

	time.Sleep(40 * time.Millisecond)
	_, err = s.Get("chunk:up1:0")
	assert.NotNil(t, err)
	assert.Equal(t, se.ErrCodeNotFound, err.Code)
}

func TestMemRecordStore_ListKeys(t *testing.T) {
	s := NewMemRecordStore(128)
	defer s.Close()

	assert.Nil(t, s.Put("file:111111", []byte("a"), 0))
	assert.Nil(t, s.Put("file:222222", []byte("b"), 0))
	assert.Nil(t, s.Put("chunk:up1:0", []byte("c"), 0))
	assert.Nil(t, s.Put("ratelimit:x:y:1", []byte("1"), 0))

	keys, err := s.ListKeys("file:")
	assert.Nil(t, err)
	assert.ElementsMatch(t, []string{"file:111111", "file:222222"}, keys)
}

func TestMemRecordStore_GetReturnsCopy(t *testing.T) {
	s := NewMemRecordStore(128)
	defer s.Close()

	assert.Nil(t, s.Put("file:333333", []byte("orig"), 0))
	got, err := s.Get("file:333333")
	assert.Nil(t, err)
	got[0] = 'X'

	again, err := s.Get("file:333333")
	assert.Nil(t, err)
	assert.Equal(t, []byte("orig"), again, "mutating a returned value must not corrupt the store")
}
