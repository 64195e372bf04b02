package stores

import (
	"context"
	"io"
	"os"
	"path/filepath"

	pe "filecodebox.io/fcb/errors"
)

// BlobStore stores raw file bytes addressed by an opaque key. The backend is
// external to the core and only consumed through this narrow PUT/GET/DELETE
// surface.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) *pe.Err
	// Get returns a reader over the blob bytes, or a NotFound Err when the
	// backend has no object under key.
	Get(ctx context.Context, key string) (io.ReadCloser, *pe.Err)
	// Delete deletes the blob under key. Delete must be idempotent.
	Delete(ctx context.Context, key string) *pe.Err
	Close() *pe.Err
}

// LocalBlobStore implements BlobStore backed by a local directory. It does not
// scale past a single node; use the S3 implementation for real deployments.
type LocalBlobStore struct {
	Dir string
}

func (fs *LocalBlobStore) path(key string) string {
	// blob keys are single path segments; Base guards against traversal from a
	// hostile key
	return filepath.Join(fs.Dir, filepath.Base(key))
}

func (fs *LocalBlobStore) Put(ctx context.Context, key string, r io.Reader) *pe.Err {
	errMsg := "error allocating blob storage space"
	if err := os.MkdirAll(fs.Dir, 0o755); err != nil {
		return pe.NewServiceFailure(errMsg).WithCause(err)
	}
	f, err := os.Create(fs.path(key))
	if err != nil {
		return pe.NewServiceFailure(errMsg).WithCause(err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return pe.NewServiceFailure("error saving blob data").WithCause(err)
	}
	return nil
}

func (fs *LocalBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, *pe.Err) {
	f, err := os.Open(fs.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pe.NewNotFound("blob not found").WithCause(err)
		}
		return nil, pe.NewServiceFailure("error retrieving blob").WithCause(err)
	}
	return f, nil
}

func (fs *LocalBlobStore) Delete(ctx context.Context, key string) *pe.Err {
	if err := os.Remove(fs.path(key)); err != nil && !os.IsNotExist(err) {
		return pe.NewServiceFailure("error removing blob").WithCause(err)
	}
	return nil
}

func (fs *LocalBlobStore) Close() *pe.Err {
	return nil
}
