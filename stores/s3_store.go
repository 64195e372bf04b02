package stores

import (
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	log "github.com/sirupsen/logrus"
	pe "filecodebox.io/fcb/errors"
)

// S3BlobStore implements BlobStore on any S3-compatible object backend.
type S3BlobStore struct {
	C      *s3.Client
	bucket string
}

func NewS3BlobStore(client *s3.Client, bucket string) *S3BlobStore {
	return &S3BlobStore{C: client, bucket: bucket}
}

// SetupS3BlobStore builds an S3BlobStore from the ambient AWS config. A
// non-empty endpoint switches the client to path-style addressing for
// MinIO-style backends.
func SetupS3BlobStore(ctx context.Context, region, bucket, endpoint string) (*S3BlobStore, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3BlobStore(client, bucket), nil
}

func (s *S3BlobStore) Put(ctx context.Context, key string, r io.Reader) *pe.Err {
	_, err := s.C.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		msg := "error uploading blob to backend"
		log.WithError(err).WithField("blobKey", key).Error(msg)
		return pe.NewServiceFailure(msg).WithCause(err)
	}
	return nil
}

func (s *S3BlobStore) Get(ctx context.Context, key string) (io.ReadCloser, *pe.Err) {
	out, err := s.C.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, pe.NewNotFound("blob not found").WithCause(err)
		}
		msg := "error fetching blob from backend"
		log.WithError(err).WithField("blobKey", key).Error(msg)
		return nil, pe.NewServiceFailure(msg).WithCause(err)
	}
	return out.Body, nil
}

func (s *S3BlobStore) Delete(ctx context.Context, key string) *pe.Err {
	// DeleteObject succeeds on a missing key, which keeps Delete idempotent
	if _, err := s.C.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		msg := "error deleting blob from backend"
		log.WithError(err).WithField("blobKey", key).Error(msg)
		return pe.NewServiceFailure(msg).WithCause(err)
	}
	return nil
}

func (s *S3BlobStore) Close() *pe.Err {
	return nil
}
