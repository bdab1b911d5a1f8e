package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Akshdhiwar/simpledocs-archive/internals/models"
)

// S3API is the part of *s3.Client used here.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Storage keeps objects in one bucket of an S3 compatible service such as R2.
type S3Storage struct {
	client S3API
	bucket string
	prefix string
	now    func() time.Time
}

func NewS3Storage(client S3API, bucket, prefix string) (*S3Storage, error) {
	if bucket == "" {
		return nil, errors.New("s3 storage requires a bucket")
	}
	return &S3Storage{client: client, bucket: bucket, prefix: prefix, now: time.Now}, nil
}

func (s *S3Storage) ItemType() models.ItemType {
	return models.ItemTypeS3File
}

// Upload streams r to a new object. r should be seekable, the SDK signs the
// payload from it.
func (s *S3Storage) Upload(ctx context.Context, r io.Reader, size int64, mimetype string) (string, error) {
	key := NewKey(s.prefix, s.now())

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(mimetype),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	return key, nil
}

func (s *S3Storage) Download(ctx context.Context, file models.FileExtra) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(file.Path),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%s: %w", file.Path, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", file.Path, err)
	}
	return result.Body, nil
}
