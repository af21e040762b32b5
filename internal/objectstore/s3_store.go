package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const uploadTimeMetadataKey = "upload_time"

// s3API is the subset of the S3 client used by the store, extracted so tests
// can substitute a double.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3ObjectStore implements core.ObjectStore on top of an S3 bucket.
type S3ObjectStore struct {
	client s3API
	bucket string
	now    func() time.Time
}

// NewS3ObjectStore creates a store writing to the given bucket.
func NewS3ObjectStore(client *s3.Client, bucket string) *S3ObjectStore {
	return newS3ObjectStore(client, bucket)
}

func newS3ObjectStore(client s3API, bucket string) *S3ObjectStore {
	return &S3ObjectStore{
		client: client,
		bucket: bucket,
		now:    time.Now,
	}
}

// Upload puts an object with the content type and an upload_time metadata
// entry recording when the object was written.
func (s *S3ObjectStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			uploadTimeMetadataKey: s.now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, s.bucket, err)
	}

	return nil
}

// Download retrieves an object body from the bucket.
func (s *S3ObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, s.bucket, err)
	}

	data, readErr := io.ReadAll(result.Body)
	closeErr := result.Body.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	return data, nil
}
