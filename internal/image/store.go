package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/config"
)

// s3Client is the subset of the S3 API the store uses.
// Narrowing the interface keeps the store testable without a live bucket.
type s3Client interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store keeps image bytes in an S3 bucket, one object per image, keyed by
// profile so a profile's images share a prefix.
type Store struct {
	client s3Client
	bucket string
}

// NewStore builds a Store from configuration. Credentials come from the
// standard AWS chain (env, shared config, instance role). A custom endpoint
// with path-style addressing supports MinIO and localstack deployments.
func NewStore(ctx context.Context, cfg config.S3Config) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// newStoreWithClient is used by tests to inject a fake client.
func newStoreWithClient(client s3Client, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// objectKey builds the bucket key for an image.
// Layout: profiles/{profileID}/images/{imageID}
func objectKey(profileID, imageID string) string {
	return fmt.Sprintf("profiles/%s/images/%s", profileID, imageID)
}

// EnsureBucket creates the configured bucket if it does not already exist.
// Returns true if the bucket was created.
func (s *Store) EnsureBucket(ctx context.Context) (bool, error) {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return false, nil
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		var exists *types.BucketAlreadyOwnedByYou
		if errors.As(err, &exists) {
			return false, nil
		}
		return false, fmt.Errorf("creating bucket %s: %w", s.bucket, err)
	}
	return true, nil
}

// Save uploads image bytes and returns the stored object. The content type
// is sniffed from the payload when not supplied.
func (s *Store) Save(ctx context.Context, profileID, imageID string, data []byte, contentType string) (*Object, error) {
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	key := objectKey(profileID, imageID)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("saving image %s: %w", key, err)
	}

	return &Object{
		ContentType:   contentType,
		ContentLength: int64(len(data)),
		LastModified:  time.Now().UTC(),
		Data:          base64.StdEncoding.EncodeToString(data),
	}, nil
}

// Get downloads an image's bytes. Returns ErrNotFound for missing keys.
func (s *Store) Get(ctx context.Context, profileID, imageID string) (*Object, error) {
	key := objectKey(profileID, imageID)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting image %s: %w", key, err)
	}
	defer out.Body.Close() //nolint:errcheck // read-only body

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading image %s: %w", key, err)
	}

	obj := &Object{
		ContentLength: int64(len(data)),
		Data:          base64.StdEncoding.EncodeToString(data),
	}
	if out.ContentType != nil {
		obj.ContentType = *out.ContentType
	}
	if out.LastModified != nil {
		obj.LastModified = *out.LastModified
	}
	return obj, nil
}

// Remove deletes an image's bytes. Deleting a missing object is not an error.
func (s *Store) Remove(ctx context.Context, profileID, imageID string) error {
	key := objectKey(profileID, imageID)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting image %s: %w", key, err)
	}
	return nil
}
