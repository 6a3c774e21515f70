package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory s3Client for store tests.
type fakeS3 struct {
	buckets map[string]bool
	objects map[string]fakeObject
}

type fakeObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		buckets: make(map[string]bool),
		objects: make(map[string]fakeObject),
	}
}

func (f *fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if !f.buckets[*in.Bucket] {
		return nil, errors.New("NotFound")
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.buckets[*in.Bucket] = true
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	obj := fakeObject{data: data, modified: time.Now()}
	if in.ContentType != nil {
		obj.contentType = *in.ContentType
	}
	f.objects[*in.Key] = obj
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	obj, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	contentType := obj.contentType
	modified := obj.modified
	return &s3.GetObjectOutput{
		Body:         io.NopCloser(bytes.NewReader(obj.data)),
		ContentType:  &contentType,
		LastModified: &modified,
	}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestObjectKey(t *testing.T) {
	got := objectKey("prof-1", "img-1")
	want := "profiles/prof-1/images/img-1"
	if got != want {
		t.Errorf("objectKey() = %q, want %q", got, want)
	}
}

func TestStore_EnsureBucket(t *testing.T) {
	fake := newFakeS3()
	store := newStoreWithClient(fake, "herpkeeper-images")
	ctx := context.Background()

	created, err := store.EnsureBucket(ctx)
	if err != nil {
		t.Fatalf("EnsureBucket() error: %v", err)
	}
	if !created {
		t.Error("first EnsureBucket() = false, want true")
	}

	created, err = store.EnsureBucket(ctx)
	if err != nil {
		t.Fatalf("second EnsureBucket() error: %v", err)
	}
	if created {
		t.Error("second EnsureBucket() = true, want false")
	}
}

func TestStore_SaveGetRemove(t *testing.T) {
	fake := newFakeS3()
	store := newStoreWithClient(fake, "herpkeeper-images")
	ctx := context.Background()

	payload := []byte("\x89PNG\r\n\x1a\nfake image data")

	saved, err := store.Save(ctx, "prof-1", "img-1", payload, "image/png")
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if saved.ContentType != "image/png" {
		t.Errorf("saved ContentType = %q, want %q", saved.ContentType, "image/png")
	}
	if saved.ContentLength != int64(len(payload)) {
		t.Errorf("saved ContentLength = %d, want %d", saved.ContentLength, len(payload))
	}

	got, err := store.Get(ctx, "prof-1", "img-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(got.Data)
	if err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Error("stored bytes do not round-trip")
	}
	if got.ContentType != "image/png" {
		t.Errorf("ContentType = %q, want %q", got.ContentType, "image/png")
	}

	if err := store.Remove(ctx, "prof-1", "img-1"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, err := store.Get(ctx, "prof-1", "img-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after remove = %v, want ErrNotFound", err)
	}

	// Removing a missing object is a no-op.
	if err := store.Remove(ctx, "prof-1", "img-1"); err != nil {
		t.Errorf("second Remove() error: %v", err)
	}
}

func TestStore_SniffsContentType(t *testing.T) {
	fake := newFakeS3()
	store := newStoreWithClient(fake, "herpkeeper-images")

	// PNG magic bytes with no explicit content type.
	payload := []byte("\x89PNG\r\n\x1a\n0000000000")
	saved, err := store.Save(context.Background(), "prof-1", "img-2", payload, "")
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if saved.ContentType != "image/png" {
		t.Errorf("sniffed ContentType = %q, want %q", saved.ContentType, "image/png")
	}
}
