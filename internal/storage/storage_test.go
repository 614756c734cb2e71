package storage_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/smartreceipts/internal/storage"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *fakeBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if b.putErr != nil {
		return nil, b.putErr
	}

	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[aws.ToString(in.Key)] = data
	b.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)

	return &s3.PutObjectOutput{}, nil
}

func (b *fakeBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}

	return &s3.GetObjectOutput{
		Body:        io.NopCloser(bytes.NewReader(data)),
		ContentType: aws.String(b.types[aws.ToString(in.Key)]),
	}, nil
}

func (b *fakeBucket) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, aws.ToString(in.Key))

	return &s3.DeleteObjectOutput{}, nil
}

type fakePresigner struct {
	calls int
	err   error
}

func (p *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if p.err != nil {
		return nil, p.err
	}

	p.calls++

	return &v4.PresignedHTTPRequest{
		URL: fmt.Sprintf("https://%s.example/%s?sig=%d", aws.ToString(in.Bucket), aws.ToString(in.Key), p.calls),
	}, nil
}

type memoryCache struct {
	urls map[string]string
	ttls map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{urls: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *memoryCache) Get(_ context.Context, path string) (string, bool) {
	u, ok := c.urls[path]
	return u, ok
}

func (c *memoryCache) Set(_ context.Context, path, url string, ttl time.Duration) {
	c.urls[path] = url
	c.ttls[path] = ttl
}

func (c *memoryCache) Delete(_ context.Context, path string) {
	delete(c.urls, path)
}

var jpeg = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, make([]byte, 64)...)

func TestStorage_Upload(t *testing.T) {
	userID := uuid.New()

	type testCase struct {
		name     string
		fileName string
		body     []byte
		wantErr  error
		wantName string
	}

	tests := []testCase{
		{name: "Jpeg", fileName: "my receipt.jpg", body: jpeg, wantName: "-my-receipt.jpg"},
		{name: "PdfWithoutName", fileName: "", body: []byte("%PDF-1.7\n1 0 obj\n"), wantName: "-receipt.pdf"},
		{name: "PathInName", fileName: "../../etc/passwd.png", body: []byte("\x89PNG\r\n\x1a\n0000"), wantName: "-passwd.png"},
		{name: "PlainText", fileName: "notes.txt", body: []byte("hello there"), wantErr: storage.ErrUnsupportedType},
		{name: "TooLarge", fileName: "big.jpg", body: append(jpeg, make([]byte, storage.MaxUploadBytes)...), wantErr: storage.ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket := newFakeBucket()
			s := storage.NewFromClients(bucket, &fakePresigner{}, "receipts", 0, nil)

			obj, err := s.Upload(context.Background(), userID, tt.fileName, bytes.NewReader(tt.body))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, bucket.objects)

				return
			}

			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(obj.Path, userID.String()+"/receipts/"))
			assert.True(t, strings.HasSuffix(obj.Path, tt.wantName), obj.Path)
			assert.True(t, storage.OwnedBy(obj.Path, userID))
			assert.Contains(t, obj.SignedURL, obj.Path)
			assert.WithinDuration(t, time.Now().Add(storage.MaxSignedURLTTL), obj.ExpiresAt, time.Minute)
			assert.Equal(t, tt.body, bucket.objects[obj.Path])
		})
	}
}

func TestStorage_Upload_SignFailureRemovesObject(t *testing.T) {
	bucket := newFakeBucket()
	s := storage.NewFromClients(bucket, &fakePresigner{err: errors.New("no credentials")}, "receipts", time.Hour, nil)

	_, err := s.Upload(context.Background(), uuid.New(), "r.jpg", bytes.NewReader(jpeg))
	assert.Error(t, err)
	assert.Empty(t, bucket.objects)
}

func TestStorage_SignedURL_UsesCache(t *testing.T) {
	presigner := &fakePresigner{}
	cache := newMemoryCache()
	s := storage.NewFromClients(newFakeBucket(), presigner, "receipts", 24*time.Hour, cache)

	first, err := s.SignedURL(context.Background(), "u/receipts/a.jpg")
	require.NoError(t, err)

	second, err := s.SignedURL(context.Background(), "u/receipts/a.jpg")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, presigner.calls)
	assert.Equal(t, 23*time.Hour, cache.ttls["u/receipts/a.jpg"])

	// An evicted entry is signed again.
	cache.Delete(context.Background(), "u/receipts/a.jpg")

	third, err := s.SignedURL(context.Background(), "u/receipts/a.jpg")
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
	assert.Equal(t, 2, presigner.calls)
}

func TestStorage_DeleteAndOpen(t *testing.T) {
	bucket := newFakeBucket()
	cache := newMemoryCache()
	s := storage.NewFromClients(bucket, &fakePresigner{}, "receipts", time.Hour*2, cache)

	obj, err := s.Upload(context.Background(), uuid.New(), "r.jpg", bytes.NewReader(jpeg))
	require.NoError(t, err)
	require.Contains(t, cache.urls, obj.Path)

	rc, contentType, err := s.Open(context.Background(), obj.Path)
	require.NoError(t, err)

	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, jpeg, data)
	assert.Equal(t, "image/jpeg", contentType)

	require.NoError(t, s.Delete(context.Background(), obj.Path))
	assert.NotContains(t, bucket.objects, obj.Path)
	assert.NotContains(t, cache.urls, obj.Path)
}

func TestStorage_RejectsBadPaths(t *testing.T) {
	s := storage.NewFromClients(newFakeBucket(), &fakePresigner{}, "receipts", time.Hour, nil)

	for _, p := range []string{"", "/abs/path.jpg", "u/../../other/x.jpg"} {
		_, err := s.SignedURL(context.Background(), p)
		assert.ErrorIs(t, err, storage.ErrInvalidPath, p)
		assert.ErrorIs(t, s.Delete(context.Background(), p), storage.ErrInvalidPath, p)
	}
}
