package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	MaxUploadBytes = 20 * 1024 * 1024

	// MaxSignedURLTTL is the longest validity SigV4 allows for a presigned URL.
	MaxSignedURLTTL = 7 * 24 * time.Hour

	cacheMargin = time.Hour
)

var (
	ErrUnsupportedType = errors.New("unsupported receipt file type")
	ErrTooLarge        = errors.New("receipt file is too large")
	ErrInvalidPath     = errors.New("invalid object path")
)

var allowedTypes = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/heic",
	"image/heif",
	"image/gif",
	"application/pdf",
}

type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// URLCache keeps signed URLs so repeated reads of the library do not re-sign every image.
type URLCache interface {
	Get(ctx context.Context, path string) (string, bool)
	Set(ctx context.Context, path, url string, ttl time.Duration)
	Delete(ctx context.Context, path string)
}

type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	SignedURLTTL    time.Duration
}

// Object describes a stored receipt image.
type Object struct {
	Path        string    `json:"path"`
	SignedURL   string    `json:"signed_url"`
	ExpiresAt   time.Time `json:"expires_at"`
	ContentType string    `json:"content_type"`
}

// Storage keeps receipt images in an S3 compatible bucket.
type Storage struct {
	objects   ObjectAPI
	presigner Presigner
	cache     URLCache
	bucket    string
	ttl       time.Duration
	now       func() time.Time
}

// New connects to the bucket described by cfg. Static credentials are used
// when given, otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg Config, cache URLCache) (*Storage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}

		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewFromClients(client, s3.NewPresignClient(client), cfg.Bucket, cfg.SignedURLTTL, cache), nil
}

// NewFromClients builds a Storage over existing clients. cache may be nil.
func NewFromClients(objects ObjectAPI, presigner Presigner, bucket string, ttl time.Duration, cache URLCache) *Storage {
	if ttl <= 0 || ttl > MaxSignedURLTTL {
		ttl = MaxSignedURLTTL
	}

	return &Storage{
		objects:   objects,
		presigner: presigner,
		cache:     cache,
		bucket:    bucket,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Upload stores a receipt image under <userID>/receipts/ and returns its path
// with a fresh signed URL. The content type is sniffed, not trusted.
func (s *Storage) Upload(ctx context.Context, userID uuid.UUID, fileName string, body io.Reader) (*Object, error) {
	data, err := io.ReadAll(io.LimitReader(body, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}

	if len(data) > MaxUploadBytes {
		return nil, ErrTooLarge
	}

	mtype := mimetype.Detect(data)
	if !allowed(mtype) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}

	id := uuid.New()

	name := sanitizeFileName(fileName)
	if name == "" {
		name = "receipt" + mtype.Extension()
	}

	key := fmt.Sprintf("%s/receipts/%s-%s", userID, id, name)
	contentType := strings.SplitN(mtype.String(), ";", 2)[0]

	_, err = s.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("uploading receipt image: %w", err)
	}

	url, expiresAt, err := s.sign(ctx, key)
	if err != nil {
		if _, delErr := s.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}); delErr != nil {
			slog.Warn("failed to remove unsigned upload", "path", key, "error", delErr)
		}

		return nil, err
	}

	return &Object{Path: key, SignedURL: url, ExpiresAt: expiresAt, ContentType: contentType}, nil
}

func allowed(mtype *mimetype.MIME) bool {
	for _, t := range allowedTypes {
		if mtype.Is(t) {
			return true
		}
	}

	return false
}

// SignedURL returns a time-limited GET URL for path, re-signing when the
// cached one is missing or about to expire.
func (s *Storage) SignedURL(ctx context.Context, path string) (string, error) {
	if err := validatePath(path); err != nil {
		return "", err
	}

	if s.cache != nil {
		if url, ok := s.cache.Get(ctx, path); ok {
			return url, nil
		}
	}

	url, _, err := s.sign(ctx, path)

	return url, err
}

func (s *Storage) sign(ctx context.Context, path string) (string, time.Time, error) {
	expiresAt := s.now().Add(s.ttl)

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing receipt image url: %w", err)
	}

	if s.cache != nil && s.ttl > cacheMargin {
		s.cache.Set(ctx, path, req.URL, s.ttl-cacheMargin)
	}

	return req.URL, expiresAt, nil
}

// Delete removes the object and its cached URL.
func (s *Storage) Delete(ctx context.Context, path string) error {
	if err := validatePath(path); err != nil {
		return err
	}

	if s.cache != nil {
		s.cache.Delete(ctx, path)
	}

	_, err := s.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return fmt.Errorf("deleting receipt image: %w", err)
	}

	return nil
}

// Open streams the object. The caller closes the returned reader.
func (s *Storage) Open(ctx context.Context, path string) (io.ReadCloser, string, error) {
	if err := validatePath(path); err != nil {
		return nil, "", err
	}

	out, err := s.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return nil, "", fmt.Errorf("reading receipt image: %w", err)
	}

	return out.Body, aws.ToString(out.ContentType), nil
}

// OwnedBy reports whether path lives under the user's prefix.
func OwnedBy(path string, userID uuid.UUID) bool {
	return strings.HasPrefix(path, userID.String()+"/")
}

func validatePath(p string) error {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}

	return nil
}

func sanitizeFileName(name string) string {
	clean := path.Base(strings.TrimSpace(strings.ReplaceAll(name, `\`, "/")))
	if clean == "." || clean == "/" {
		return ""
	}

	var b strings.Builder

	b.Grow(len(clean))

	for _, r := range clean {
		switch {
		case unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}

	return strings.Trim(b.String(), "-_.")
}
