package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vmail/backend/internal/config"
)

var (
	// ErrUnresolvable indicates the storage reference does not name a retrievable object.
	ErrUnresolvable = errors.New("storage reference could not be resolved")
)

// PlaybackOptions tweak the minted URL.
type PlaybackOptions struct {
	// Download asks the store to serve the object as an attachment named Filename.
	Download bool
	Filename string
}

type headObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type uploadAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Storage stores message videos in an S3-compatible bucket and mints
// time-limited playback URLs for them.
type S3Storage struct {
	head     headObjectAPI
	presign  presignAPI
	uploader uploadAPI
	bucket   string
	ttl      time.Duration
}

// NewS3Storage configures a client targeting the provided object store.
func NewS3Storage(ctx context.Context, cfg config.ObjectStoreConfig) (*S3Storage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return newS3Storage(client, cfg), nil
}

func newS3Storage(client *s3.Client, cfg config.ObjectStoreConfig) *S3Storage {
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
		u.LeavePartsOnError = false
	})

	return &S3Storage{
		head:     client,
		presign:  s3.NewPresignClient(client),
		uploader: uploader,
		bucket:   cfg.Bucket,
		ttl:      cfg.PresignTTL,
	}
}

// Save uploads the provided content under key and returns the storage reference.
func (s *S3Storage) Save(ctx context.Context, key string, r io.Reader) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", fmt.Errorf("s3 storage: empty key")
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String("video/mp4"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 storage upload %s: %w", key, err)
	}

	return key, nil
}

// PlaybackURL returns a direct, time-limited URL for the object behind ref.
func (s *S3Storage) PlaybackURL(ctx context.Context, ref string, opts PlaybackOptions) (string, error) {
	key := strings.TrimLeft(ref, "/")
	if key == "" {
		return "", fmt.Errorf("%w: empty reference", ErrUnresolvable)
	}

	_, err := s.head.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *s3types.NotFound
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return "", fmt.Errorf("%w: %s", ErrUnresolvable, key)
		}
		return "", fmt.Errorf("s3 storage head %s: %w", key, err)
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if opts.Download {
		input.ResponseContentDisposition = aws.String(attachment(opts.Filename))
	}

	req, err := s.presign.PresignGetObject(ctx, input, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("s3 storage presign %s: %w", key, err)
	}

	return req.URL, nil
}

func attachment(filename string) string {
	if filename == "" {
		return "attachment"
	}
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}
