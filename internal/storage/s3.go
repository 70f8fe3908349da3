package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"splicer/internal/services"
)

// deleteBatchSize is the DeleteObjects per-request ceiling.
const deleteBatchSize = 1000

type s3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type s3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Options configures an S3Store.
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

// S3Store uploads artifacts to an S3 bucket or an S3-compatible endpoint.
// The SDK client is created on first use.
type S3Store struct {
	opts S3Options

	mu        sync.Mutex
	client    s3Client
	presigner s3Presigner
}

// NewS3Store constructs a store. No network or credential lookup happens here.
func NewS3Store(opts S3Options) *S3Store {
	opts.Bucket = strings.TrimSpace(opts.Bucket)
	opts.Region = strings.TrimSpace(opts.Region)
	if opts.Region == "" {
		opts.Region = defaultString(os.Getenv("AWS_REGION"), "us-east-1")
	}
	opts.Endpoint = strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	opts.PublicBaseURL = strings.TrimRight(strings.TrimSpace(opts.PublicBaseURL), "/")
	return &S3Store{opts: opts}
}

// newS3StoreWithClient is used by tests to inject a fake SDK client.
func newS3StoreWithClient(opts S3Options, client s3Client, presigner s3Presigner) *S3Store {
	store := NewS3Store(opts)
	store.client = client
	store.presigner = presigner
	return store
}

// URL returns the public object URL for key.
func (s *S3Store) URL(key string) string {
	switch {
	case s.opts.PublicBaseURL != "":
		return joinURL(s.opts.PublicBaseURL, key)
	case s.opts.Endpoint != "":
		return joinURL(s.opts.Endpoint+"/"+s.opts.Bucket, key)
	default:
		return joinURL(fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.opts.Bucket, s.opts.Region), key)
	}
}

// Put uploads data under key.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	cleanKey, err := SanitizeKey(key)
	if err != nil {
		return "", err
	}
	client, err := s.resolveClient(ctx)
	if err != nil {
		return "", err
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.opts.Bucket),
		Key:           aws.String(cleanKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("s3 put %s: %w", cleanKey, err)
	}
	return s.URL(cleanKey), nil
}

// Get downloads the object stored at key.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	cleanKey, err := SanitizeKey(key)
	if err != nil {
		return nil, err
	}
	client, err := s.resolveClient(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(cleanKey),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("s3 get %s: %w", cleanKey, services.ErrNotFound)
		}
		return nil, fmt.Errorf("s3 get %s: %w", cleanKey, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read %s: %w", cleanKey, err)
	}
	return data, nil
}

// DeletePrefix lists and deletes every object under prefix in batches.
func (s *S3Store) DeletePrefix(ctx context.Context, prefix string) error {
	cleanPrefix, err := sanitizePrefix(prefix)
	if err != nil {
		return err
	}
	client, err := s.resolveClient(ctx)
	if err != nil {
		return err
	}
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.opts.Bucket),
		Prefix: aws.String(cleanPrefix),
	})
	var batch []types.ObjectIdentifier
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		_, err := client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.opts.Bucket),
			Delete: &types.Delete{Objects: batch, Quiet: aws.Bool(true)},
		})
		batch = batch[:0]
		return err
	}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("s3 list %s: %w", cleanPrefix, err)
		}
		for _, obj := range page.Contents {
			batch = append(batch, types.ObjectIdentifier{Key: obj.Key})
			if len(batch) == deleteBatchSize {
				if err := flush(); err != nil {
					return fmt.Errorf("s3 delete %s: %w", cleanPrefix, err)
				}
			}
		}
	}
	if err := flush(); err != nil {
		return fmt.Errorf("s3 delete %s: %w", cleanPrefix, err)
	}
	return nil
}

// PresignGet returns a time-limited GET URL for key.
func (s *S3Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	cleanKey, err := SanitizeKey(key)
	if err != nil {
		return "", err
	}
	if _, err := s.resolveClient(ctx); err != nil {
		return "", err
	}
	s.mu.Lock()
	presigner := s.presigner
	s.mu.Unlock()
	if presigner == nil {
		return "", errors.New("s3 presign: presigner unavailable")
	}
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(cleanKey),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("s3 presign %s: %w", cleanKey, err)
	}
	return req.URL, nil
}

func (s *S3Store) resolveClient(ctx context.Context) (s3Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	if s.opts.Bucket == "" {
		return nil, fmt.Errorf("s3: %w: bucket is required", services.ErrConfiguration)
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(s.opts.Region)}
	if s.opts.AccessKeyID != "" && s.opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.opts.AccessKeyID, s.opts.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s.opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	s.client = client
	s.presigner = s3.NewPresignClient(client)
	return s.client, nil
}

func defaultString(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
