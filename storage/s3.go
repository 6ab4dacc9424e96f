package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hexquarry/battle/types"
)

// S3Config configures the S3-backed Store: AWS credential/endpoint wiring
// that calls the AWS SDK's S3 client directly (PutObject/GetObject).
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing, required by most
	// S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
func ParseS3Path(path string) (bucket, prefix string) {
	parts := strings.SplitN(path, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// S3Store persists results as JSON objects under "<prefix>/<fingerprint>.json".
type S3Store struct {
	client *s3.Client
	cfg    S3Config
}

// NewS3Store creates an S3-backed Store using the AWS SDK default
// credential chain (env vars, shared config, IAM role).
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3Store{client: s3.NewFromConfig(awsConfig, s3Opts...), cfg: cfg}, nil
}

func (s *S3Store) key(fingerprint string) string {
	if s.cfg.Prefix == "" {
		return fingerprint + ".json"
	}
	return strings.TrimSuffix(s.cfg.Prefix, "/") + "/" + fingerprint + ".json"
}

// Put writes result as a JSON object.
func (s *S3Store) Put(ctx context.Context, fingerprint string, result *types.JobResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("storage: marshal result: %w", err)
	}

	key := s.key(fingerprint)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	return WrapWriteError(err, key)
}

// Get retrieves and unmarshals a previously persisted result.
func (s *S3Store) Get(ctx context.Context, fingerprint string) (*types.JobResult, error) {
	key := s.key(fingerprint)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, NewError(ErrNotFound, "read", key, err)
		}
		return nil, WrapReadError(err, key)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, WrapReadError(err, key)
	}

	var result types.JobResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("storage: unmarshal result: %w", err)
	}
	return &result, nil
}

// Close is a no-op: the AWS SDK client owns no closable resources here.
func (s *S3Store) Close() error {
	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	return errors.As(err, &noSuchKey)
}

var _ Store = (*S3Store)(nil)
