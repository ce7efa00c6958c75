package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// SignedURL is a presigned request the client performs directly against the
// object store
type SignedURL struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Expires time.Time         `json:"expires"`
}

// Signer produces presigned URLs for submission file access
type Signer interface {
	SignDownload(ctx context.Context, key string) (*SignedURL, error)
	SignUpload(ctx context.Context, key, contentType string) (*SignedURL, error)
}

// S3Config configures the S3 signer
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // non-empty for MinIO or custom endpoints
	AccessKey string
	SecretKey string
	Expiry    time.Duration
}

// S3Signer presigns S3 GET and PUT requests. It never proxies object
// bytes; clients talk to S3 directly with the signed URL.
type S3Signer struct {
	presign *s3.PresignClient
	bucket  string
	expiry  time.Duration
	now     func() time.Time
}

// NewS3Signer creates a signer from the given configuration. Static
// credentials take precedence; otherwise the default AWS credential chain
// applies.
func NewS3Signer(ctx context.Context, cfg S3Config) (*S3Signer, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 15 * time.Minute
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKey, cfg.SecretKey, "",
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Signer{
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		expiry:  cfg.Expiry,
		now:     time.Now,
	}, nil
}

// SignDownload presigns a GET for the given object key
func (s *S3Signer) SignDownload(ctx context.Context, key string) (*SignedURL, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return nil, fmt.Errorf("presign download for %s: %w", key, err)
	}

	return &SignedURL{
		URL:     req.URL,
		Method:  req.Method,
		Headers: flattenHeaders(req.SignedHeader),
		Expires: s.now().Add(s.expiry),
	}, nil
}

// SignUpload presigns a PUT for the given object key
func (s *S3Signer) SignUpload(ctx context.Context, key, contentType string) (*SignedURL, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	req, err := s.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return nil, fmt.Errorf("presign upload for %s: %w", key, err)
	}

	return &SignedURL{
		URL:     req.URL,
		Method:  req.Method,
		Headers: flattenHeaders(req.SignedHeader),
		Expires: s.now().Add(s.expiry),
	}, nil
}

func flattenHeaders(header map[string][]string) map[string]string {
	if len(header) == 0 {
		return nil
	}
	out := make(map[string]string, len(header))
	for k, v := range header {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
