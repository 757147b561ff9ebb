package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Client is the subset of the S3 API used by S3Store. *s3.Client
// satisfies it.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config configures an S3 or S3-compatible bucket.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // empty for AWS
	AccessKeyID     string
	SecretAccessKey string

	// PublicBaseURL is prefixed to object keys to form the returned URI,
	// e.g. https://cdn.example.com. Defaults to the virtual-hosted bucket URL.
	PublicBaseURL string
}

// S3Store uploads attachments to a bucket.
type S3Store struct {
	client  S3Client
	bucket  string
	baseURL string
}

// NewS3 creates an S3Store from an existing client.
func NewS3(client S3Client, bucket, publicBaseURL string) *S3Store {
	return &S3Store{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// NewS3FromConfig builds the S3 client from static credentials.
func NewS3FromConfig(cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("blob: S3 bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.Endpoint != "",
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	base := cfg.PublicBaseURL
	if base == "" {
		if cfg.Endpoint != "" {
			base = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
		} else {
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	return NewS3(s3.New(opts), cfg.Bucket, base), nil
}

// Upload stores data under chat-uploads/<uuid><ext> and returns its public
// URL.
func (s *S3Store) Upload(ctx context.Context, data []byte, suggestedPath string) (string, error) {
	key := objectName(suggestedPath)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(key)),
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %s", ErrStorage, key, describe(err))
	}
	return s.baseURL + "/" + key, nil
}

// describe shortens S3 API errors to their code and message.
func describe(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() + ": " + apiErr.ErrorMessage()
	}
	return err.Error()
}

var _ Store = (*S3Store)(nil)
