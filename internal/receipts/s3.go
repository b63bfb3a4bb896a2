package receipts

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config selects the bucket receipts are written to. Endpoint and
// PathStyle target S3-compatible servers such as MinIO. Credentials come
// from the default AWS chain.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// S3Store writes receipts to a single bucket.
type S3Store struct {
	client    *s3.Client
	bucket    string
	region    string
	endpoint  *url.URL
	pathStyle bool
}

func NewS3(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newS3WithConfig(awsCfg, cfg)
}

func newS3WithConfig(awsCfg aws.Config, cfg S3Config, optFns ...func(*s3.Options)) (*S3Store, error) {
	var endpoint *url.URL
	if cfg.Endpoint != "" {
		u, err := url.Parse(cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse s3 endpoint: %w", err)
		}
		endpoint = u
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		for _, fn := range optFns {
			fn(o)
		}
	})
	return &S3Store{
		client:    client,
		bucket:    cfg.Bucket,
		region:    awsCfg.Region,
		endpoint:  endpoint,
		pathStyle: cfg.PathStyle,
	}, nil
}

func (s *S3Store) Driver() Driver { return DriverS3 }

func (s *S3Store) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &k}); err == nil {
		return "", ErrExists
	}
	input := &s3.PutObjectInput{Bucket: &s.bucket, Key: &k, Body: body}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return s.objectURL(k), nil
}

func (s *S3Store) objectURL(key string) string {
	escaped := url.PathEscape(key)
	if s.endpoint != nil {
		base := strings.TrimRight(s.endpoint.String(), "/")
		if s.pathStyle {
			return base + "/" + s.bucket + "/" + escaped
		}
		return s.endpoint.Scheme + "://" + s.bucket + "." + s.endpoint.Host + "/" + escaped
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, escaped)
}
