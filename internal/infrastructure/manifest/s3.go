package manifest

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/bnema/ealain/internal/application/port"
	"github.com/bnema/ealain/internal/logging"
)

// Manifests are small; anything past this is not a manifest.
const maxManifestSize = 4 * 1024 * 1024

// S3Config points the S3 source at AWS or an S3-compatible endpoint.
// Empty credentials fall back to the default AWS credential chain.
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads a manifest object from a bucket.
type S3Source struct {
	client objectGetter
	bucket string
	key    string
}

// NewS3Source loads AWS configuration and creates a source for bucket/key.
func NewS3Source(ctx context.Context, bucket, key string, cfg S3Config) (*S3Source, error) {
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3Source{client: client, bucket: bucket, key: key}, nil
}

// Fetch reads and parses the manifest object.
func (s *S3Source) Fetch(ctx context.Context) ([]string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: manifest s3://%s/%s: %w", port.ErrTransport, s.bucket, s.key, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxManifestSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read manifest: %w", port.ErrTransport, err)
	}
	if len(data) > maxManifestSize {
		return nil, fmt.Errorf("%w: manifest exceeds %d bytes", port.ErrDecoding, maxManifestSize)
	}

	urls, err := parse(data)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Debug().
		Str("bucket", s.bucket).
		Str("key", s.key).
		Int("images", len(urls)).
		Msg("manifest fetched")
	return urls, nil
}

var _ port.ManifestSource = (*S3Source)(nil)
