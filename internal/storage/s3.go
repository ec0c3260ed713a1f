package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/CollComm/werewolf-sign/internal/models"
)

// S3Config contains minimal configuration for creating an S3 client.
// Empty values fall back to the standard AWS config chain.
type S3Config struct {
	Region       string
	UsePathStyle bool
}

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source fetches videos stored in S3 into staging
type S3Source struct {
	client objectGetter
}

// NewS3Source creates an S3Source using the default AWS configuration chain
func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3Source{client: client}, nil
}

// IsS3URI reports whether ref names an S3 object
func IsS3URI(ref string) bool {
	return strings.HasPrefix(ref, "s3://")
}

// ParseS3URI splits s3://bucket/key into its parts
func ParseS3URI(ref string) (bucket, key string, err error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", "", fmt.Errorf("invalid S3 URI %q: %w", ref, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid S3 URI %q: expected s3://bucket/key", ref)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("invalid S3 URI %q: missing object key", ref)
	}
	return u.Host, key, nil
}

// Fetch streams the object at ref into staging
func (s *S3Source) Fetch(ctx context.Context, ref string, staging *Staging) (models.VideoUpload, error) {
	bucket, key, err := ParseS3URI(ref)
	if err != nil {
		return models.VideoUpload{}, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return models.VideoUpload{}, models.NewPipelineError("fetch", models.ErrUploadMissing, err)
		}
		return models.VideoUpload{}, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	return staging.Save(out.Body, path.Base(key))
}
