package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"trail-go/internal/trail"
)

// S3Options configures an S3Store. Endpoint and UsePathStyle are for
// S3-compatible services (MinIO, R2); leave them empty for AWS.
type S3Options struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	PublicBaseURL   string
}

// S3Store stores objects in an S3 bucket under an optional key prefix.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	opts     S3Options
}

// NewS3Store builds a client from the default AWS credential chain, or from
// static credentials when both keys are set.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 bucket required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
		// Checksums only when the operation requires them; several
		// S3-compatible services reject the default trailing checksums.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		opts:     opts,
	}, nil
}

func (s *S3Store) objectKey(key string) string {
	if s.opts.Prefix == "" {
		return key
	}
	return path.Join(s.opts.Prefix, key)
}

// Put uploads through the multipart manager, which falls back to a single
// PutObject for small bodies.
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.opts.Bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          r,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", s.opts.Bucket, s.objectKey(key), err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string, w io.Writer) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("getting s3://%s/%s: %w", s.opts.Bucket, s.objectKey(key), err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading s3 object: %w", err)
	}
	return nil
}

// PublicURL prefers the configured base URL, then the custom endpoint, then
// the virtual-hosted AWS URL.
func (s *S3Store) PublicURL(key string) string {
	full := s.objectKey(key)
	switch {
	case s.opts.PublicBaseURL != "":
		return joinURL(s.opts.PublicBaseURL, full)
	case s.opts.Endpoint != "":
		return joinURL(strings.TrimRight(s.opts.Endpoint, "/")+"/"+s.opts.Bucket, full)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.opts.Bucket, s.opts.Region, full)
	}
}

// ValidateSetup checks the bucket exists and the credentials can reach it.
func (s *S3Store) ValidateSetup(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.opts.Bucket)})
	if err != nil {
		return fmt.Errorf("s3 bucket %s not accessible: %w", s.opts.Bucket, err)
	}
	return nil
}

var _ trail.ObjectStore = (*S3Store)(nil)
