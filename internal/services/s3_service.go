package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/aws/smithy-go/logging"
	"github.com/partimages/backend/internal/config"
	applog "github.com/partimages/backend/internal/logging"
	"go.uber.org/zap"
)

// ObjectStore is the blob storage used by the upload pipeline and the
// download/delete endpoints.
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	Upload(ctx context.Context, bucket, key, localPath, contentType string) error
	PublicURL(bucket, key string) string
	Open(ctx context.Context, bucket, key string) (*Object, error)
	Delete(ctx context.Context, bucket, key string) error
}

// Object is an open object body. The caller closes Body.
type Object struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// s3API is the subset of *s3.Client the service needs.
type s3API interface {
	manager.UploadAPIClient
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Service struct {
	client    s3API
	region    string
	publicURL string
}

func NewS3Service(cfg *config.Config) (*S3Service, error) {
	client, err := buildClient(cfg.ObjectStoreEndpoint(), cfg.MinioRegion, cfg.MinioAccessKey, cfg.MinioSecretKey)
	if err != nil {
		return nil, err
	}
	return newS3Service(client, cfg), nil
}

func newS3Service(client s3API, cfg *config.Config) *S3Service {
	base := cfg.MinioPublicURL
	if base == "" {
		base = cfg.ObjectStoreEndpoint()
	}
	return &S3Service{client: client, region: cfg.MinioRegion, publicURL: base}
}

func buildClient(endpoint, region, key, secret string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")),
		awsconfig.WithLogger(logging.NewStandardLogger(os.Stderr)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load object store config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String(endpoint)
	})
	return client, nil
}

// ObjectKey returns the storage key for a file, namespaced by part number
// when one is given.
func ObjectKey(partNumber, fileName string) string {
	escaped := url.PathEscape(fileName)
	if partNumber == "" {
		return escaped
	}
	return partNumber + "/" + escaped
}

// EnsureBucket creates the bucket in the configured region if it does not exist.
func (s *S3Service) EnsureBucket(ctx context.Context, bucket string) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}

	in := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if s.region != "" && s.region != "us-east-1" {
		in.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, in); err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}

	applog.Info("created bucket", applog.SourceS3, zap.String("bucket", bucket))
	return nil
}

// Upload streams a local file to bucket/key.
func (s *S3Service) Upload(ctx context.Context, bucket, key, localPath, contentType string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	uploader := manager.NewUploader(s.client)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	}, func(u *manager.Uploader) { u.PartSize = 10 * 1024 * 1024 })
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	applog.Debug("uploaded object", applog.SourceS3, zap.String("bucket", bucket), zap.String("key", key))
	return nil
}

// PublicURL builds the object URL. The object is not checked for existence.
func (s *S3Service) PublicURL(bucket, key string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicURL, bucket, key)
}

func (s *S3Service) Open(ctx context.Context, bucket, key string) (*Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return &Object{
		Body:          out.Body,
		ContentType:   aws.ToString(out.ContentType),
		ContentLength: aws.ToInt64(out.ContentLength),
	}, nil
}

func (s *S3Service) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var notFound *s3types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noBucket *s3types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}
