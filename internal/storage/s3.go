package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Disk.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // MinIO or other S3-compatible endpoint, empty for AWS
	AccessKey string
	SecretKey string
	PublicURL string // optional CDN/public prefix for unsigned URLs
}

// S3Disk stores blobs as objects in a single bucket.
type S3Disk struct {
	name      string
	bucket    string
	publicURL string
	client    S3API
	presigner Presigner
}

var loadAWSConfig = config.LoadDefaultConfig

func NewS3Disk(ctx context.Context, name string, cfg S3Config) (*S3Disk, error) {
	awsCfg, err := loadAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3DiskWithClient(name, cfg, client, s3.NewPresignClient(client)), nil
}

func NewS3DiskWithClient(name string, cfg S3Config, client S3API, presigner Presigner) *S3Disk {
	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		endpoint := strings.TrimRight(cfg.Endpoint, "/")
		if endpoint == "" {
			endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", cfg.Region)
		}
		publicURL = endpoint + "/" + cfg.Bucket
	}
	return &S3Disk{
		name:      name,
		bucket:    cfg.Bucket,
		publicURL: publicURL,
		client:    client,
		presigner: presigner,
	}
}

func (d *S3Disk) Name() string { return d.name }

// Put buffers the body so the SDK gets a seekable reader with a known
// length; uploads are already capped by the media size limit.
func (d *S3Disk) Put(ctx context.Context, p string, r io.Reader, contentType string) (int64, error) {
	key, err := CleanPath(p)
	if err != nil {
		return 0, err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}

	in := &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := d.client.PutObject(ctx, in); err != nil {
		return 0, fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return int64(len(body)), nil
}

func (d *S3Disk) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	key, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return out.Body, nil
}

func (d *S3Disk) Exists(ctx context.Context, p string) (bool, error) {
	key, err := CleanPath(p)
	if err != nil {
		return false, err
	}
	_, err = d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete checks existence first because DeleteObject succeeds for missing keys.
func (d *S3Disk) Delete(ctx context.Context, p string) (bool, error) {
	exists, err := d.Exists(ctx, p)
	if err != nil || !exists {
		return false, err
	}
	key, _ := CleanPath(p)
	if _, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return false, fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return true, nil
}

func (d *S3Disk) URL(p string) string {
	return d.publicURL + "/" + escapePath(p)
}

func (d *S3Disk) SignedURL(ctx context.Context, p string, expiresAt time.Time) (string, error) {
	key, err := CleanPath(p)
	if err != nil {
		return "", err
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return "", ErrSignatureExpired
	}
	req, err := d.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}

func (d *S3Disk) Path(string) (string, error) {
	return "", ErrNotLocal
}

func (d *S3Disk) List(ctx context.Context, prefix string) ([]Object, error) {
	in := &s3.ListObjectsV2Input{Bucket: aws.String(d.bucket)}
	if prefix != "" {
		cleaned, err := CleanPath(prefix)
		if err != nil {
			return nil, err
		}
		in.Prefix = aws.String(cleaned + "/")
	}

	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(d.client, in)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, Object{
				Path:    aws.ToString(obj.Key),
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
