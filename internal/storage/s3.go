package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/gkchatty/gkchatty-local/internal/config"
)

// S3Store implements ObjectStore on Amazon S3. Credentials come from
// the standard AWS chain; the optional key prefix scopes all objects
// under one folder of a shared bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	sse    string
}

// NewS3 creates an S3-backed object store.
func NewS3(ctx context.Context, cfg config.S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &S3Store{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: normalizePrefix(cfg.KeyPrefix),
		sse:    strings.TrimSpace(cfg.SSE),
	}, nil
}

// Put uploads the reader contents to S3 at the given key.
func (s *S3Store) Put(ctx context.Context, key, contentType string, r io.Reader) (int64, string, error) {
	if err := ctx.Err(); err != nil {
		return 0, "", err
	}

	body, finalType, err := sniffContent(r, contentType)
	if err != nil {
		return 0, "", err
	}
	counter := &countingReader{r: body}

	objectKey := applyPrefix(s.prefix, key)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        counter,
		ContentType: aws.String(finalType),
	}
	s.applySSE(input)

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return 0, "", fmt.Errorf("s3 put object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}

	return counter.n, finalType, nil
}

// Get downloads a stored object for reading.
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	objectKey := applyPrefix(s.prefix, key)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 get object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return out.Body, nil
}

// Head returns object metadata without downloading the content.
func (s *S3Store) Head(ctx context.Context, key string) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}

	objectKey := applyPrefix(s.prefix, key)
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return ObjectInfo{}, ErrNotFound
		}
		return ObjectInfo{}, fmt.Errorf("s3 head object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}

	return ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// List returns all objects whose key starts with prefix.
func (s *S3Store) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	listPrefix := applyPrefix(s.prefix, prefix)

	var infos []ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(listPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list objects bucket=%s prefix=%s: %w", s.bucket, listPrefix, err)
		}
		for _, obj := range page.Contents {
			infos = append(infos, ObjectInfo{
				Key:          s.stripPrefix(aws.ToString(obj.Key)),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return infos, nil
}

// Delete removes a stored object. S3 treats deleting a missing key as
// success, matching the local backend.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	objectKey := applyPrefix(s.prefix, key)
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	}); err != nil {
		return fmt.Errorf("s3 delete object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return nil
}

func (s *S3Store) applySSE(input *s3.PutObjectInput) {
	switch {
	case s.sse == "":
	case strings.EqualFold(s.sse, "aes256"):
		input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	default:
		input.ServerSideEncryption = s3types.ServerSideEncryptionAwsKms
		input.SSEKMSKeyId = aws.String(s.sse)
	}
}

func (s *S3Store) stripPrefix(objectKey string) string {
	if s.prefix == "" {
		return objectKey
	}
	return strings.TrimPrefix(objectKey, s.prefix+"/")
}

func isNoSuchKey(err error) bool {
	var noKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound)
}

func normalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

func applyPrefix(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	cleanKey := strings.TrimLeft(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	return cleanPrefix + "/" + cleanKey
}

var _ ObjectStore = (*S3Store)(nil)
