package history

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// S3API is the subset of *s3.Client used by S3Backend.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Backend stores each key as s3://<bucket>/<prefix>/<key>.json.
type S3Backend struct {
	client S3API
	bucket string
	prefix string
}

var _ Backend = (*S3Backend)(nil)

func NewS3Backend(client S3API, bucket, prefix string) *S3Backend {
	return &S3Backend{client: client, bucket: bucket, prefix: prefix}
}

func (b *S3Backend) objectKey(key string) string {
	return path.Join(b.prefix, key+".json")
}

func (b *S3Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	objKey := b.objectKey(key)
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &b.bucket, Key: &objKey,
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("S3 GetObject %s: %w", objKey, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read S3 object %s: %w", objKey, err)
	}
	return data, true, nil
}

func (b *S3Backend) Put(ctx context.Context, key string, value []byte) error {
	objKey := b.objectKey(key)
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &b.bucket,
		Key:         &objKey,
		Body:        bytes.NewReader(value),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject %s: %w", objKey, err)
	}
	log.Debug().Str("bucket", b.bucket).Str("key", objKey).Int("bytes", len(value)).Msg("History written to S3")
	return nil
}
