package artifacts

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps audio artifacts in an S3 bucket and addresses them by
// public object URL.
type S3Store struct {
	bucket string
	region string
	client S3API
	prefix string
}

// NewS3Store builds an S3-backed artifact store. prefix namespaces the
// object keys (e.g. "audio").
func NewS3Store(client S3API, bucket, region, prefix string) (*S3Store, error) {
	if client == nil {
		return nil, fmt.Errorf("artifacts: s3 client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("artifacts: s3 bucket is required")
	}
	if prefix == "" {
		prefix = "audio"
	}
	return &S3Store{bucket: bucket, region: region, client: client, prefix: prefix}, nil
}

// Put uploads data under a uniquified key and returns its reference.
func (s *S3Store) Put(ctx context.Context, name, contentType string, data []byte) (Ref, error) {
	key := s.prefix + "/" + uniqueName(name)
	if contentType == "" {
		contentType = "audio/wav"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return Ref{}, fmt.Errorf("artifacts: s3 put %s: %w", key, err)
	}

	return Ref{
		Name: key,
		URL:  fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key),
	}, nil
}
