package source

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3Getter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Loader reads a preset file from an S3 object.
type S3Loader struct {
	bucket string
	key    string
	s3     s3Getter
}

func NewS3Loader(s3Client s3Getter, bucket, key string) *S3Loader {
	return &S3Loader{
		bucket: bucket,
		key:    key,
		s3:     s3Client,
	}
}

func (s *S3Loader) Load(ctx context.Context) ([]byte, error) {
	resp, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get presets object s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (s *S3Loader) Name() string { return s.key }
