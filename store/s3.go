package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads each record to s3://bucket/prefix/<id>.json.
type S3Sink struct {
	bucket string
	prefix string
	s3     s3Putter
}

func NewS3Sink(s3Client s3Putter, bucket, prefix string) *S3Sink {
	return &S3Sink{
		bucket: bucket,
		prefix: prefix,
		s3:     s3Client,
	}
}

func (s *S3Sink) Key(id string) string {
	return path.Join(s.prefix, id+".json")
}

func (s *S3Sink) Save(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("s3 sink: marshal: %w", err)
	}

	_, err = s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.Key(rec.ID)),
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put result object to S3: %w", err)
	}
	return nil
}
