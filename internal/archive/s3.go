// Package archive stores raw fetched bundles in S3-compatible object
// storage for later replay and parser debugging.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/annfeed/internal/fetch"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Config addresses the bucket bundles are written to.
type S3Config struct {
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
}

// PutObjectAPI is the part of *s3.Client the sink uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds a path-style client suitable for MinIO as well as AWS.
func NewS3Client(ctx context.Context, c S3Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")))
	}
	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
		}
		o.UsePathStyle = true
	}), nil
}

type S3Sink struct {
	client PutObjectAPI
	bucket string
	now    func() time.Time
	newID  func() uuid.UUID
}

func NewS3Sink(client PutObjectAPI, bucket string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, now: time.Now, newID: uuid.New}
}

type document struct {
	FetchedAt time.Time     `json:"fetched_at"`
	Bundle    *fetch.Bundle `json:"bundle"`
	Canonical *fetch.Bundle `json:"canonical,omitempty"`
}

// Key returns the object key of a bundle fetched at t.
func Key(game, language string, t time.Time, id uuid.UUID) string {
	t = t.UTC()
	return fmt.Sprintf("bundles/%s/%s/%04d/%02d/%02d/%s.json",
		game, language, t.Year(), t.Month(), t.Day(), id)
}

// Archive writes b, and its canonical rendering when that is a separate
// fetch, as one JSON object.
func (s *S3Sink) Archive(ctx context.Context, b *fetch.Bundle) error {
	now := s.now()
	doc := document{FetchedAt: now, Bundle: b}
	if b.Canonical != nil && b.Canonical != b {
		doc.Canonical = b.Canonical
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}

	key := Key(b.Game, b.Language, now, s.newID())
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
