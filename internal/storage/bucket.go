// Package storage puts uploaded images into an S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PresignTTL is how long a presigned GET stays valid when no public base
// URL is configured.
const PresignTTL = 7 * 24 * time.Hour

type Options struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Bucket struct {
	name       string
	publicBase string
	client     objectAPI
	presign    func(ctx context.Context, key string) (string, error)
}

// New loads the AWS configuration for opts and returns a Bucket. Static
// credentials are used when both keys are set, otherwise the default
// chain applies.
func New(ctx context.Context, opts Options) (*Bucket, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("internal/storage: bucket name is empty")
	}

	loaders := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("internal/storage: failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	presigner := s3.NewPresignClient(client)
	b := &Bucket{
		name:       opts.Bucket,
		publicBase: strings.TrimRight(opts.PublicBaseURL, "/"),
		client:     client,
	}
	b.presign = func(ctx context.Context, key string) (string, error) {
		req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.name),
			Key:    aws.String(key),
		}, func(po *s3.PresignOptions) {
			po.Expires = PresignTTL
		})
		if err != nil {
			return "", err
		}
		return req.URL, nil
	}

	return b, nil
}

// Upload writes body under key and returns the storage URI of the object.
func (b *Bucket) Upload(ctx context.Context, key, contentType string, body []byte) (string, error) {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.name),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("internal/storage: failed to put %s: %w", key, err)
	}

	return fmt.Sprintf("s3://%s/%s", b.name, key), nil
}

// PublicURL returns a URL browsers can load the object from.
func (b *Bucket) PublicURL(ctx context.Context, key string) (string, error) {
	if b.publicBase != "" {
		return b.publicBase + "/" + escapeKey(key), nil
	}

	u, err := b.presign(ctx, key)
	if err != nil {
		return "", fmt.Errorf("internal/storage: failed to presign %s: %w", key, err)
	}
	return u, nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
