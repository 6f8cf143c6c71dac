package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/rustyeddy/scalper/ledger"
)

const defaultS3Key = "scalper/ledger.json"

// S3Options also covers S3-compatible providers such as MinIO or R2 through
// Endpoint and ForcePathStyle.
type S3Options struct {
	Endpoint       string
	Region         string
	Bucket         string
	Key            string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
}

// S3 keeps the snapshot as a single object.
type S3 struct {
	client *s3.Client
	bucket string
	key    string
}

func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, errors.New("store: s3 bucket is required")
	}
	if opts.Region == "" {
		return nil, errors.New("store: s3 region is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("store: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(normaliseEndpoint(opts.Endpoint))
		}
		o.UsePathStyle = opts.ForcePathStyle
	})

	key := opts.Key
	if key == "" {
		key = defaultS3Key
	}
	return &S3{client: client, bucket: opts.Bucket, key: key}, nil
}

func (s *S3) Load(ctx context.Context) (*ledger.GlobalState, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		if isNotFound(err) {
			return ledger.New(), nil
		}
		return nil, fmt.Errorf("store: s3 get %s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("store: s3 read %s/%s: %w", s.bucket, s.key, err)
	}

	g, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("store: s3 %s/%s: %w", s.bucket, s.key, err)
	}
	return g, nil
}

// Save uploads the whole snapshot with PutObject; readers see either the old
// or the new object.
func (s *S3) Save(ctx context.Context, g *ledger.GlobalState) error {
	data, err := Encode(g)
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("store: s3 put %s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

func (s *S3) Close() error { return nil }

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	// Some S3-compatible providers answer with a bare 404.
	var httpErr interface{ HTTPStatusCode() int }
	return errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == 404
}

func normaliseEndpoint(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		return endpoint
	}
	return "https://" + endpoint
}
