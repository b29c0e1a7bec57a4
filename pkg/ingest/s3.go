package ingest

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/osbuild/ibmetrics/pkg/dataset"
)

// S3Config describes where the hosted data drops live.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // non-empty for MinIO or other S3-compatible stores
	AccessKey string
	SecretKey string
}

// S3Source fetches dump objects from an S3 bucket.
type S3Source struct {
	client *s3.Client
	bucket string
	log    *logrus.Logger
}

// NewS3Source builds an S3 source. With empty credentials the default AWS
// credential chain is used.
func NewS3Source(ctx context.Context, cfg S3Config, log *logrus.Logger) (*S3Source, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Source{client: client, bucket: cfg.Bucket, log: log}, nil
}

// Load fetches the dump object at key and parses it.
func (s *S3Source) Load(ctx context.Context, key string) (dataset.Dataset, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	s.log.WithFields(logrus.Fields{"bucket": s.bucket, "key": key}).Info("fetched dump from S3")
	return ReadDump(out.Body, s.log)
}
