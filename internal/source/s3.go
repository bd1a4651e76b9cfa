package source

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"pb-analyzer/internal/powerbi"
)

// ObjectAPI is the part of the S3 client the source uses.
type ObjectAPI interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type S3Config struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// S3 reads definition pairs stored under a bucket prefix. Works with AWS S3
// and with S3-compatible stores such as MinIO.
type S3 struct {
	api    ObjectAPI
	bucket string
	prefix string
	pairs  map[string]pair
}

// NewS3 builds a client from the default AWS credential chain.
func NewS3(ctx context.Context, cfg S3Config, location string) (*S3, error) {
	bucket, prefix, err := ParseS3URL(location)
	if err != nil {
		return nil, err
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3WithAPI(client, bucket, prefix), nil
}

func NewS3WithAPI(api ObjectAPI, bucket, prefix string) *S3 {
	return &S3{api: api, bucket: bucket, prefix: prefix}
}

// ParseS3URL splits s3://bucket/prefix.
func ParseS3URL(location string) (string, string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("parse s3 location: %w", err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("s3 location %q must look like s3://bucket/prefix", location)
	}
	prefix := strings.TrimPrefix(u.Path, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return u.Host, prefix, nil
}

func (s *S3) Kind() string { return "s3" }

func (s *S3) List(ctx context.Context) ([]Item, error) {
	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || strings.HasSuffix(*obj.Key, "/") {
				continue
			}
			// only the prefix level, like a directory listing
			if strings.Contains(strings.TrimPrefix(*obj.Key, s.prefix), "/") {
				continue
			}
			keys = append(keys, *obj.Key)
		}
	}

	names, pairs := pairKeys(keys, s.prefix)
	s.pairs = pairs
	items := make([]Item, 0, len(names))
	for _, n := range names {
		items = append(items, Item{ID: n, Name: n})
	}
	return items, nil
}

func (s *S3) Fetch(ctx context.Context, item Item) (*powerbi.Definition, error) {
	p, ok := s.pairs[item.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownItem, item.ID)
	}
	schema, err := s.get(ctx, p.schema)
	if err != nil {
		return nil, err
	}
	def := &powerbi.Definition{ReportID: item.ID, Schema: schema}
	if p.exploration != "" {
		if def.Exploration, err = s.get(ctx, p.exploration); err != nil {
			return nil, err
		}
	}
	return def, nil
}

func (s *S3) get(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}
