package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Category string

const (
	Failed    Category = "failed"
	Processed Category = "processed"
)

// Object describes one archived upload.
type Object struct {
	Key          string    `json:"key"`
	Category     Category  `json:"category"`
	Uploader     string    `json:"uploader"`
	FileName     string    `json:"file_name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	URL          string    `json:"url"`
}

// Archiver keeps a copy of raw uploads.
type Archiver interface {
	Put(ctx context.Context, category Category, uploader, fileName string, body []byte) error
	List(ctx context.Context) ([]Object, error)
}

// Key is the object key for an upload: "<category>/<uploader>_<file name>".
func Key(category Category, uploader, fileName string) string {
	return fmt.Sprintf("%s/%s_%s", category, uploader, fileName)
}

// ParseKey splits a key built by Key. ok is false for foreign keys.
func ParseKey(key string) (category Category, uploader, fileName string, ok bool) {
	cat, rest, found := strings.Cut(key, "/")
	if !found || (Category(cat) != Failed && Category(cat) != Processed) {
		return "", "", "", false
	}
	uploader, fileName, found = strings.Cut(rest, "_")
	if !found {
		return "", "", "", false
	}
	return Category(cat), uploader, fileName, true
}

// S3 archives to a bucket.
type S3 struct {
	client *s3.Client
	bucket string
	region string
}

// NewS3 loads AWS credentials from the default chain.
func NewS3(ctx context.Context, region, bucket string) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3{client: s3.NewFromConfig(cfg), bucket: bucket, region: region}, nil
}

func (a *S3) Put(ctx context.Context, category Category, uploader, fileName string, body []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(Key(category, uploader, fileName)),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (a *S3) List(ctx context.Context) ([]Object, error) {
	var out []Object
	p := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{Bucket: aws.String(a.bucket)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, o := range page.Contents {
			key := aws.ToString(o.Key)
			cat, uploader, name, ok := ParseKey(key)
			if !ok {
				continue
			}
			out = append(out, Object{
				Key:          key,
				Category:     cat,
				Uploader:     uploader,
				FileName:     name,
				Size:         aws.ToInt64(o.Size),
				LastModified: aws.ToTime(o.LastModified),
				URL:          fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", a.bucket, a.region, key),
			})
		}
	}
	return out, nil
}

// Nop discards uploads; used when no bucket is configured.
type Nop struct{}

func (Nop) Put(context.Context, Category, string, string, []byte) error { return nil }
func (Nop) List(context.Context) ([]Object, error)                      { return []Object{}, nil }
