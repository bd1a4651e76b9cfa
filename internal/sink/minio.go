package sink

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Prefix    string `mapstructure:"prefix"`
}

// Uploader copies output files into an object store bucket.
type Uploader struct {
	mc     *minio.Client
	bucket string
	prefix string
}

func NewUploader(cfg MinIOConfig) (*Uploader, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Uploader{mc: mc, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (u *Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.mc.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := u.mc.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

// ObjectName places a local file under prefix/runID/.
func ObjectName(prefix, runID, localPath string) string {
	return path.Join(prefix, runID, filepath.Base(localPath))
}

// UploadFiles uploads each file under prefix/runID/ and returns the object
// names.
func (u *Uploader) UploadFiles(ctx context.Context, runID string, paths ...string) ([]string, error) {
	if err := u.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(paths))
	for _, p := range paths {
		name := ObjectName(u.prefix, runID, p)
		if err := u.upload(ctx, name, p); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}

func (u *Uploader) upload(ctx context.Context, name, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}

	_, err = u.mc.PutObject(ctx, u.bucket, name, f, info.Size(), minio.PutObjectOptions{
		ContentType: contentType(localPath),
	})
	if err != nil {
		return fmt.Errorf("upload file: %w", err)
	}
	return nil
}

func contentType(p string) string {
	switch filepath.Ext(p) {
	case ".csv":
		return "text/csv"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
