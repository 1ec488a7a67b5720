// Package objectstore uploads raw attachment and avatar bytes to MinIO and
// hands back a durable URL. For chat attachments that URL is encrypted by
// the client before it ever travels as message content.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type ObjectStore struct {
	client *minio.Client
	cfg    Config
}

func New(ctx context.Context, cfg Config) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio.New: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &ObjectStore{client: client, cfg: cfg}, nil
}

// Upload stores the object under a random key in the given folder and
// returns the durable URL.
func (o *ObjectStore) Upload(ctx context.Context, folder, filename, contentType string, r io.Reader, size int64) (string, error) {
	key := path.Join(folder, uuid.NewString()+path.Ext(filename))

	_, err := o.client.PutObject(ctx, o.cfg.Bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	scheme := "http"
	if o.cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, o.cfg.Endpoint, o.cfg.Bucket, key), nil
}
