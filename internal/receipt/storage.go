package receipt

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/notification"
)

// ObjectStoreConfig holds connection settings for an S3-compatible content store
type ObjectStoreConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ObjectStore is the content store holding uploaded receipt files. It works
// against AWS S3 or MinIO.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

// NewObjectStore creates a new ObjectStore client
func NewObjectStore(cfg ObjectStoreConfig) (*ObjectStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	// Static keys when given, otherwise the usual AWS env / IAM chain
	creds := credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvAWS{},
		&credentials.IAM{Client: &http.Client{Transport: http.DefaultTransport}},
	})
	if cfg.AccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object store client: %w", err)
	}

	return &ObjectStore{client: client, bucket: cfg.Bucket}, nil
}

// Bucket returns the name of the upload bucket
func (s *ObjectStore) Bucket() string {
	return s.bucket
}

// PresignPut returns a URL allowing a single PUT of objectName with the given
// Content-Type. The content type is part of the signature.
func (s *ObjectStore) PresignPut(ctx context.Context, objectName, contentType string, expiry time.Duration) (string, error) {
	headers := http.Header{}
	headers.Set("Content-Type", contentType)

	u, err := s.client.PresignHeader(ctx, http.MethodPut, s.bucket, objectName, expiry, nil, headers)
	if err != nil {
		return "", fmt.Errorf("presigning put: %w", err)
	}
	return u.String(), nil
}

// Fetch downloads an object and returns its bytes and content type
func (s *ObjectStore) Fetch(ctx context.Context, bucket, key string) ([]byte, string, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("getting object: %w", err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, "", fmt.Errorf("stat object: %w", err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", fmt.Errorf("reading object: %w", err)
	}
	return data, info.ContentType, nil
}

// Listen subscribes to object-created notifications under prefix. Only MinIO
// supports this; AWS S3 delivers events through the webhook endpoint instead.
func (s *ObjectStore) Listen(ctx context.Context, prefix string) <-chan notification.Info {
	return s.client.ListenBucketNotification(ctx, s.bucket, prefix, "", []string{
		string(notification.ObjectCreatedAll),
	})
}
