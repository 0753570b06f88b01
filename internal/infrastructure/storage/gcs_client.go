package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"consultchat/pkg/logger"
)

const downloadTokenKey = "firebaseStorageDownloadTokens"

type CloudStorageClient struct {
	client     *storage.Client
	bucketName string
}

func NewCloudStorageClient(ctx context.Context, bucketName string, opts ...option.ClientOption) (*CloudStorageClient, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("storage bucket name is required")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	storageClient := &CloudStorageClient{
		client:     client,
		bucketName: bucketName,
	}

	if err := storageClient.setBucketCORS(ctx); err != nil {
		logger.Warn("Failed to set CORS configuration on bucket %s: %v", bucketName, err)
	}

	return storageClient, nil
}

// setBucketCORS lets browsers fetch attachments directly; it only touches
// buckets that have no CORS rules yet.
func (c *CloudStorageClient) setBucketCORS(ctx context.Context) error {
	bucket := c.client.Bucket(c.bucketName)

	bucketAttrs, err := bucket.Attrs(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bucket attributes: %w", err)
	}

	if len(bucketAttrs.CORS) > 0 {
		return nil
	}

	_, err = bucket.Update(ctx, storage.BucketAttrsToUpdate{
		CORS: []storage.CORS{{
			MaxAge:          3600,
			Methods:         []string{"GET", "HEAD"},
			Origins:         []string{"*"},
			ResponseHeaders: []string{"Content-Type", "Content-Length"},
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to update bucket CORS: %w", err)
	}

	return nil
}

// UploadObject stores content and returns a Firebase-style download URL
// guarded by a random token, so the object can stay private in GCS.
func (c *CloudStorageClient) UploadObject(ctx context.Context, content io.Reader, objectName, contentType string) (string, error) {
	token := uuid.New().String()

	wc := c.client.Bucket(c.bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = "private, max-age=86400"
	wc.Metadata = map[string]string{downloadTokenKey: token}

	if _, err := io.Copy(wc, content); err != nil {
		wc.Close()
		return "", fmt.Errorf("failed to copy file to GCS: %w", err)
	}

	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}

	return DownloadURL(c.bucketName, objectName, token), nil
}

func (c *CloudStorageClient) DeleteObject(ctx context.Context, objectName string) error {
	if err := c.client.Bucket(c.bucketName).Object(objectName).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (c *CloudStorageClient) Close() error {
	return c.client.Close()
}

func DownloadURL(bucket, objectName, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(objectName), url.QueryEscape(token))
}
