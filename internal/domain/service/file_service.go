package service

import (
	"context"
	"io"
)

// FileUploadService stores chat attachments in blob storage.
type FileUploadService interface {
	// UploadObject writes content under objectName and returns a URL the
	// conversation participants can fetch.
	UploadObject(ctx context.Context, content io.Reader, objectName, contentType string) (string, error)
	DeleteObject(ctx context.Context, objectName string) error
	Close() error
}
