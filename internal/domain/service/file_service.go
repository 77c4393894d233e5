package service

import (
	"context"
	"io"
)

// FileUploadService stores attachment blobs and returns their public URL.
type FileUploadService interface {
	UploadFile(ctx context.Context, file io.Reader, contentType, folder string) (string, error)
	DeleteFile(ctx context.Context, fileURL string) error
}
