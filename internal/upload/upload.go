package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/weiliu/h5client/internal/api"
)

// MaxImageBytes is the largest avatar accepted for upload.
const MaxImageBytes = 5 << 20

var (
	// ErrImageTooLarge indicates the image exceeds MaxImageBytes.
	ErrImageTooLarge = errors.New("image exceeds 5 MiB")
	// ErrEmptyImage indicates an empty upload.
	ErrEmptyImage = errors.New("image is empty")
)

// Uploader stores an image and returns the URL it can be fetched from.
type Uploader interface {
	Upload(ctx context.Context, filename string, content io.Reader) (string, error)
}

// File uploads the image at path after checking its size on disk.
func File(ctx context.Context, u Uploader, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat image: %w", err)
	}
	if info.Size() > MaxImageBytes {
		return "", ErrImageTooLarge
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	return u.Upload(ctx, filepath.Base(path), f)
}

// readImage buffers content, refusing anything over MaxImageBytes.
func readImage(content io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(content, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, ErrImageTooLarge
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	return data, nil
}

// Doer issues gateway requests. *api.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, req api.Request, out any) api.Result
}

// BackendUploader sends images through the backend's object storage endpoint.
type BackendUploader struct {
	client Doer
}

// NewBackendUploader constructs an uploader on top of the gateway.
func NewBackendUploader(client Doer) *BackendUploader {
	return &BackendUploader{client: client}
}

// Upload posts the image as the multipart field "file".
func (u *BackendUploader) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	data, err := readImage(content)
	if err != nil {
		return "", err
	}

	var location string
	res := u.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/aliyun/oss/upload",
		Files:  []api.FilePart{{Field: "file", Filename: filename, Content: bytes.NewReader(data)}},
	}, &location)
	if err := res.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(location) == "" {
		return "", api.Result{Kind: api.KindApplication, Message: api.MessageRequestFailed}.Err()
	}
	return location, nil
}
