package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/weiliu/h5client/internal/config"
)

// KeyPrefix is the object key prefix for avatars.
const KeyPrefix = "avatars/"

// S3Uploader writes avatars straight to an S3-compatible bucket.
type S3Uploader struct {
	uploader *manager.Uploader
	bucket   string
	baseURL  string
	newID    func() string
}

// NewS3Uploader configures an uploader targeting the provided object store.
func NewS3Uploader(ctx context.Context, cfg config.ObjectStoreConfig) (*S3Uploader, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 upload: bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	})
	return NewS3UploaderWithClient(client, cfg.Bucket, cfg.PublicBaseURL), nil
}

// NewS3UploaderWithClient wraps an existing S3 API client.
func NewS3UploaderWithClient(client manager.UploadAPIClient, bucket, publicBaseURL string) *S3Uploader {
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = manager.MinUploadPartSize
		u.LeavePartsOnError = false
	})
	return &S3Uploader{
		uploader: uploader,
		bucket:   bucket,
		baseURL:  strings.TrimSuffix(publicBaseURL, "/"),
		newID:    func() string { return uuid.NewString() },
	}
}

// Upload stores the image under avatars/<uuid><ext> and returns its public location.
func (u *S3Uploader) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	data, err := readImage(content)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(path.Ext(filename))
	key := KeyPrefix + u.newID() + ext

	input := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
		ACL:    s3types.ObjectCannedACLPublicRead,
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := u.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("s3 upload %s: %w", key, err)
	}

	if u.baseURL == "" {
		return key, nil
	}
	return u.baseURL + "/" + key, nil
}
