/*
Package storage provides the S3-compatible object storage service used for
doctor avatar images. Browsers upload and fetch avatars directly through
presigned URLs, the server never proxies image bytes.
*/
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
)

const (
	// MaxAvatarSize caps avatar uploads at 2 MiB.
	MaxAvatarSize int64 = 2 << 20

	// UploadURLTTL and DownloadURLTTL bound presigned URL lifetimes.
	UploadURLTTL   = 10 * time.Minute
	DownloadURLTTL = 1 * time.Hour
)

// avatarContentTypes lists the image types accepted for avatars, mapped to
// the object key extension.
var avatarContentTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// Service defines the public interface for the avatar storage service.
type Service interface {
	// PresignUpload generates a pre-signed URL for uploading a file.
	PresignUpload(
		ctx context.Context,
		key string,
		mimeType string,
		fileSize int64,
		duration time.Duration,
	) (string, error)

	// PresignDownload generates a pre-signed URL for downloading a file.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)

	// Delete removes the file specified by the given key.
	Delete(ctx context.Context, key string) error
}

// NewService initializes and returns a concrete implementation based on the
// provided configuration. Only S3-compatible backends are supported.
func NewService(cfg ServiceConfig) (Service, error) {
	return newS3Client(cfg)
}

// AvatarKey builds the object key for a doctor's avatar. Keys are scoped per
// doctor so a profile update overwrites the previous image family and a
// doctor can never write outside their own prefix.
func AvatarKey(doctorID, contentType string) (string, error) {
	ext, ok := avatarContentTypes[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported avatar content type %q", contentType)
	}
	return path.Join("avatars", doctorID, "avatar."+ext), nil
}

// OwnsAvatarKey reports whether the key lives under the doctor's avatar prefix.
func OwnsAvatarKey(doctorID, key string) bool {
	return strings.HasPrefix(key, path.Join("avatars", doctorID)+"/")
}
