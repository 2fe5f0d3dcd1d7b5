// Package uploads validates image files client-side of the media store and
// pushes accepted ones to Cloudinary, organized per uploading user.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/zap"
)

const defaultMaxBytes = 5 << 20

var (
	noOpLogger = zap.NewNop()

	// ErrUnsupportedType indicates a MIME type outside the accepted image set.
	ErrUnsupportedType = errors.New("uploads: unsupported file type")
	// ErrTooLarge indicates the file exceeds the configured size cap.
	ErrTooLarge = errors.New("uploads: file exceeds size limit")
	// ErrInvalidKind indicates an unknown upload kind.
	ErrInvalidKind = errors.New("uploads: invalid upload kind")
	// ErrNotConfigured indicates no media store credentials were provided.
	ErrNotConfigured = errors.New("uploads: media store not configured")
)

// Kind buckets uploads into per-purpose folders.
type Kind string

const (
	KindBanner     Kind = "banners"
	KindIcon       Kind = "icons"
	KindAvatar     Kind = "avatars"
	KindScreenshot Kind = "screenshots"
)

var acceptedTypes = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/webp": {},
	"image/gif":  {},
}

// MediaUploader is the slice of the Cloudinary upload API the service uses.
type MediaUploader interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

type cloudinaryUploader struct {
	client *cloudinary.Cloudinary
}

func (c cloudinaryUploader) Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error) {
	return c.client.Upload.Upload(ctx, file, params)
}

// ServiceConfig describes the dependencies of the upload service.
type ServiceConfig struct {
	CloudinaryURL string
	Uploader      MediaUploader
	MaxBytes      int64
	Logger        *zap.Logger
}

// Service validates and stores image uploads.
type Service struct {
	uploader MediaUploader
	maxBytes int64
	logger   *zap.Logger
}

// NewService constructs the upload service. An explicit Uploader takes
// precedence over the Cloudinary URL; with neither, uploads fail with
// ErrNotConfigured but validation still works.
func NewService(cfg ServiceConfig) (*Service, error) {
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	media := cfg.Uploader
	if media == nil && strings.TrimSpace(cfg.CloudinaryURL) != "" {
		client, err := cloudinary.NewFromURL(cfg.CloudinaryURL)
		if err != nil {
			return nil, fmt.Errorf("uploads: cloudinary init: %w", err)
		}
		media = cloudinaryUploader{client: client}
	}

	return &Service{
		uploader: media,
		maxBytes: maxBytes,
		logger:   logger,
	}, nil
}

// Validate rejects unsupported MIME types and oversized files before any
// network call is made.
func (s *Service) Validate(contentType string, size int64) error {
	normalized := strings.ToLower(strings.TrimSpace(contentType))
	if _, ok := acceptedTypes[normalized]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	if size > s.maxBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, size, s.maxBytes)
	}
	return nil
}

// Upload validates and stores one image, returning its public URL. Files are
// organized under vibeboard/<userID>/<kind>.
func (s *Service) Upload(ctx context.Context, userID string, kind Kind, contentType string, size int64, file io.Reader) (string, error) {
	switch kind {
	case KindBanner, KindIcon, KindAvatar, KindScreenshot:
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}
	if err := s.Validate(contentType, size); err != nil {
		return "", err
	}
	if s.uploader == nil {
		return "", ErrNotConfigured
	}

	folder := fmt.Sprintf("vibeboard/%s/%s", userID, kind)
	result, err := s.uploader.Upload(ctx, file, uploader.UploadParams{Folder: folder})
	if err != nil {
		s.logger.Error("upload failed",
			zap.String("user_id", userID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return "", fmt.Errorf("uploads: store failed: %w", err)
	}

	s.logger.Info("upload stored",
		zap.String("user_id", userID),
		zap.String("kind", string(kind)),
		zap.String("public_id", result.PublicID))
	return result.SecureURL, nil
}
