package uploads

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type stubUploader struct {
	lastParams uploader.UploadParams
	result     *uploader.UploadResult
	err        error
}

func (s *stubUploader) Upload(_ context.Context, _ interface{}, params uploader.UploadParams) (*uploader.UploadResult, error) {
	s.lastParams = params
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newTestService(t *testing.T, media MediaUploader, maxBytes int64) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{Uploader: media, MaxBytes: maxBytes})
	if err != nil {
		t.Fatalf("failed to construct upload service: %v", err)
	}
	return service
}

func TestValidateAcceptsImageTypes(t *testing.T) {
	service := newTestService(t, nil, 1024)

	for _, contentType := range []string{"image/png", "image/jpeg", "image/webp", "image/gif", " IMAGE/PNG "} {
		if err := service.Validate(contentType, 512); err != nil {
			t.Fatalf("expected %q accepted, got %v", contentType, err)
		}
	}
}

func TestValidateRejectsUnsupportedType(t *testing.T) {
	service := newTestService(t, nil, 1024)

	if err := service.Validate("application/pdf", 512); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected unsupported type, got %v", err)
	}
}

func TestValidateRejectsOversizedFile(t *testing.T) {
	service := newTestService(t, nil, 1024)

	if err := service.Validate("image/png", 2048); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected too large, got %v", err)
	}
}

func TestUploadStoresUnderUserFolder(t *testing.T) {
	media := &stubUploader{result: &uploader.UploadResult{
		SecureURL: "https://cdn.test/vibeboard/user-1/icons/a.png",
		PublicID:  "vibeboard/user-1/icons/a",
	}}
	service := newTestService(t, media, 1024)

	url, err := service.Upload(context.Background(), "user-1", KindIcon, "image/png", 512, strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if url != "https://cdn.test/vibeboard/user-1/icons/a.png" {
		t.Fatalf("unexpected url: %s", url)
	}
	if media.lastParams.Folder != "vibeboard/user-1/icons" {
		t.Fatalf("unexpected folder: %s", media.lastParams.Folder)
	}
}

func TestUploadRejectsUnknownKind(t *testing.T) {
	service := newTestService(t, &stubUploader{}, 1024)

	_, err := service.Upload(context.Background(), "user-1", Kind("posters"), "image/png", 512, strings.NewReader("x"))
	if !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected invalid kind, got %v", err)
	}
}

func TestUploadValidatesBeforeStore(t *testing.T) {
	media := &stubUploader{}
	service := newTestService(t, media, 1024)

	_, err := service.Upload(context.Background(), "user-1", KindBanner, "text/html", 512, strings.NewReader("x"))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected unsupported type, got %v", err)
	}
	if media.lastParams.Folder != "" {
		t.Fatalf("expected no network call for rejected file")
	}
}

func TestUploadWithoutStoreFails(t *testing.T) {
	service := newTestService(t, nil, 1024)

	_, err := service.Upload(context.Background(), "user-1", KindAvatar, "image/png", 512, strings.NewReader("x"))
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}
