package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vibeboardhq/vibeboard/backend/internal/products"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()

	// ErrNotFound indicates no profile row and no proxy submissions match.
	ErrNotFound = errors.New("profiles: maker not found")
	// ErrUsernameTaken indicates the requested username collides with
	// another maker; surfaced to users as "already taken".
	ErrUsernameTaken = errors.New("profiles: username already taken")
	// ErrInvalidUsername indicates an empty or over-long username.
	ErrInvalidUsername = errors.New("profiles: invalid username")
)

const (
	opServiceNew = "profiles.service.new"
	opUpsert     = "profiles.upsert"
	opGet        = "profiles.get"
	opFeature    = "profiles.feature_product"
)

// ServiceError wraps failures with a dotted operation code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ProductGate decides whether a user may attach a product to their profile.
type ProductGate interface {
	CanEdit(ctx context.Context, userID products.UserID, productID products.ProductID) error
}

// ServiceConfig describes the dependencies of the profile service.
type ServiceConfig struct {
	Database *gorm.DB
	Gate     ProductGate
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service owns maker profiles, including the virtual ones synthesized from
// proxy submissions.
type Service struct {
	db     *gorm.DB
	gate   ProductGate
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the profile service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:     cfg.Database,
		gate:   cfg.Gate,
		clock:  clock,
		logger: logger,
	}, nil
}

// UpsertRequest carries the editable profile fields.
type UpsertRequest struct {
	Username      string
	Bio           string
	AvatarURL     string
	WebsiteURL    string
	TwitterHandle string
	GitHubHandle  string
	InvitedBy     string
}

// Upsert creates or updates the caller's own profile. A username collision
// with a different maker is reported as taken rather than as a raw
// constraint failure.
func (s *Service) Upsert(ctx context.Context, userID string, req UpsertRequest) (Profile, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || len(username) > 64 {
		return Profile{}, newServiceError(opUpsert, "invalid_username", ErrInvalidUsername)
	}

	var holder MakerProfile
	err := s.db.WithContext(ctx).
		Where("username = ? AND user_id <> ?", username, userID).
		Take(&holder).Error
	if err == nil {
		return Profile{}, newServiceError(opUpsert, "username_taken", ErrUsernameTaken)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logError(opUpsert, "username_query_failed", err, zap.String("user_id", userID))
		return Profile{}, newServiceError(opUpsert, "username_query_failed", err)
	}

	record := MakerProfile{
		UserID:        userID,
		Username:      username,
		Bio:           req.Bio,
		AvatarURL:     req.AvatarURL,
		WebsiteURL:    req.WebsiteURL,
		TwitterHandle: req.TwitterHandle,
		GitHubHandle:  req.GitHubHandle,
		InvitedBy:     req.InvitedBy,
		CreatedAt:     s.clock().UTC(),
		UpdatedAt:     s.clock().UTC(),
	}
	var existing MakerProfile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&existing).Error; err == nil {
		record.CreatedAt = existing.CreatedAt
		record.FeaturedProductID = existing.FeaturedProductID
	}
	err = s.db.WithContext(ctx).Save(&record).Error
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a race on the unique index between the check and the write.
			return Profile{}, newServiceError(opUpsert, "username_taken", ErrUsernameTaken)
		}
		s.logError(opUpsert, "save_failed", err, zap.String("user_id", userID))
		return Profile{}, newServiceError(opUpsert, "save_failed", err)
	}

	return fromRecord(record), nil
}

// GetByUsername resolves a maker profile. When no row exists, a virtual
// profile is synthesized from proxy submissions bearing that creator name;
// nothing is written.
func (s *Service) GetByUsername(ctx context.Context, username string) (Profile, error) {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return Profile{}, newServiceError(opGet, "invalid_username", ErrInvalidUsername)
	}

	var record MakerProfile
	err := s.db.WithContext(ctx).
		Where("username = ?", trimmed).
		Take(&record).Error
	if err == nil {
		return fromRecord(record), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logError(opGet, "query_failed", err, zap.String("username", trimmed))
		return Profile{}, newServiceError(opGet, "query_failed", err)
	}

	var proxy products.Product
	err = s.db.WithContext(ctx).
		Where("proxy_creator_name = ?", trimmed).
		Order("created_at ASC").
		Take(&proxy).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{}, newServiceError(opGet, "not_found", ErrNotFound)
	}
	if err != nil {
		s.logError(opGet, "proxy_query_failed", err, zap.String("username", trimmed))
		return Profile{}, newServiceError(opGet, "proxy_query_failed", err)
	}

	return Profile{
		Username:  trimmed,
		AvatarURL: proxy.ProxyCreatorAvatarURL,
		Virtual:   true,
	}, nil
}

// GetByUserID returns the stored profile for a user id.
func (s *Service) GetByUserID(ctx context.Context, userID string) (Profile, error) {
	var record MakerProfile
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{}, newServiceError(opGet, "not_found", ErrNotFound)
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.String("user_id", userID))
		return Profile{}, newServiceError(opGet, "query_failed", err)
	}
	return fromRecord(record), nil
}

// FeatureProduct pins one of the caller's products on their profile. The
// caller must be able to edit the product.
func (s *Service) FeatureProduct(ctx context.Context, userID, productID string) error {
	if s.gate != nil {
		uid, err := products.NewUserID(userID)
		if err != nil {
			return newServiceError(opFeature, "invalid_user_id", err)
		}
		pid, err := products.NewProductID(productID)
		if err != nil {
			return newServiceError(opFeature, "invalid_product_id", err)
		}
		if err := s.gate.CanEdit(ctx, uid, pid); err != nil {
			return err
		}
	}

	result := s.db.WithContext(ctx).Model(&MakerProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"featured_product_id": productID,
			"updated_at":          s.clock().UTC(),
		})
	if result.Error != nil {
		s.logError(opFeature, "update_failed", result.Error, zap.String("user_id", userID))
		return newServiceError(opFeature, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(opFeature, "not_found", ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("profile service error", attrs...)
}
