package chronicles

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
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()

	// ErrNotFound indicates the chronicle does not exist.
	ErrNotFound = errors.New("chronicles: entry not found")
	// ErrNotModerator indicates the requester lacks the moderator capability.
	ErrNotModerator = errors.New("chronicles: moderator capability required")
	// ErrInvalidTitle indicates a missing title.
	ErrInvalidTitle = errors.New("chronicles: title is required")
)

const (
	opServiceNew = "chronicles.service.new"
	opCreate     = "chronicles.create"
	opUpdate     = "chronicles.update"
	opDelete     = "chronicles.delete"
	opList       = "chronicles.list"
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

// ServiceConfig describes the dependencies of the chronicle service.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider products.IDProvider
	Moderation products.ModeratorChecker
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service owns the moderator-authored changelog.
type Service struct {
	db         *gorm.DB
	idProvider products.IDProvider
	moderation products.ModeratorChecker
	clock      func() time.Time
	logger     *zap.Logger
}

// NewService constructs the chronicle service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
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
		db:         cfg.Database,
		idProvider: cfg.IDProvider,
		moderation: cfg.Moderation,
		clock:      clock,
		logger:     logger,
	}, nil
}

// Create publishes a new chronicle entry. Moderator only.
func (s *Service) Create(ctx context.Context, authorID, title, body string) (Chronicle, error) {
	if err := s.requireModerator(opCreate, authorID); err != nil {
		return Chronicle{}, err
	}
	if strings.TrimSpace(title) == "" {
		return Chronicle{}, newServiceError(opCreate, "missing_title", ErrInvalidTitle)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return Chronicle{}, newServiceError(opCreate, "id_generation_failed", err)
	}

	entry := Chronicle{
		ID:          id,
		AuthorID:    authorID,
		Title:       strings.TrimSpace(title),
		Body:        body,
		PublishedAt: s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.logError(opCreate, "insert_failed", err, zap.String("author_id", authorID))
		return Chronicle{}, newServiceError(opCreate, "insert_failed", err)
	}
	return entry, nil
}

// Update edits an existing entry. Moderator only.
func (s *Service) Update(ctx context.Context, moderatorID, chronicleID, title, body string) (Chronicle, error) {
	if err := s.requireModerator(opUpdate, moderatorID); err != nil {
		return Chronicle{}, err
	}
	if strings.TrimSpace(title) == "" {
		return Chronicle{}, newServiceError(opUpdate, "missing_title", ErrInvalidTitle)
	}

	result := s.db.WithContext(ctx).Model(&Chronicle{}).
		Where("id = ?", chronicleID).
		Updates(map[string]interface{}{
			"title":      strings.TrimSpace(title),
			"body":       body,
			"updated_at": s.clock().UTC(),
		})
	if result.Error != nil {
		s.logError(opUpdate, "update_failed", result.Error, zap.String("chronicle_id", chronicleID))
		return Chronicle{}, newServiceError(opUpdate, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return Chronicle{}, newServiceError(opUpdate, "not_found", ErrNotFound)
	}

	var entry Chronicle
	if err := s.db.WithContext(ctx).Where("id = ?", chronicleID).Take(&entry).Error; err != nil {
		return Chronicle{}, newServiceError(opUpdate, "reload_failed", err)
	}
	return entry, nil
}

// Delete removes an entry. Moderator only.
func (s *Service) Delete(ctx context.Context, moderatorID, chronicleID string) error {
	if err := s.requireModerator(opDelete, moderatorID); err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Where("id = ?", chronicleID).Delete(&Chronicle{})
	if result.Error != nil {
		s.logError(opDelete, "delete_failed", result.Error, zap.String("chronicle_id", chronicleID))
		return newServiceError(opDelete, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(opDelete, "not_found", ErrNotFound)
	}
	return nil
}

// List returns all entries, newest first. Public.
func (s *Service) List(ctx context.Context) ([]Chronicle, error) {
	var entries []Chronicle
	err := s.db.WithContext(ctx).
		Order("published_at DESC").
		Find(&entries).Error
	if err != nil {
		s.logError(opList, "query_failed", err)
		return nil, newServiceError(opList, "query_failed", err)
	}
	return entries, nil
}

func (s *Service) requireModerator(operation, userID string) error {
	if s.moderation == nil {
		return newServiceError(operation, "not_moderator", ErrNotModerator)
	}
	allowed, err := s.moderation.CanModerate(userID)
	if err != nil {
		s.logError(operation, "moderator_check_failed", err, zap.String("user_id", userID))
		return newServiceError(operation, "moderator_check_failed", err)
	}
	if !allowed {
		return newServiceError(operation, "not_moderator", ErrNotModerator)
	}
	return nil
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
	s.logger.Error("chronicle service error", attrs...)
}
