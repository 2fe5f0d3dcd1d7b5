package votes

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

	// ErrPolicyDenied indicates an un-vote hit an existing row that the
	// storage policy refused to delete.
	ErrPolicyDenied = errors.New("votes: delete blocked by access policy; check the row security rules on the votes table")
	// ErrProductNotFound indicates a vote against an unknown product.
	ErrProductNotFound = errors.New("votes: product not found")
)

const (
	opServiceNew = "votes.service.new"
	opToggle     = "votes.toggle"
	opListMine   = "votes.list_mine"
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

// ServiceConfig describes the dependencies of the vote service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Changes  products.ChangePublisher
	Logger   *zap.Logger
}

// Service owns the one-vote-per-user toggle and its denormalized count.
type Service struct {
	db      *gorm.DB
	clock   func() time.Time
	changes products.ChangePublisher
	logger  *zap.Logger
}

// NewService constructs the vote service.
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
		db:      cfg.Database,
		clock:   clock,
		changes: cfg.Changes,
		logger:  logger,
	}, nil
}

// ToggleResult reports the authoritative state after a toggle settles.
type ToggleResult struct {
	Voted     bool
	VoteCount int64
}

// Toggle flips the user's vote based on the vote state the client currently
// holds: voting inserts a row and bumps the count, un-voting deletes the row
// and drops it. A delete that affects zero rows while the row exists means
// the storage policy blocked it, which is reported rather than treated as
// already-removed. Both writes happen in one transaction.
func (s *Service) Toggle(ctx context.Context, productID, userID string, hasVoted bool) (ToggleResult, error) {
	result := ToggleResult{}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product products.Product
		err := tx.Where("id = ?", productID).Take(&product).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opToggle, "product_not_found", ErrProductNotFound)
		}
		if err != nil {
			return newServiceError(opToggle, "product_query_failed", err)
		}

		if hasVoted {
			deletion := tx.Where("product_id = ? AND user_id = ?", productID, userID).Delete(&Vote{})
			if deletion.Error != nil {
				return newServiceError(opToggle, "delete_failed", deletion.Error)
			}
			if deletion.RowsAffected == 0 {
				var existing int64
				if err := tx.Model(&Vote{}).
					Where("product_id = ? AND user_id = ?", productID, userID).
					Count(&existing).Error; err != nil {
					return newServiceError(opToggle, "count_failed", err)
				}
				if existing > 0 {
					return newServiceError(opToggle, "policy_denied", ErrPolicyDenied)
				}
				// Row was already gone; the count is authoritative as is.
				result.Voted = false
				result.VoteCount = product.VoteCount
				return nil
			}
			if err := tx.Model(&products.Product{}).
				Where("id = ?", productID).
				Update("vote_count", gorm.Expr("vote_count - 1")).Error; err != nil {
				return newServiceError(opToggle, "count_update_failed", err)
			}
			result.Voted = false
			result.VoteCount = product.VoteCount - 1
			return nil
		}

		vote := Vote{ProductID: productID, UserID: userID, CreatedAt: s.clock().UTC()}
		if err := tx.Create(&vote).Error; err != nil {
			if isUniqueViolation(err) {
				// Another tab already voted; leave the row and count alone.
				result.Voted = true
				result.VoteCount = product.VoteCount
				return nil
			}
			return newServiceError(opToggle, "insert_failed", err)
		}
		if err := tx.Model(&products.Product{}).
			Where("id = ?", productID).
			Update("vote_count", gorm.Expr("vote_count + 1")).Error; err != nil {
			return newServiceError(opToggle, "count_update_failed", err)
		}
		result.Voted = true
		result.VoteCount = product.VoteCount + 1
		return nil
	})
	if txErr != nil {
		s.logError(opToggle, txErr,
			zap.String("product_id", productID),
			zap.String("user_id", userID))
		return ToggleResult{}, txErr
	}

	if s.changes != nil {
		s.changes.PublishProductChange(productID)
	}
	return result, nil
}

// ListMine returns the ids of products the user has voted for.
func (s *Service) ListMine(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&Vote{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Pluck("product_id", &ids).Error
	if err != nil {
		s.logError(opListMine, err, zap.String("user_id", userID))
		return nil, newServiceError(opListMine, "query_failed", err)
	}
	return ids, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Service) logError(operation string, err error, fields ...zap.Field) {
	attrs := []zap.Field{zap.String("operation", operation)}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("vote service error", attrs...)
}
