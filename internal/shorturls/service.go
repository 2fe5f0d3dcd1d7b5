package shorturls

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// codeAlphabet excludes visually similar characters (0/O, 1/I/l) so codes
// survive being read aloud or handwritten.
const (
	codeAlphabet       = "23456789ABCDEFGHJKMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz"
	codeLength         = 6
	defaultMaxAttempts = 5
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()

	// ErrNotFound indicates the code resolves to nothing.
	ErrNotFound = errors.New("shorturls: code not found")
	// ErrCodeExhausted indicates repeated collisions exhausted the retry budget.
	ErrCodeExhausted = errors.New("shorturls: could not generate a unique code")
)

const (
	opServiceNew = "shorturls.service.new"
	opEnsure     = "shorturls.ensure"
	opResolve    = "shorturls.resolve"
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

// CodeSource produces candidate short codes.
type CodeSource interface {
	NewCode() (string, error)
}

type randomCodeSource struct{}

// NewRandomCodeSource returns a CodeSource drawing fixed-length codes from
// the unambiguous alphabet using crypto/rand.
func NewRandomCodeSource() CodeSource {
	return randomCodeSource{}
}

func (randomCodeSource) NewCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	var builder strings.Builder
	for _, b := range buf {
		builder.WriteByte(codeAlphabet[int(b)%len(codeAlphabet)])
	}
	return builder.String(), nil
}

// ServiceConfig describes the dependencies of the short-url service.
type ServiceConfig struct {
	Database    *gorm.DB
	Codes       CodeSource
	MaxAttempts int
	Clock       func() time.Time
	Logger      *zap.Logger
}

// Service assigns and resolves shareable short codes for products.
type Service struct {
	db          *gorm.DB
	codes       CodeSource
	maxAttempts int
	clock       func() time.Time
	logger      *zap.Logger
}

// NewService constructs the short-url service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	codes := cfg.Codes
	if codes == nil {
		codes = NewRandomCodeSource()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
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
		db:          cfg.Database,
		codes:       codes,
		maxAttempts: maxAttempts,
		clock:       clock,
		logger:      logger,
	}, nil
}

// Ensure returns the product's short code, creating one if none exists.
// Repeated calls for the same product return the same code. Uniqueness rests
// on the code's primary-key constraint: a collision on insert is retried
// with a freshly generated code up to the attempt budget.
func (s *Service) Ensure(ctx context.Context, productID string) (string, error) {
	var existing ShortURL
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Take(&existing).Error
	if err == nil {
		return existing.Code, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logError(opEnsure, "query_failed", err, zap.String("product_id", productID))
		return "", newServiceError(opEnsure, "query_failed", err)
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		code, err := s.codes.NewCode()
		if err != nil {
			s.logError(opEnsure, "code_generation_failed", err)
			return "", newServiceError(opEnsure, "code_generation_failed", err)
		}

		record := ShortURL{Code: code, ProductID: productID, CreatedAt: s.clock().UTC()}
		err = s.db.WithContext(ctx).Create(&record).Error
		if err == nil {
			return code, nil
		}
		if isUniqueViolation(err) {
			// Another product raced us to this code, or a concurrent call
			// already assigned one to this product.
			var assigned ShortURL
			lookupErr := s.db.WithContext(ctx).
				Where("product_id = ?", productID).
				Take(&assigned).Error
			if lookupErr == nil {
				return assigned.Code, nil
			}
			continue
		}
		s.logError(opEnsure, "insert_failed", err, zap.String("product_id", productID))
		return "", newServiceError(opEnsure, "insert_failed", err)
	}

	s.logError(opEnsure, "attempts_exhausted", ErrCodeExhausted, zap.String("product_id", productID))
	return "", newServiceError(opEnsure, "attempts_exhausted", ErrCodeExhausted)
}

// Resolve maps a code to its product id and counts the click.
func (s *Service) Resolve(ctx context.Context, code string) (string, error) {
	var record ShortURL
	err := s.db.WithContext(ctx).
		Where("code = ?", code).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", newServiceError(opResolve, "not_found", ErrNotFound)
	}
	if err != nil {
		s.logError(opResolve, "query_failed", err, zap.String("code", code))
		return "", newServiceError(opResolve, "query_failed", err)
	}

	if err := s.db.WithContext(ctx).Model(&ShortURL{}).
		Where("code = ?", code).
		Update("click_count", gorm.Expr("click_count + 1")).Error; err != nil {
		// A failed click count does not block the redirect.
		s.logError(opResolve, "click_update_failed", err, zap.String("code", code))
	}

	return record.ProductID, nil
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
	s.logger.Error("short url service error", attrs...)
}
