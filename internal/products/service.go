package products

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew       = "products.service.new"
	opSubmit           = "products.submit"
	opList             = "products.list"
	opGet              = "products.get"
	opListMine         = "products.list_mine"
	opUpdate           = "products.update"
	opRequestClaim     = "products.claim.request"
	opApproveClaim     = "products.claim.approve"
	opRejectClaim      = "products.claim.reject"
	opVibe             = "products.vibe"
	opSetFeatured      = "products.set_featured"
	opAddScreenshot    = "products.screenshots.add"
	opListScreenshots  = "products.screenshots.list"
	opRemoveScreenshot = "products.screenshots.remove"
)

// IDProvider issues identifiers for new records.
type IDProvider interface {
	NewID() (string, error)
}

// ModeratorChecker reports whether a user holds the moderator capability.
type ModeratorChecker interface {
	CanModerate(userID string) (bool, error)
}

// ChangePublisher receives the ids of products whose rows changed.
type ChangePublisher interface {
	PublishProductChange(productIDs ...string)
}

// ServiceConfig describes the dependencies of the product service.
type ServiceConfig struct {
	Database    *gorm.DB
	Clock       func() time.Time
	IDProvider  IDProvider
	Moderation  ModeratorChecker
	Changes     ChangePublisher
	ListTimeout time.Duration
	Logger      *zap.Logger
}

// Service owns product submission, editing, claims and screenshots.
type Service struct {
	db          *gorm.DB
	clock       func() time.Time
	idProvider  IDProvider
	moderation  ModeratorChecker
	changes     ChangePublisher
	listTimeout time.Duration
	logger      *zap.Logger
}

// NewService constructs the product service.
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
		db:          cfg.Database,
		clock:       clock,
		idProvider:  cfg.IDProvider,
		moderation:  cfg.Moderation,
		changes:     cfg.Changes,
		listTimeout: cfg.ListTimeout,
		logger:      logger,
	}, nil
}

// SubmitRequest carries the fields for a new product submission.
type SubmitRequest struct {
	Name                  string
	Tagline               string
	Description           string
	URL                   string
	IconURL               string
	BannerURL             string
	DemoURL               string
	VideoURL              string
	Tools                 string
	BuildTime             string
	Category              string
	ProxyCreatorName      string
	ProxyCreatorAvatarURL string
}

// Submit creates a product record owned by nobody and submitted by userID.
// A proxy creator name marks the product as submitted on behalf of an
// unregistered maker.
func (s *Service) Submit(ctx context.Context, userID UserID, req SubmitRequest) (Product, error) {
	if req.Name == "" {
		return Product{}, newServiceError(opSubmit, "missing_name", ErrInvalidName)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opSubmit, "id_generation_failed", err)
		return Product{}, newServiceError(opSubmit, "id_generation_failed", err)
	}

	product := Product{
		ID:                    id,
		Name:                  req.Name,
		Tagline:               req.Tagline,
		Description:           req.Description,
		URL:                   req.URL,
		IconURL:               req.IconURL,
		BannerURL:             req.BannerURL,
		DemoURL:               req.DemoURL,
		VideoURL:              req.VideoURL,
		Tools:                 req.Tools,
		BuildTime:             req.BuildTime,
		Category:              req.Category,
		SubmitterID:           userID.String(),
		ProxyCreatorName:      req.ProxyCreatorName,
		ProxyCreatorAvatarURL: req.ProxyCreatorAvatarURL,
		ClaimStatus:           ClaimStatusNone,
		CreatedAt:             s.clock().UTC(),
		UpdatedAt:             s.clock().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&product).Error; err != nil {
		s.logError(opSubmit, "insert_failed", err, zap.String("user_id", userID.String()))
		return Product{}, newServiceError(opSubmit, "insert_failed", err)
	}

	s.publishChange(product.ID)
	return product, nil
}

// List returns all products ordered by vote count. The read is bounded by
// the configured timeout so a slow backend cannot hang the directory page.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	if s.listTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.listTimeout)
		defer cancel()
	}

	var items []Product
	err := s.db.WithContext(ctx).
		Order("vote_count DESC, created_at DESC").
		Find(&items).Error
	if err != nil {
		s.logError(opList, "query_failed", err)
		return nil, newServiceError(opList, "query_failed", err)
	}
	return items, nil
}

// Get returns one product by id.
func (s *Service) Get(ctx context.Context, productID ProductID) (Product, error) {
	var product Product
	err := s.db.WithContext(ctx).
		Where("id = ?", productID.String()).
		Take(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Product{}, newServiceError(opGet, "not_found", ErrNotFound)
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.String("product_id", productID.String()))
		return Product{}, newServiceError(opGet, "query_failed", err)
	}
	return product, nil
}

// ListMine returns products the user submitted or owns.
func (s *Service) ListMine(ctx context.Context, userID UserID) ([]Product, error) {
	var items []Product
	err := s.db.WithContext(ctx).
		Where("submitter_id = ? OR owner_id = ?", userID.String(), userID.String()).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		s.logError(opListMine, "query_failed", err, zap.String("user_id", userID.String()))
		return nil, newServiceError(opListMine, "query_failed", err)
	}
	return items, nil
}

// CanEdit decides whether the user may mutate the product: the original
// submitter always may, and the verified owner may once a claim is approved.
// The predicate is evaluated before any mutation so a denial never costs an
// extra round trip, and each denial reason has its own error.
func (s *Service) CanEdit(ctx context.Context, userID UserID, productID ProductID) error {
	product, err := s.Get(ctx, productID)
	if err != nil {
		return err
	}
	if product.SubmitterID == userID.String() {
		return nil
	}
	if product.ClaimStatus == ClaimStatusVerified && product.Owner() == userID.String() {
		return nil
	}
	return newServiceError(opUpdate, "not_owner", ErrNotOwner)
}

// Update applies a field patch gated by CanEdit. A zero-row result after the
// predicate passed means the storage policy disagrees with the application
// rule; that is reported as a policy error rather than swallowed.
func (s *Service) Update(ctx context.Context, userID UserID, productID ProductID, patch Patch) (Product, error) {
	if err := s.CanEdit(ctx, userID, productID); err != nil {
		return Product{}, err
	}

	updates := patch.columns()
	if len(updates) == 0 {
		return s.Get(ctx, productID)
	}
	updates["updated_at"] = s.clock().UTC()

	result := s.db.WithContext(ctx).Model(&Product{}).
		Where("id = ? AND (submitter_id = ? OR (claim_status = ? AND owner_id = ?))",
			productID.String(), userID.String(), ClaimStatusVerified, userID.String()).
		Updates(updates)
	if result.Error != nil {
		s.logError(opUpdate, "update_failed", result.Error,
			zap.String("user_id", userID.String()),
			zap.String("product_id", productID.String()))
		return Product{}, newServiceError(opUpdate, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		s.logError(opUpdate, "policy_denied", ErrPolicyDenied,
			zap.String("user_id", userID.String()),
			zap.String("product_id", productID.String()))
		return Product{}, newServiceError(opUpdate, "policy_denied", ErrPolicyDenied)
	}

	s.publishChange(productID.String())
	return s.Get(ctx, productID)
}

// RequestClaim marks the product as pending ownership by userID. The update
// is guarded by "owner is currently null" so two racing claimants cannot
// both win; the loser observes zero rows and an already-owned error.
func (s *Service) RequestClaim(ctx context.Context, userID UserID, productID ProductID) (Product, error) {
	owner := userID.String()
	result := s.db.WithContext(ctx).Model(&Product{}).
		Where("id = ? AND owner_id IS NULL", productID.String()).
		Updates(map[string]interface{}{
			"owner_id":     owner,
			"claim_status": ClaimStatusPending,
			"updated_at":   s.clock().UTC(),
		})
	if result.Error != nil {
		s.logError(opRequestClaim, "update_failed", result.Error,
			zap.String("user_id", owner),
			zap.String("product_id", productID.String()))
		return Product{}, newServiceError(opRequestClaim, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		// Zero rows is either a missing product or a lost race; fetch to
		// tell the two apart.
		if _, err := s.Get(ctx, productID); err != nil {
			return Product{}, err
		}
		return Product{}, newServiceError(opRequestClaim, "already_owned", ErrAlreadyOwned)
	}

	s.publishChange(productID.String())
	return s.Get(ctx, productID)
}

// ApproveClaim verifies a pending claim. Moderator only.
func (s *Service) ApproveClaim(ctx context.Context, moderatorID UserID, productID ProductID) (Product, error) {
	if err := s.requireModerator(opApproveClaim, moderatorID); err != nil {
		return Product{}, err
	}

	result := s.db.WithContext(ctx).Model(&Product{}).
		Where("id = ? AND claim_status = ?", productID.String(), ClaimStatusPending).
		Updates(map[string]interface{}{
			"claim_status": ClaimStatusVerified,
			"updated_at":   s.clock().UTC(),
		})
	if result.Error != nil {
		s.logError(opApproveClaim, "update_failed", result.Error, zap.String("product_id", productID.String()))
		return Product{}, newServiceError(opApproveClaim, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := s.Get(ctx, productID); err != nil {
			return Product{}, err
		}
		return Product{}, newServiceError(opApproveClaim, "no_pending_claim", ErrNoPendingClaim)
	}

	s.publishChange(productID.String())
	return s.Get(ctx, productID)
}

// RejectClaim clears a pending claim back to unowned. Moderator only.
func (s *Service) RejectClaim(ctx context.Context, moderatorID UserID, productID ProductID) (Product, error) {
	if err := s.requireModerator(opRejectClaim, moderatorID); err != nil {
		return Product{}, err
	}

	result := s.db.WithContext(ctx).Model(&Product{}).
		Where("id = ? AND claim_status = ?", productID.String(), ClaimStatusPending).
		Updates(map[string]interface{}{
			"claim_status": ClaimStatusNone,
			"owner_id":     gorm.Expr("NULL"),
			"updated_at":   s.clock().UTC(),
		})
	if result.Error != nil {
		s.logError(opRejectClaim, "update_failed", result.Error, zap.String("product_id", productID.String()))
		return Product{}, newServiceError(opRejectClaim, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := s.Get(ctx, productID); err != nil {
			return Product{}, err
		}
		return Product{}, newServiceError(opRejectClaim, "no_pending_claim", ErrNoPendingClaim)
	}

	s.publishChange(productID.String())
	return s.Get(ctx, productID)
}

// IncrementVibeScore bumps the account-optional vibe counter by one.
func (s *Service) IncrementVibeScore(ctx context.Context, productID ProductID) (int64, error) {
	result := s.db.WithContext(ctx).Model(&Product{}).
		Where("id = ?", productID.String()).
		Update("vibe_score", gorm.Expr("vibe_score + 1"))
	if result.Error != nil {
		s.logError(opVibe, "update_failed", result.Error, zap.String("product_id", productID.String()))
		return 0, newServiceError(opVibe, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, newServiceError(opVibe, "not_found", ErrNotFound)
	}

	product, err := s.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	s.publishChange(productID.String())
	return product.VibeScore, nil
}

// SetFeatured toggles the featured flag. Moderator only.
func (s *Service) SetFeatured(ctx context.Context, moderatorID UserID, productID ProductID, featured bool) error {
	if err := s.requireModerator(opSetFeatured, moderatorID); err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Model(&Product{}).
		Where("id = ?", productID.String()).
		Updates(map[string]interface{}{
			"featured":   featured,
			"updated_at": s.clock().UTC(),
		})
	if result.Error != nil {
		s.logError(opSetFeatured, "update_failed", result.Error, zap.String("product_id", productID.String()))
		return newServiceError(opSetFeatured, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(opSetFeatured, "not_found", ErrNotFound)
	}

	s.publishChange(productID.String())
	return nil
}

// AddScreenshot appends a gallery entry, gated by CanEdit.
func (s *Service) AddScreenshot(ctx context.Context, userID UserID, productID ProductID, imageURL string) (Screenshot, error) {
	if err := s.CanEdit(ctx, userID, productID); err != nil {
		return Screenshot{}, err
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opAddScreenshot, "id_generation_failed", err)
		return Screenshot{}, newServiceError(opAddScreenshot, "id_generation_failed", err)
	}

	var maxOrder int
	row := s.db.WithContext(ctx).Model(&Screenshot{}).
		Where("product_id = ?", productID.String()).
		Select("COALESCE(MAX(sort_order), -1)").
		Row()
	if err := row.Scan(&maxOrder); err != nil {
		s.logError(opAddScreenshot, "order_query_failed", err, zap.String("product_id", productID.String()))
		return Screenshot{}, newServiceError(opAddScreenshot, "order_query_failed", err)
	}

	screenshot := Screenshot{
		ID:        id,
		ProductID: productID.String(),
		ImageURL:  imageURL,
		SortOrder: maxOrder + 1,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&screenshot).Error; err != nil {
		s.logError(opAddScreenshot, "insert_failed", err, zap.String("product_id", productID.String()))
		return Screenshot{}, newServiceError(opAddScreenshot, "insert_failed", err)
	}

	s.publishChange(productID.String())
	return screenshot, nil
}

// ListScreenshots returns the ordered gallery for a product.
func (s *Service) ListScreenshots(ctx context.Context, productID ProductID) ([]Screenshot, error) {
	var items []Screenshot
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID.String()).
		Order("sort_order ASC").
		Find(&items).Error
	if err != nil {
		s.logError(opListScreenshots, "query_failed", err, zap.String("product_id", productID.String()))
		return nil, newServiceError(opListScreenshots, "query_failed", err)
	}
	return items, nil
}

// RemoveScreenshot deletes a gallery entry, gated by CanEdit on its product.
// A zero-row delete of a row that was just read means the storage policy
// blocked it; that is a policy error, not an already-removed success.
func (s *Service) RemoveScreenshot(ctx context.Context, userID UserID, screenshotID string) error {
	var screenshot Screenshot
	err := s.db.WithContext(ctx).
		Where("id = ?", screenshotID).
		Take(&screenshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newServiceError(opRemoveScreenshot, "not_found", ErrNotFound)
	}
	if err != nil {
		s.logError(opRemoveScreenshot, "query_failed", err, zap.String("screenshot_id", screenshotID))
		return newServiceError(opRemoveScreenshot, "query_failed", err)
	}

	productID, err := NewProductID(screenshot.ProductID)
	if err != nil {
		return newServiceError(opRemoveScreenshot, "invalid_product_id", err)
	}
	if err := s.CanEdit(ctx, userID, productID); err != nil {
		return err
	}

	result := s.db.WithContext(ctx).
		Where("id = ?", screenshotID).
		Delete(&Screenshot{})
	if result.Error != nil {
		s.logError(opRemoveScreenshot, "delete_failed", result.Error, zap.String("screenshot_id", screenshotID))
		return newServiceError(opRemoveScreenshot, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return newServiceError(opRemoveScreenshot, "policy_denied", ErrPolicyDenied)
	}

	s.publishChange(screenshot.ProductID)
	return nil
}

func (s *Service) requireModerator(operation string, userID UserID) error {
	if s.moderation == nil {
		return newServiceError(operation, "not_moderator", ErrNotModerator)
	}
	allowed, err := s.moderation.CanModerate(userID.String())
	if err != nil {
		s.logError(operation, "moderator_check_failed", err, zap.String("user_id", userID.String()))
		return newServiceError(operation, "moderator_check_failed", err)
	}
	if !allowed {
		return newServiceError(operation, "not_moderator", ErrNotModerator)
	}
	return nil
}

func (s *Service) publishChange(productIDs ...string) {
	if s.changes == nil {
		return
	}
	s.changes.PublishProductChange(productIDs...)
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
	s.logger.Error("product service error", attrs...)
}
