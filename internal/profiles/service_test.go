package profiles

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/vibeboardhq/vibeboard/backend/internal/products"
	"gorm.io/gorm"
)

type allowAllGate struct{}

func (allowAllGate) CanEdit(_ context.Context, _ products.UserID, _ products.ProductID) error {
	return nil
}

type denyGate struct {
	err error
}

func (g denyGate) CanEdit(_ context.Context, _ products.UserID, _ products.ProductID) error {
	return g.err
}

func newTestService(t *testing.T, gate ProductGate) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:vibeboard_profiles_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&MakerProfile{}, &products.Product{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database: db,
		Gate:     gate,
		Clock:    func() time.Time { return time.Unix(1750000000, 0).UTC() },
	})
	if err != nil {
		t.Fatalf("failed to construct profile service: %v", err)
	}
	return service, db
}

func TestUpsertCreatesProfile(t *testing.T) {
	service, _ := newTestService(t, allowAllGate{})

	profile, err := service.Upsert(context.Background(), "user-1", UpsertRequest{
		Username: "ada",
		Bio:      "builds things",
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if profile.Username != "ada" || profile.UserID != "user-1" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	if profile.Virtual {
		t.Fatalf("stored profile must not be virtual")
	}
}

func TestUpsertUpdatesWithoutLosingFeaturedProduct(t *testing.T) {
	service, db := newTestService(t, allowAllGate{})

	if _, err := service.Upsert(context.Background(), "user-1", UpsertRequest{Username: "ada"}); err != nil {
		t.Fatalf("initial upsert failed: %v", err)
	}
	featured := "product-1"
	if err := db.Model(&MakerProfile{}).Where("user_id = ?", "user-1").
		Update("featured_product_id", featured).Error; err != nil {
		t.Fatalf("failed to seed featured product: %v", err)
	}

	profile, err := service.Upsert(context.Background(), "user-1", UpsertRequest{
		Username: "ada",
		Bio:      "updated bio",
	})
	if err != nil {
		t.Fatalf("update upsert failed: %v", err)
	}
	if profile.Bio != "updated bio" {
		t.Fatalf("expected bio updated, got %q", profile.Bio)
	}
	if profile.FeaturedProductID != "product-1" {
		t.Fatalf("expected featured product preserved, got %q", profile.FeaturedProductID)
	}
}

func TestUpsertRejectsTakenUsername(t *testing.T) {
	service, _ := newTestService(t, allowAllGate{})

	if _, err := service.Upsert(context.Background(), "user-1", UpsertRequest{Username: "ada"}); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	_, err := service.Upsert(context.Background(), "user-2", UpsertRequest{Username: "ada"})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected username taken, got %v", err)
	}
}

func TestUpsertRejectsInvalidUsername(t *testing.T) {
	service, _ := newTestService(t, allowAllGate{})

	_, err := service.Upsert(context.Background(), "user-1", UpsertRequest{Username: "   "})
	if !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected invalid username, got %v", err)
	}
}

func TestGetByUsernameSynthesizesVirtualProfile(t *testing.T) {
	service, db := newTestService(t, allowAllGate{})

	proxy := products.Product{
		ID:                    "product-1",
		Name:                  "Ghost Built",
		SubmitterID:           "user-1",
		ProxyCreatorName:      "ghostmaker",
		ProxyCreatorAvatarURL: "https://img.test/ghost.png",
	}
	if err := db.Create(&proxy).Error; err != nil {
		t.Fatalf("failed to seed proxy product: %v", err)
	}

	profile, err := service.GetByUsername(context.Background(), "ghostmaker")
	if err != nil {
		t.Fatalf("virtual lookup failed: %v", err)
	}
	if !profile.Virtual {
		t.Fatalf("expected virtual profile")
	}
	if profile.Username != "ghostmaker" || profile.AvatarURL != "https://img.test/ghost.png" {
		t.Fatalf("unexpected virtual profile: %+v", profile)
	}

	var rows int64
	if err := db.Model(&MakerProfile{}).Count(&rows).Error; err != nil {
		t.Fatalf("failed to count profiles: %v", err)
	}
	if rows != 0 {
		t.Fatalf("virtual lookup must not write a profile row")
	}
}

func TestGetByUsernamePrefersStoredProfile(t *testing.T) {
	service, db := newTestService(t, allowAllGate{})

	if _, err := service.Upsert(context.Background(), "user-1", UpsertRequest{Username: "ada"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	proxy := products.Product{ID: "product-1", Name: "Other", SubmitterID: "user-2", ProxyCreatorName: "ada"}
	if err := db.Create(&proxy).Error; err != nil {
		t.Fatalf("failed to seed proxy product: %v", err)
	}

	profile, err := service.GetByUsername(context.Background(), "ada")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if profile.Virtual {
		t.Fatalf("stored profile must win over proxy synthesis")
	}
	if profile.UserID != "user-1" {
		t.Fatalf("unexpected profile owner: %s", profile.UserID)
	}
}

func TestGetByUsernameUnknownFails(t *testing.T) {
	service, _ := newTestService(t, allowAllGate{})

	_, err := service.GetByUsername(context.Background(), "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFeatureProductRequiresEditRights(t *testing.T) {
	gateErr := errors.New("not yours")
	service, _ := newTestService(t, denyGate{err: gateErr})

	if _, err := service.Upsert(context.Background(), "user-1", UpsertRequest{Username: "ada"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	err := service.FeatureProduct(context.Background(), "user-1", "product-1")
	if !errors.Is(err, gateErr) {
		t.Fatalf("expected gate error to pass through, got %v", err)
	}
}

func TestFeatureProductStoresSelection(t *testing.T) {
	service, _ := newTestService(t, allowAllGate{})

	if _, err := service.Upsert(context.Background(), "user-1", UpsertRequest{Username: "ada"}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := service.FeatureProduct(context.Background(), "user-1", "product-1"); err != nil {
		t.Fatalf("feature failed: %v", err)
	}

	profile, err := service.GetByUserID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if profile.FeaturedProductID != "product-1" {
		t.Fatalf("expected featured product stored, got %q", profile.FeaturedProductID)
	}
}

func TestFeatureProductWithoutProfileFails(t *testing.T) {
	service, _ := newTestService(t, allowAllGate{})

	err := service.FeatureProduct(context.Background(), "user-1", "product-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
