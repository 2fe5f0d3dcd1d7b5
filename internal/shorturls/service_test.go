package shorturls

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type scriptedCodeSource struct {
	codes []string
	next  int
}

func (s *scriptedCodeSource) NewCode() (string, error) {
	if s.next >= len(s.codes) {
		return "", fmt.Errorf("scripted code source exhausted after %d codes", len(s.codes))
	}
	code := s.codes[s.next]
	s.next++
	return code, nil
}

func newTestService(t *testing.T, codes []string, maxAttempts int) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:vibeboard_shorturls_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&ShortURL{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database:    db,
		Codes:       &scriptedCodeSource{codes: codes},
		MaxAttempts: maxAttempts,
		Clock:       func() time.Time { return time.Unix(1750000000, 0).UTC() },
	})
	if err != nil {
		t.Fatalf("failed to construct short url service: %v", err)
	}
	return service, db
}

func TestEnsureAssignsAndReusesCode(t *testing.T) {
	service, _ := newTestService(t, []string{"Abc234"}, 5)

	first, err := service.Ensure(context.Background(), "product-1")
	if err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if first != "Abc234" {
		t.Fatalf("unexpected code: %s", first)
	}

	// The scripted source has no second code, so a second generation attempt
	// would fail; the stored assignment must be reused instead.
	second, err := service.Ensure(context.Background(), "product-1")
	if err != nil {
		t.Fatalf("repeat ensure failed: %v", err)
	}
	if second != first {
		t.Fatalf("expected stable code, got %s then %s", first, second)
	}
}

func TestEnsureRetriesOnCodeCollision(t *testing.T) {
	service, _ := newTestService(t, []string{"Dup999", "Dup999", "Fresh77"}, 5)

	first, err := service.Ensure(context.Background(), "product-1")
	if err != nil {
		t.Fatalf("first ensure failed: %v", err)
	}
	if first != "Dup999" {
		t.Fatalf("unexpected first code: %s", first)
	}

	second, err := service.Ensure(context.Background(), "product-2")
	if err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}
	if second != "Fresh77" {
		t.Fatalf("expected retry to pick the next code, got %s", second)
	}
}

func TestEnsureFailsAfterAttemptBudget(t *testing.T) {
	service, _ := newTestService(t, []string{"Same11", "Same11", "Same11"}, 2)

	if _, err := service.Ensure(context.Background(), "product-1"); err != nil {
		t.Fatalf("first ensure failed: %v", err)
	}

	_, err := service.Ensure(context.Background(), "product-2")
	if !errors.Is(err, ErrCodeExhausted) {
		t.Fatalf("expected exhaustion error, got %v", err)
	}
}

func TestResolveCountsClicks(t *testing.T) {
	service, db := newTestService(t, []string{"Abc234"}, 5)

	code, err := service.Ensure(context.Background(), "product-1")
	if err != nil {
		t.Fatalf("ensure failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		productID, err := service.Resolve(context.Background(), code)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if productID != "product-1" {
			t.Fatalf("unexpected product id: %s", productID)
		}
	}

	var stored ShortURL
	if err := db.Where("code = ?", code).Take(&stored).Error; err != nil {
		t.Fatalf("failed to load short url: %v", err)
	}
	if stored.ClickCount != 2 {
		t.Fatalf("expected two clicks, got %d", stored.ClickCount)
	}
}

func TestResolveUnknownCodeFails(t *testing.T) {
	service, _ := newTestService(t, nil, 5)

	_, err := service.Resolve(context.Background(), "Nope42")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRandomCodeSourceUsesUnambiguousAlphabet(t *testing.T) {
	source := NewRandomCodeSource()
	for i := 0; i < 10; i++ {
		code, err := source.NewCode()
		if err != nil {
			t.Fatalf("code generation failed: %v", err)
		}
		if len(code) != codeLength {
			t.Fatalf("unexpected code length: %q", code)
		}
		for _, r := range code {
			switch r {
			case '0', 'O', '1', 'I', 'l', 'i', 'o':
				t.Fatalf("ambiguous character %q in code %q", r, code)
			}
		}
	}
}
