package products

import (
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func mustUserID(t *testing.T, value string) UserID {
	t.Helper()
	id, err := NewUserID(value)
	if err != nil {
		t.Fatalf("unexpected user id error: %v", err)
	}
	return id
}

func mustProductID(t *testing.T, value string) ProductID {
	t.Helper()
	id, err := NewProductID(value)
	if err != nil {
		t.Fatalf("unexpected product id error: %v", err)
	}
	return id
}

type staticIDGenerator struct {
	mu   sync.Mutex
	ids  []string
	next int
}

func (g *staticIDGenerator) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.next >= len(g.ids) {
		return "", fmt.Errorf("static id generator exhausted after %d ids", len(g.ids))
	}
	id := g.ids[g.next]
	g.next++
	return id, nil
}

type stubModeration struct {
	moderators map[string]bool
}

func (s stubModeration) CanModerate(userID string) (bool, error) {
	return s.moderators[userID], nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	changes [][]string
}

func (p *recordingPublisher) PublishProductChange(productIDs ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, productIDs)
}

func (p *recordingPublisher) all() [][]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]string(nil), p.changes...)
}

func newTestService(t *testing.T, ids []string, moderators map[string]bool) (*Service, *gorm.DB, *recordingPublisher) {
	t.Helper()

	dsn := fmt.Sprintf("file:vibeboard_products_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Product{}, &Screenshot{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	publisher := &recordingPublisher{}
	clock := func() time.Time { return time.Unix(1750000000, 0).UTC() }

	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      clock,
		IDProvider: &staticIDGenerator{ids: ids},
		Moderation: stubModeration{moderators: moderators},
		Changes:    publisher,
	})
	if err != nil {
		t.Fatalf("failed to construct product service: %v", err)
	}

	return service, db, publisher
}
