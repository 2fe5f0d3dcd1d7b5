package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/vibeboardhq/vibeboard/backend/internal/auth"
	"github.com/vibeboardhq/vibeboard/backend/internal/cache"
	"github.com/vibeboardhq/vibeboard/backend/internal/chronicles"
	"github.com/vibeboardhq/vibeboard/backend/internal/identity"
	"github.com/vibeboardhq/vibeboard/backend/internal/products"
	"github.com/vibeboardhq/vibeboard/backend/internal/profiles"
	"github.com/vibeboardhq/vibeboard/backend/internal/shorturls"
	"github.com/vibeboardhq/vibeboard/backend/internal/uploads"
	"github.com/vibeboardhq/vibeboard/backend/internal/votes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// stubVerifier accepts any id token and reports its value as the subject, so
// tests mint tokens for arbitrary users by passing the user id as the token.
type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (auth.ProviderClaims, error) {
	return auth.ProviderClaims{
		Subject: token,
		Issuer:  "https://accounts.google.com",
	}, nil
}

type testHarness struct {
	server     *httptest.Server
	identity   *identity.Service
	dispatcher *RealtimeDispatcher
	store      *cache.Store
	db         *gorm.DB
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:vibeboard_server_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&products.Product{}, &products.Screenshot{}, &votes.Vote{},
		&profiles.MakerProfile{}, &shorturls.ShortURL{}, &chronicles.Chronicle{},
		&identity.Identity{}, &identity.Role{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	identityService, err := identity.NewService(identity.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct identity service: %v", err)
	}

	dispatcher := NewRealtimeDispatcher()
	productService, err := products.NewService(products.ServiceConfig{
		Database:   db,
		IDProvider: products.NewUUIDProvider(),
		Moderation: identityService,
		Changes:    dispatcher,
	})
	if err != nil {
		t.Fatalf("failed to construct product service: %v", err)
	}
	voteService, err := votes.NewService(votes.ServiceConfig{Database: db, Changes: dispatcher})
	if err != nil {
		t.Fatalf("failed to construct vote service: %v", err)
	}
	profileService, err := profiles.NewService(profiles.ServiceConfig{Database: db, Gate: productService})
	if err != nil {
		t.Fatalf("failed to construct profile service: %v", err)
	}
	shortURLService, err := shorturls.NewService(shorturls.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct short url service: %v", err)
	}
	chronicleService, err := chronicles.NewService(chronicles.ServiceConfig{
		Database:   db,
		IDProvider: products.NewUUIDProvider(),
		Moderation: identityService,
	})
	if err != nil {
		t.Fatalf("failed to construct chronicle service: %v", err)
	}
	uploadService, err := uploads.NewService(uploads.ServiceConfig{})
	if err != nil {
		t.Fatalf("failed to construct upload service: %v", err)
	}

	tokenIssuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("test-signing-secret"),
		Issuer:        "vibeboard-auth",
		Audience:      "vibeboard-api",
		TokenTTL:      time.Minute,
	})

	store := cache.NewStore()
	handler, err := NewHTTPHandler(Dependencies{
		Verifier:   stubVerifier{},
		Tokens:     tokenIssuer,
		Identity:   identityService,
		Products:   productService,
		Votes:      voteService,
		Profiles:   profileService,
		ShortURLs:  shortURLService,
		Chronicles: chronicleService,
		Uploads:    uploadService,
		Realtime:   dispatcher,
		Cache:      store,
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &testHarness{
		server:     server,
		identity:   identityService,
		dispatcher: dispatcher,
		store:      store,
		db:         db,
	}
}

func (h *testHarness) issueToken(t *testing.T, userID string) string {
	t.Helper()
	body := fmt.Sprintf(`{"id_token":%q}`, userID)
	resp, err := http.Post(h.server.URL+"/auth/token", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("token request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected token status: %d", resp.StatusCode)
	}
	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode token response: %v", err)
	}
	return payload.AccessToken
}

func (h *testHarness) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewBuffer(encoded)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	request, err := http.NewRequest(method, h.server.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func (h *testHarness) submitProduct(t *testing.T, token, name string) string {
	t.Helper()
	resp := h.do(t, http.MethodPost, "/products", token, map[string]interface{}{"name": name})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected submit status: %d", resp.StatusCode)
	}
	var payload struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &payload)
	if payload.ID == "" {
		t.Fatalf("expected submitted product id")
	}
	return payload.ID
}
