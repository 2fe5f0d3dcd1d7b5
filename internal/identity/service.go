package identity

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
var ErrInvalidIdentity = errors.New("identity: invalid identity")

// Login carries the verified provider claims needed to resolve a user.
type Login struct {
	Provider    string
	Subject     string
	Email       string
	DisplayName string
	AvatarURL   string
}

// ServiceConfig describes the dependencies required for user identity resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service manages canonical user identifiers, provider-specific identities
// and role grants.
type Service struct {
	db    *gorm.DB
	now   func() time.Time
	cache sync.Map
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("identity: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:  cfg.Database,
		now: clock,
	}, nil
}

// ResolveCanonicalUserID returns the canonical Vibeboard user id for the
// provided login. It creates a new identity mapping when the provider+subject
// pair has not been seen before.
func (s *Service) ResolveCanonicalUserID(login Login) (string, error) {
	provider := normalize(login.Provider)
	if provider == "" {
		provider = "default"
	}
	subject := normalize(login.Subject)
	if subject == "" {
		return "", ErrInvalidIdentity
	}

	cacheKey := provider + ":" + subject
	if cachedIdentifier, ok := s.cache.Load(cacheKey); ok {
		canonicalIdentifier, ok := cachedIdentifier.(string)
		if ok {
			return canonicalIdentifier, nil
		}
	}

	var record Identity
	err := s.db.
		Where("provider = ? AND subject = ?", provider, subject).
		First(&record).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		record = Identity{
			Provider:    provider,
			Subject:     subject,
			UserID:      subject,
			Email:       normalize(login.Email),
			DisplayName: normalize(login.DisplayName),
			AvatarURL:   normalize(login.AvatarURL),
			LastSeenAt:  s.now(),
		}
		if err := s.db.Create(&record).Error; err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	} else {
		updates := map[string]interface{}{}
		if email := normalize(login.Email); email != "" && email != record.Email {
			updates["user_email"] = email
		}
		if display := normalize(login.DisplayName); display != "" && display != record.DisplayName {
			updates["user_display_name"] = display
		}
		if avatar := normalize(login.AvatarURL); avatar != "" && avatar != record.AvatarURL {
			updates["user_avatar_url"] = avatar
		}
		updates["last_seen_at"] = s.now()
		if len(updates) > 0 {
			_ = s.db.Model(&Identity{}).
				Where("provider = ? AND subject = ?", provider, subject).
				Updates(updates).
				Error
		}
	}

	s.cache.Store(cacheKey, record.UserID)
	return record.UserID, nil
}

// GrantModerator records the moderator capability for the given user.
// Granting twice is a no-op.
func (s *Service) GrantModerator(userID string) error {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return ErrInvalidIdentity
	}
	role := Role{UserID: trimmed, Name: RoleModerator}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&role).Error
}

// CanModerate reports whether the user holds the moderator capability.
func (s *Service) CanModerate(userID string) (bool, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return false, nil
	}
	var count int64
	err := s.db.Model(&Role{}).
		Where("user_id = ? AND role = ?", trimmed, RoleModerator).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
