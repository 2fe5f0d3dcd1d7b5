package products

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ClaimStatus tracks the ownership claim lifecycle of a product.
type ClaimStatus string

const (
	// ClaimStatusNone means no claim has been made: only the submitter may edit.
	ClaimStatusNone ClaimStatus = "none"
	// ClaimStatusPending means a claim awaits moderator review.
	ClaimStatusPending ClaimStatus = "pending"
	// ClaimStatusVerified means the claim was approved and the owner may edit.
	ClaimStatusVerified ClaimStatus = "verified"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidProductID indicates that a product identifier is empty or exceeds storage bounds.
	ErrInvalidProductID = errors.New("products: invalid product id")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("products: invalid user id")
	// ErrInvalidName indicates a missing product name.
	ErrInvalidName = errors.New("products: name is required")
)

// ProductID represents a validated product identifier.
type ProductID string

// NewProductID validates raw input and returns a ProductID.
func NewProductID(rawInput string) (ProductID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidProductID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidProductID, maxIdentifierLength)
	}
	return ProductID(trimmed), nil
}

// String returns the underlying string identifier.
func (id ProductID) String() string {
	return string(id)
}

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// Product models a submitted AI-built product.
type Product struct {
	ID                     string      `gorm:"column:id;primaryKey;size:190;not null"`
	Name                   string      `gorm:"column:name;size:190;not null"`
	Tagline                string      `gorm:"column:tagline;size:320"`
	Description            string      `gorm:"column:description;type:text"`
	URL                    string      `gorm:"column:url;size:512"`
	IconURL                string      `gorm:"column:icon_url;size:512"`
	BannerURL              string      `gorm:"column:banner_url;size:512"`
	DemoURL                string      `gorm:"column:demo_url;size:512"`
	VideoURL               string      `gorm:"column:video_url;size:512"`
	Tools                  string      `gorm:"column:tools;size:512"`
	BuildTime              string      `gorm:"column:build_time;size:64"`
	Category               string      `gorm:"column:category;size:64;index"`
	SubmitterID            string      `gorm:"column:submitter_id;size:190;not null;index"`
	OwnerID                *string     `gorm:"column:owner_id;size:190;index"`
	ProxyCreatorName       string      `gorm:"column:proxy_creator_name;size:190;index"`
	ProxyCreatorAvatarURL  string      `gorm:"column:proxy_creator_avatar_url;size:512"`
	ClaimStatus            ClaimStatus `gorm:"column:claim_status;size:16;not null;default:none"`
	VoteCount              int64       `gorm:"column:vote_count;not null;default:0"`
	VibeScore              int64       `gorm:"column:vibe_score;not null;default:0"`
	Featured               bool        `gorm:"column:featured;not null;default:false"`
	CreatedAt              time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Product) TableName() string {
	return "products"
}

// Owner returns the owner id or empty when unclaimed.
func (p Product) Owner() string {
	if p.OwnerID == nil {
		return ""
	}
	return *p.OwnerID
}

// Screenshot is an ordered gallery entry for a product.
type Screenshot struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	ProductID string    `gorm:"column:product_id;size:190;not null;index:idx_screenshots_product_order,priority:1"`
	ImageURL  string    `gorm:"column:image_url;size:512;not null"`
	SortOrder int       `gorm:"column:sort_order;not null;default:0;index:idx_screenshots_product_order,priority:2"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Screenshot) TableName() string {
	return "product_screenshots"
}

// Patch describes a partial edit to a product. Nil fields are left untouched.
type Patch struct {
	Name        *string
	Tagline     *string
	Description *string
	URL         *string
	IconURL     *string
	BannerURL   *string
	DemoURL     *string
	VideoURL    *string
	Tools       *string
	BuildTime   *string
	Category    *string
}

func (p Patch) columns() map[string]interface{} {
	updates := map[string]interface{}{}
	if p.Name != nil {
		updates["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Tagline != nil {
		updates["tagline"] = *p.Tagline
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.URL != nil {
		updates["url"] = *p.URL
	}
	if p.IconURL != nil {
		updates["icon_url"] = *p.IconURL
	}
	if p.BannerURL != nil {
		updates["banner_url"] = *p.BannerURL
	}
	if p.DemoURL != nil {
		updates["demo_url"] = *p.DemoURL
	}
	if p.VideoURL != nil {
		updates["video_url"] = *p.VideoURL
	}
	if p.Tools != nil {
		updates["tools"] = *p.Tools
	}
	if p.BuildTime != nil {
		updates["build_time"] = *p.BuildTime
	}
	if p.Category != nil {
		updates["category"] = *p.Category
	}
	return updates
}
