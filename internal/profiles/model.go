package profiles

import "time"

// MakerProfile is the public identity of a product maker. The primary key is
// the user id; the username carries a uniqueness constraint enforced by the
// database.
type MakerProfile struct {
	UserID            string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	Username          string    `gorm:"column:username;size:64;not null;uniqueIndex"`
	Bio               string    `gorm:"column:bio;type:text"`
	AvatarURL         string    `gorm:"column:avatar_url;size:512"`
	WebsiteURL        string    `gorm:"column:website_url;size:512"`
	TwitterHandle     string    `gorm:"column:twitter_handle;size:64"`
	GitHubHandle      string    `gorm:"column:github_handle;size:64"`
	InvitedBy         string    `gorm:"column:invited_by;size:190"`
	FeaturedProductID *string   `gorm:"column:featured_product_id;size:190"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (MakerProfile) TableName() string {
	return "maker_profiles"
}

// Profile is the resolved view returned to callers. Virtual marks a profile
// synthesized from proxy submissions when no maker_profiles row exists.
type Profile struct {
	UserID            string
	Username          string
	Bio               string
	AvatarURL         string
	WebsiteURL        string
	TwitterHandle     string
	GitHubHandle      string
	InvitedBy         string
	FeaturedProductID string
	Virtual           bool
}

func fromRecord(record MakerProfile) Profile {
	featured := ""
	if record.FeaturedProductID != nil {
		featured = *record.FeaturedProductID
	}
	return Profile{
		UserID:            record.UserID,
		Username:          record.Username,
		Bio:               record.Bio,
		AvatarURL:         record.AvatarURL,
		WebsiteURL:        record.WebsiteURL,
		TwitterHandle:     record.TwitterHandle,
		GitHubHandle:      record.GitHubHandle,
		InvitedBy:         record.InvitedBy,
		FeaturedProductID: featured,
	}
}
