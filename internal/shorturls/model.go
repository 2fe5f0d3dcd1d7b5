package shorturls

import "time"

// ShortURL maps one shareable code to one product. Both sides are unique:
// a product holds at most one code and a code points at one product.
type ShortURL struct {
	Code       string    `gorm:"column:code;primaryKey;size:16;not null"`
	ProductID  string    `gorm:"column:product_id;size:190;not null;uniqueIndex"`
	ClickCount int64     `gorm:"column:click_count;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (ShortURL) TableName() string {
	return "short_urls"
}
