package chronicles

import "time"

// Chronicle is one changelog entry authored by a moderator. Chronicles are
// independent of products.
type Chronicle struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null"`
	AuthorID    string    `gorm:"column:author_id;size:190;not null;index"`
	Title       string    `gorm:"column:title;size:320;not null"`
	Body        string    `gorm:"column:body;type:text"`
	PublishedAt time.Time `gorm:"column:published_at;not null;index"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Chronicle) TableName() string {
	return "chronicles"
}
