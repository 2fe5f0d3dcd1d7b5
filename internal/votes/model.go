package votes

import "time"

// Vote records one upvote. Presence of a row means the user has voted for
// the product; at most one row exists per (user, product).
type Vote struct {
	ProductID string    `gorm:"column:product_id;primaryKey;size:190;not null"`
	UserID    string    `gorm:"column:user_id;primaryKey;size:190;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Vote) TableName() string {
	return "votes"
}
