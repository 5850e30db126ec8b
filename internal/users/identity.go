package users

import (
	"strings"
	"time"
)

// Identity maps a session provider and subject onto a canonical GTM Hub user id.
type Identity struct {
	Provider    string    `gorm:"column:provider;primaryKey;size:32;not null"`
	Subject     string    `gorm:"column:subject;primaryKey;size:190;not null"`
	UserID      string    `gorm:"column:user_id;size:190;not null;index"`
	Email       string    `gorm:"column:user_email;size:320"`
	DisplayName string    `gorm:"column:user_display_name;size:320"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user identities.
func (Identity) TableName() string {
	return "user_identities"
}

// Name returns the label shown next to a user's contributions.
func (identity Identity) Name() string {
	if name := normalize(identity.DisplayName); name != "" {
		return name
	}
	return normalize(identity.Email)
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
