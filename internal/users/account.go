package users

import (
	"strings"
	"time"
)

// Account is a registered shop owner. Password accounts carry a bcrypt hash;
// Google accounts carry the provider subject instead and no usable hash.
type Account struct {
	ID            string    `gorm:"column:account_id;primaryKey;size:190;not null"`
	Email         string    `gorm:"column:email;size:320;not null;uniqueIndex"`
	Name          string    `gorm:"column:display_name;size:320;not null"`
	PasswordHash  string    `gorm:"column:password_hash;size:190"`
	Provider      string    `gorm:"column:provider;size:32;not null"`
	GoogleSubject string    `gorm:"column:google_subject;size:190;index"`
	AvatarURL     string    `gorm:"column:avatar_url;size:512"`
	LastSeenAt    time.Time `gorm:"column:last_seen_at;autoUpdateTime"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing registered accounts.
func (Account) TableName() string {
	return "accounts"
}

const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}

func normalizeEmail(value string) string {
	return strings.ToLower(normalize(value))
}
