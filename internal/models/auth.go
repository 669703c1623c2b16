package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	Base
	Email       string     `gorm:"uniqueIndex;not null" json:"email" validate:"required,email"`
	Password    string     `gorm:"not null" json:"-"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Role        UserRole   `gorm:"type:varchar(20);not null;default:'MEMBER'" json:"role"`
	TeamID      string     `gorm:"type:uuid;not null" json:"teamId"`
	Team        *Team      `json:"team,omitempty"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// APIKey authenticates server-to-server callers. The raw key is shown once
// on creation and stored as-is; rotation is delete-and-recreate.
type APIKey struct {
	Base
	Name       string     `gorm:"not null" json:"name" validate:"required"`
	Key        string     `gorm:"uniqueIndex;not null" json:"key"`
	UserID     string     `gorm:"type:uuid;not null" json:"userId"`
	TeamID     string     `gorm:"type:uuid;not null;index" json:"teamId"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

func (k *APIKey) BeforeCreate(tx *gorm.DB) error {
	if err := k.Base.BeforeCreate(tx); err != nil {
		return err
	}
	if k.Key == "" {
		k.Key = "tern_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	if k.ExpiresAt.IsZero() {
		k.ExpiresAt = time.Now().AddDate(0, 0, 90)
	}
	return nil
}

// Expired reports whether the key is past its expiry.
func (k *APIKey) Expired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}
