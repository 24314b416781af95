package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq" // Needed for pq.StringArray
	"gorm.io/gorm"
)

// User represents an account known to the platform. The CRUD API owns most of
// this record; the realtime core only mutates the presence columns.
type User struct {
	ID       string `gorm:"primaryKey" json:"id"`
	Username string `gorm:"uniqueIndex" json:"username"`
	// TelegramID is set when the user linked a Telegram account; used for
	// out-of-band alerts such as missed calls.
	TelegramID string `gorm:"index" json:"-"`

	// IsOnline is flipped by the presence registry whenever a connection
	// announces or retires this identity.
	IsOnline bool `gorm:"default:false;index" json:"isOnline"`
	// LastSeen is stamped on every presence transition.
	LastSeen time.Time `json:"lastSeen"`

	// MutedConversations is maintained by the CRUD layer; the realtime core
	// carries it but never interprets it.
	MutedConversations pq.StringArray `gorm:"type:text[]" json:"-"`
}

// BeforeCreate is a GORM hook that assigns a UUID when the ID is not set yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
