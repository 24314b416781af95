package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CallStatus is the terminal classification of the ringing phase. Keep values
// stable, they are part of the public API.
type CallStatus string

const (
	CallStatusMissed   CallStatus = "missed"
	CallStatusAnswered CallStatus = "answered"
	CallStatusDeclined CallStatus = "declined"
	CallStatusFailed   CallStatus = "failed"
)

// CallType distinguishes voice from video calls.
type CallType string

const (
	CallTypeVoice CallType = "voice"
	CallTypeVideo CallType = "video"
)

// Call is the durable record of one voice or video call. It is created in
// status "missed" when the caller initiates and the status records how the
// ringing phase resolved, never how the call ended. Records are never deleted
// by the realtime core.
type Call struct {
	ID             string     `gorm:"primaryKey" json:"callId"`
	CallerID       string     `gorm:"index;not null" json:"callerId"`
	ReceiverID     string     `gorm:"index;not null" json:"receiverId"`
	ConversationID string     `gorm:"index;not null" json:"conversationId"`
	CallType       CallType   `gorm:"type:varchar(10)" json:"callType"`
	Status         CallStatus `gorm:"type:varchar(20);index" json:"status"`
	InitiatedBy    string     `json:"initiatedBy"`
	StartedAt      time.Time  `json:"startTime"`
	EndedAt        *time.Time `json:"endTime,omitempty"`
	// Duration is in seconds, reported by the client that hangs up.
	Duration int `json:"duration"`
}

// BeforeCreate assigns a UUID when the ID is not set yet.
func (c *Call) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// ConversationIDFor derives the conversation identifier for a pair of users.
// The pair is sorted first so both directions map to the same conversation.
func ConversationIDFor(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + "_" + userB
}
