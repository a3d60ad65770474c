package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ConversationDirect = "direct"
	ConversationGroup  = "group"
)

type Conversation struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Kind  string    `gorm:"size:10;not null" json:"kind"`
	Title *string   `gorm:"size:120" json:"title,omitempty"`

	// DirectKey is "<lower id>:<higher id>" for direct conversations and NULL
	// for groups, so the unique index only constrains direct pairs.
	DirectKey *string `gorm:"size:80;uniqueIndex" json:"-"`

	LastMessageID *uuid.UUID `gorm:"type:uuid" json:"last_message_id,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	LastSeq       int64      `gorm:"not null;default:0" json:"last_seq"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Participants []ConversationParticipant `json:"participants,omitempty"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type ConversationParticipant struct {
	ConversationID uuid.UUID  `gorm:"type:uuid;primaryKey" json:"conversation_id"`
	UserID         uuid.UUID  `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	Active         bool       `gorm:"not null;default:true" json:"active"`
	JoinedAt       time.Time  `gorm:"not null" json:"joined_at"`
	LeftAt         *time.Time `json:"left_at,omitempty"`
}

// DirectKey orders the pair so (a, b) and (b, a) map to the same key.
func DirectKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if x > y {
		x, y = y, x
	}
	return x + ":" + y
}
