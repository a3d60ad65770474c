package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Alliance struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:120;not null;unique" json:"name"`
	CreatedAt time.Time `json:"created_at"`

	Members []AllianceMember `json:"-"`
}

func (a *Alliance) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// AllianceMember is kept after a member leaves; Active flips to false and
// LeftAt is stamped.
type AllianceMember struct {
	AllianceID uuid.UUID  `gorm:"type:uuid;primaryKey" json:"alliance_id"`
	UserID     uuid.UUID  `gorm:"type:uuid;primaryKey;index" json:"user_id"`
	Role       string     `gorm:"size:20;not null;default:'member'" json:"role"`
	Active     bool       `gorm:"not null;default:true" json:"active"`
	JoinedAt   time.Time  `gorm:"not null" json:"joined_at"`
	LeftAt     *time.Time `json:"left_at,omitempty"`
}
