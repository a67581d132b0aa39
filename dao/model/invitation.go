package model

import (
	"time"

	"gorm.io/gorm"
)

// Invitation is a single-use ticket into a project. Codes are stored
// uppercased; lookups normalize before matching. Terminal once Used is true.
type Invitation struct {
	gorm.Model
	Code         string     `gorm:"uniqueIndex;type:varchar(16);not null;comment:normalized uppercase code"`
	WorkspaceID  uint       `gorm:"index;not null"`
	ProjectID    uint       `gorm:"index;not null"`
	InvitedBy    uint       `gorm:"index;not null"`
	InviteeEmail *string    `gorm:"type:varchar(128);comment:restricts acceptance to this email"`
	Role         Role       `gorm:"type:smallint;not null;default:2"`
	ExpiresAt    time.Time  `gorm:"not null"`
	Used         bool       `gorm:"type:boolean;not null;default:false"`
	AcceptedBy   *uint      `gorm:"index"`
	AcceptedAt   *time.Time
}
