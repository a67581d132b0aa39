package model

import (
	"gorm.io/gorm"
)

// User is the basic identity of the system.
type User struct {
	gorm.Model
	Name     string  `gorm:"uniqueIndex;type:varchar(32);not null;comment:username"`
	Email    string  `gorm:"uniqueIndex;type:varchar(128);not null;comment:login email"`
	Nickname *string `gorm:"type:varchar(64);comment:display name"`
	Password *string `gorm:"type:varchar(128);comment:bcrypt hash"`
	Role     Role    `gorm:"type:smallint;not null;default:2;comment:platform role"`
}

// OnboardingState tracks how far a user has walked through first-run setup.
// A user needs onboarding while no row exists, Completed is false, or
// Stage < OnboardingFinalStage.
type OnboardingState struct {
	gorm.Model
	UserID    uint `gorm:"uniqueIndex;not null"`
	Stage     int  `gorm:"type:int;not null;default:0;comment:last finished onboarding stage"`
	Completed bool `gorm:"type:boolean;not null;default:false"`
}
