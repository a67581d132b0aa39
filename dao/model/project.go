package model

import "gorm.io/gorm"

type Project struct {
	gorm.Model
	WorkspaceID uint          `gorm:"index;not null"`
	OwnerID     uint          `gorm:"index;not null"`
	Name        string        `gorm:"type:varchar(64);not null;comment:project name"`
	Status      ProjectStatus `gorm:"type:varchar(32);not null;default:planning"`

	Stages      []ProjectStage
	Memberships []ProjectMembership
}

// ProjectStage is one phase of a project, instantiated from a global
// StageTemplate. A project never has two stages for the same template.
type ProjectStage struct {
	gorm.Model
	ProjectID       uint        `gorm:"uniqueIndex:idx_stage_project_template;not null"`
	StageTemplateID uint        `gorm:"uniqueIndex:idx_stage_project_template;not null"`
	Name            string      `gorm:"type:varchar(64);not null"`
	Position        int         `gorm:"type:int;not null;comment:order within the project"`
	Status          StageStatus `gorm:"type:varchar(32);not null;default:pending"`
}

// ProjectMembership links a user profile to a project. Uniqueness is enforced
// per (project, user); AccessType records how the membership was obtained.
type ProjectMembership struct {
	gorm.Model
	ProjectID  uint       `gorm:"uniqueIndex:idx_membership_project_user;not null"`
	UserID     uint       `gorm:"uniqueIndex:idx_membership_project_user;not null"`
	Role       Role       `gorm:"type:smallint;not null;default:2"`
	AccessType AccessType `gorm:"type:varchar(32);not null;default:owner"`
}
