package model

import "gorm.io/gorm"

// Workspace is the top-level tenant container. Every project, bucket and
// invitation hangs off exactly one workspace.
type Workspace struct {
	gorm.Model
	Name    string `gorm:"type:varchar(64);not null;comment:workspace name"`
	OwnerID uint   `gorm:"index;not null;comment:owning user"`

	Projects []Project
}
