package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProjectAgent is the per-stage agent assignment created during provisioning.
// At most one agent exists per stage.
type ProjectAgent struct {
	gorm.Model
	StageID         uint            `gorm:"uniqueIndex;not null"`
	AgentTemplateID uint            `gorm:"index;not null"`
	PromptOverride  *string         `gorm:"type:text"`
	ToolsOverride   *datatypes.JSON `gorm:"type:jsonb"`
}
