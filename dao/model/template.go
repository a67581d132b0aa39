package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StageTemplate is the global, ordered catalog stages are created from.
type StageTemplate struct {
	gorm.Model
	Name     string `gorm:"uniqueIndex;type:varchar(64);not null"`
	Position int    `gorm:"type:int;not null;comment:catalog order"`
}

// AgentTemplate describes an agent preset bound to one stage template.
// During provisioning the first template matching a stage's template wins.
type AgentTemplate struct {
	gorm.Model
	Name            string         `gorm:"type:varchar(64);not null"`
	StageTemplateID uint           `gorm:"index;not null"`
	Prompt          string         `gorm:"type:text;comment:system prompt"`
	Tools           datatypes.JSON `gorm:"type:jsonb;comment:enabled tool list"`
}
