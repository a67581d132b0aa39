package model

import "gorm.io/gorm"

// Thread is a message container. One project_main and one plugin_stream
// thread exist per project, one stage_main per stage.
type Thread struct {
	gorm.Model
	ProjectID uint       `gorm:"index;not null"`
	StageID   *uint      `gorm:"index;comment:set for stage_main threads"`
	Type      ThreadType `gorm:"type:varchar(32);not null"`
	Title     string     `gorm:"type:varchar(128)"`
}

type ThreadMessage struct {
	gorm.Model
	ThreadID uint   `gorm:"index;not null"`
	AuthorID uint   `gorm:"index;not null"`
	Body     string `gorm:"type:text;not null"`
}
