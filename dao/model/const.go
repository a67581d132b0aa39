// Constants mirroring database enum columns.
// Gin rejects zero values for fields tagged `required`, so the first constant
// of every enum starts at iota + 1 to keep the zero value out of the valid range.
package model

// User role in the platform and inside a project
type Role uint8

const (
	RoleGuest Role = iota + 1
	RoleUser
	RoleAdmin
)

// Project status
type ProjectStatus string

const (
	ProjectPlanning ProjectStatus = "planning"
	ProjectActive   ProjectStatus = "active"
	ProjectArchived ProjectStatus = "archived"
)

// Stage status
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in_progress"
	StageDone       StageStatus = "done"
)

// Bucket kind: one bucket per (owning entity, kind)
type BucketKind string

const (
	BucketMindspace BucketKind = "mindspace"
	BucketProject   BucketKind = "project"
	BucketStage     BucketKind = "stage"
)

// Thread type
type ThreadType string

const (
	ThreadProjectMain  ThreadType = "project_main"
	ThreadStageMain    ThreadType = "stage_main"
	ThreadPluginStream ThreadType = "plugin_stream"
)

// How a membership was obtained
type AccessType string

const (
	AccessOwner      AccessType = "owner"
	AccessInvitation AccessType = "invitation"
)

// Onboarding is complete once the user has walked through all stages.
const OnboardingFinalStage = 3
