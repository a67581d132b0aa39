// Package provision stands up the full dependent resource set for a new
// project: mindspace/project/stage buckets, stages from the template catalog,
// per-stage agents and message threads.
//
// The pipeline is a fixed ordered list of typed steps. It is not
// transactional: every step checks for an existing resource before creating
// one, so a partially failed run is recovered by calling Provision again
// rather than by rolling back.
package provision

import (
	"context"

	"github.com/loomworks/loomspace/dao/model"
)

// Request identifies the project being provisioned. Workspace and project
// existence is a precondition, not a step.
type Request struct {
	WorkspaceID uint
	ProjectID   uint
	UserID      uint
	ProjectName string
}

type Outcome string

const (
	OutcomeCreated       Outcome = "created"
	OutcomeAlreadyExists Outcome = "already_exists"
	OutcomeFailed        Outcome = "failed"
)

type StepResult struct {
	Step    string  `json:"step"`
	Outcome Outcome `json:"outcome"`
	Count   int     `json:"count,omitempty"`
	Detail  string  `json:"detail,omitempty"`
}

type Result struct {
	WorkspaceID uint         `json:"workspace_id"`
	ProjectID   uint         `json:"project_id"`
	Steps       []StepResult `json:"steps"`
}

// Step is one named provisioning action. Implementations must be idempotent:
// when the resource already exists they report OutcomeAlreadyExists instead
// of creating a duplicate.
type Step interface {
	Name() string
	Provision(ctx context.Context, req *Request) (StepResult, error)
}

// Store is the persistence surface the steps need. The gorm-backed
// implementation lives in dao; tests substitute in-memory fakes.
// Lookup methods return apperr.ErrNotFound when no row matches; create
// methods return apperr.ErrConflict on a unique-key violation.
type Store interface {
	FindBucketByName(ctx context.Context, name string) (*model.Bucket, error)
	CreateBucket(ctx context.Context, bucket *model.Bucket) error

	ListStageTemplates(ctx context.Context) ([]*model.StageTemplate, error)
	ListProjectStages(ctx context.Context, projectID uint) ([]*model.ProjectStage, error)
	CreateProjectStage(ctx context.Context, stage *model.ProjectStage) error

	ListAgentTemplates(ctx context.Context, stageTemplateIDs []uint) ([]*model.AgentTemplate, error)
	FindStageAgent(ctx context.Context, stageID uint) (*model.ProjectAgent, error)
	CreateProjectAgent(ctx context.Context, agent *model.ProjectAgent) error

	ListProjectThreads(ctx context.Context, projectID uint) ([]*model.Thread, error)
	CreateThread(ctx context.Context, thread *model.Thread) error

	// MarkOnboardingComplete upserts the caller's onboarding record to the
	// final stage. It reports already=true when the record was complete
	// before the call, which keeps the terminal step idempotent.
	MarkOnboardingComplete(ctx context.Context, userID uint) (already bool, err error)
}
