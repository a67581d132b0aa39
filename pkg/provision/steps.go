package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/loomworks/loomspace/dao/model"
	"github.com/loomworks/loomspace/pkg/apperr"
	"github.com/loomworks/loomspace/pkg/logutils"
	"github.com/loomworks/loomspace/pkg/objectstore"
)

// Step names, also the keys of the per-step results in the Provision response.
const (
	StepMindspaceBucket = "mindspace_bucket"
	StepCreateStages    = "create_stages"
	StepCreateAgents    = "create_agents"
	StepCreateThreads   = "create_threads"
	StepStageBuckets    = "stage_buckets"
	StepProjectBucket   = "project_bucket"
	StepMarkOnboarding  = "mark_onboarding"
)

// ensureBucket is the shared idempotent bucket creation used by the three
// bucket steps: look up by deterministic name first, create the row only when
// absent. The physical bucket is ensured on every path, row included: a prior
// run may have inserted the row and then died before the object store call,
// and only re-ensuring here lets a replay repair that. A duplicate-key
// conflict from a concurrent run counts as already existing.
func ensureBucket(ctx context.Context, store Store, objects objectstore.ObjectStore, bucket *model.Bucket) (Outcome, error) {
	outcome := OutcomeCreated
	existing, err := store.FindBucketByName(ctx, bucket.Name)
	switch {
	case err == nil:
		*bucket = *existing
		outcome = OutcomeAlreadyExists
	case !errors.Is(err, apperr.ErrNotFound):
		return OutcomeFailed, err
	default:
		if err := store.CreateBucket(ctx, bucket); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				if existing, ferr := store.FindBucketByName(ctx, bucket.Name); ferr == nil {
					*bucket = *existing
					outcome = OutcomeAlreadyExists
					break
				}
			}
			return OutcomeFailed, err
		}
	}
	if err := objects.EnsureBucket(ctx, bucket.Name); err != nil {
		return OutcomeFailed, fmt.Errorf("%w: ensure bucket %s: %v", apperr.ErrStorage, bucket.Name, err)
	}
	return outcome, nil
}

// MindspaceBucketStep provisions the caller's personal file scope for the
// workspace. Natural key: (workspace, user).
type MindspaceBucketStep struct {
	store   Store
	objects objectstore.ObjectStore
}

func (s *MindspaceBucketStep) Name() string { return StepMindspaceBucket }

func (s *MindspaceBucketStep) Provision(ctx context.Context, req *Request) (StepResult, error) {
	bucket := &model.Bucket{
		Kind:        model.BucketMindspace,
		Name:        objectstore.MindspaceBucketName(req.WorkspaceID, req.UserID),
		WorkspaceID: req.WorkspaceID,
		OwnerID:     req.UserID,
	}
	outcome, err := ensureBucket(ctx, s.store, s.objects, bucket)
	if err != nil {
		return StepResult{Step: s.Name(), Outcome: OutcomeFailed, Detail: err.Error()}, err
	}
	return StepResult{Step: s.Name(), Outcome: outcome, Count: 1}, nil
}

// StageStep creates one ProjectStage per template from the global catalog.
type StageStep struct {
	store Store
}

func (s *StageStep) Name() string { return StepCreateStages }

func (s *StageStep) Provision(ctx context.Context, req *Request) (StepResult, error) {
	templates, err := s.store.ListStageTemplates(ctx)
	if err != nil {
		return StepResult{Step: s.Name(), Outcome: OutcomeFailed, Detail: err.Error()}, err
	}
	if len(templates) == 0 {
		err := fmt.Errorf("%w: no stage templates configured", apperr.ErrNotReady)
		return StepResult{Step: s.Name(), Outcome: OutcomeFailed, Detail: err.Error()}, err
	}

	existing, err := s.store.ListProjectStages(ctx, req.ProjectID)
	if err != nil {
		return StepResult{Step: s.Name(), Outcome: OutcomeFailed, Detail: err.Error()}, err
	}
	have := lo.SliceToMap(existing, func(st *model.ProjectStage) (uint, bool) {
		return st.StageTemplateID, true
	})

	created := 0
	for _, tpl := range templates {
		if have[tpl.ID] {
			continue
		}
		stage := &model.ProjectStage{
			ProjectID:       req.ProjectID,
			StageTemplateID: tpl.ID,
			Name:            tpl.Name,
			Position:        tpl.Position,
			Status:          model.StagePending,
		}
		if err := s.store.CreateProjectStage(ctx, stage); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				// Lost a race with a concurrent run; the stage exists.
				continue
			}
			return StepResult{Step: s.Name(), Outcome: OutcomeFailed, Detail: err.Error()}, err
		}
		created++
	}
	if created == 0 {
		return StepResult{Step: s.Name(), Outcome: OutcomeAlreadyExists, Count: len(existing)}, nil
	}
	return StepResult{Step: s.Name(), Outcome: OutcomeCreated, Count: created}, nil
}

// AgentStep assigns one agent per stage whose template has a matching agent
// template. Stages without a match are skipped with a warning; the step fails
// only when no stage has a match at all.
type AgentStep struct {
	store Store
}

func (s *AgentStep) Name() string { return StepCreateAgents }

func (s *AgentStep) Provision(ctx context.Context, req *Request) (StepResult, error) {
	stages, err := s.store.ListProjectStages(ctx, req.ProjectID)
	if err != nil {
		return StepResult{Step: s.Name(), Outcome: OutcomeFailed, Detail: err.Error()}, err
	}

	templateIDs := lo.Map(stages, func(st *model.ProjectStage, _ int) uint { return st.StageTemplateID })
	agentTemplates, err := s.store.ListAgentTemplates(ctx, templateIDs)
	if err != nil {
		return StepResult{Step: s.Name(), Outcome: OutcomeFailed, Detail: err.Error()}, err
	}

	// First matching agent template per stage template wins.
	byStageTemplate := make(map[uint]*model.AgentTemplate, len(agentTemplates))
	for _, at := range agentTemplates {
		if _, ok := byStageTemplate[at.StageTemplateID]; !ok {
			byStageTemplate[at.StageTemplateID] = at
		}
	}

	created, matched := 0, 0
	for _, stage := range stages {
		if _, err := s.store.FindStageAgent(ctx, stage.ID); err == nil {
			matched++
			continue
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return StepResult{Step: s.Name(), Outcome: OutcomeFailed, Detail: err.Error()}, err
		}
		tpl, ok := byStageTemplate[stage.StageTemplateID]
		if !ok {
			logutils.Log.Warnf("provision: no agent template for stage %q (template %d), skipping",
				stage.Name, stage.StageTemplateID)
			continue
		}
		agent := &model.ProjectAgent{
			StageID:         stage.ID,
			AgentTemplateID: tpl.ID,
		}
		if err := s.store.CreateProjectAgent(ctx, agent); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				matched++
				continue
			}
			return StepResult{Step: s.Name(), Outcome: OutcomeFailed, Detail: err.Error()}, err
		}
		created++
		matched++
	}

	if matched == 0 {
		err := fmt.Errorf("%w: no stage has a matching agent template", apperr.ErrNotReady)
		return StepResult{Step: s.Name(), Outcome: OutcomeFailed, Detail: err.Error()}, err
	}
	if created == 0 {
		return StepResult{Step: s.Name(), Outcome: OutcomeAlreadyExists, Count: matched}, nil
	}
	return StepResult{Step: s.Name(), Outcome: OutcomeCreated, Count: created}, nil
}

// ThreadStep creates the project_main and plugin_stream threads plus one
// stage_main thread per stage.
type ThreadStep struct {
	store Store
}

func (s *ThreadStep) Name() string { return StepCreateThreads }

func (s *ThreadStep) Provision(ctx context.Context, req *Request) (StepResult, error) {
	stages, err := s.store.ListProjectStages(ctx, req.ProjectID)
	if err != nil {
		return StepResult{Step: s.Name(), Outcome: OutcomeFailed, Detail: err.Error()}, err
	}
	existing, err := s.store.ListProjectThreads(ctx, req.ProjectID)
	if err != nil {
		return StepResult{Step: s.Name(), Outcome: OutcomeFailed, Detail: err.Error()}, err
	}

	hasProjectMain := false
	hasPluginStream := false
	stageMain := make(map[uint]bool)
	for _, t := range existing {
		switch t.Type {
		case model.ThreadProjectMain:
			hasProjectMain = true
		case model.ThreadPluginStream:
			hasPluginStream = true
		case model.ThreadStageMain:
			if t.StageID != nil {
				stageMain[*t.StageID] = true
			}
		}
	}

	var wanted []*model.Thread
	if !hasProjectMain {
		wanted = append(wanted, &model.Thread{
			ProjectID: req.ProjectID,
			Type:      model.ThreadProjectMain,
			Title:     req.ProjectName,
		})
	}
	if !hasPluginStream {
		wanted = append(wanted, &model.Thread{
			ProjectID: req.ProjectID,
			Type:      model.ThreadPluginStream,
			Title:     "Plugin stream",
		})
	}
	for _, stage := range stages {
		if stageMain[stage.ID] {
			continue
		}
		wanted = append(wanted, &model.Thread{
			ProjectID: req.ProjectID,
			StageID:   lo.ToPtr(stage.ID),
			Type:      model.ThreadStageMain,
			Title:     stage.Name,
		})
	}

	created := 0
	for _, t := range wanted {
		if err := s.store.CreateThread(ctx, t); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				continue
			}
			return StepResult{Step: s.Name(), Outcome: OutcomeFailed, Detail: err.Error()}, err
		}
		created++
	}
	if created == 0 {
		return StepResult{Step: s.Name(), Outcome: OutcomeAlreadyExists, Count: len(existing)}, nil
	}
	return StepResult{Step: s.Name(), Outcome: OutcomeCreated, Count: created}, nil
}

// StageBucketStep provisions one bucket per stage.
type StageBucketStep struct {
	store   Store
	objects objectstore.ObjectStore
}

func (s *StageBucketStep) Name() string { return StepStageBuckets }

func (s *StageBucketStep) Provision(ctx context.Context, req *Request) (StepResult, error) {
	stages, err := s.store.ListProjectStages(ctx, req.ProjectID)
	if err != nil {
		return StepResult{Step: s.Name(), Outcome: OutcomeFailed, Detail: err.Error()}, err
	}
	created := 0
	for _, stage := range stages {
		bucket := &model.Bucket{
			Kind:        model.BucketStage,
			Name:        objectstore.StageBucketName(stage.ID),
			WorkspaceID: req.WorkspaceID,
			ProjectID:   lo.ToPtr(req.ProjectID),
			StageID:     lo.ToPtr(stage.ID),
			OwnerID:     req.UserID,
		}
		outcome, err := ensureBucket(ctx, s.store, s.objects, bucket)
		if err != nil {
			return StepResult{Step: s.Name(), Outcome: OutcomeFailed, Detail: err.Error()}, err
		}
		if outcome == OutcomeCreated {
			created++
		}
	}
	if created == 0 {
		return StepResult{Step: s.Name(), Outcome: OutcomeAlreadyExists, Count: len(stages)}, nil
	}
	return StepResult{Step: s.Name(), Outcome: OutcomeCreated, Count: created}, nil
}

// ProjectBucketStep provisions the project-level bucket.
type ProjectBucketStep struct {
	store   Store
	objects objectstore.ObjectStore
}

func (s *ProjectBucketStep) Name() string { return StepProjectBucket }

func (s *ProjectBucketStep) Provision(ctx context.Context, req *Request) (StepResult, error) {
	bucket := &model.Bucket{
		Kind:        model.BucketProject,
		Name:        objectstore.ProjectBucketName(req.ProjectID),
		WorkspaceID: req.WorkspaceID,
		ProjectID:   lo.ToPtr(req.ProjectID),
		OwnerID:     req.UserID,
	}
	outcome, err := ensureBucket(ctx, s.store, s.objects, bucket)
	if err != nil {
		return StepResult{Step: s.Name(), Outcome: OutcomeFailed, Detail: err.Error()}, err
	}
	return StepResult{Step: s.Name(), Outcome: outcome, Count: 1}, nil
}

// OnboardingStep marks the caller's onboarding record complete. It runs last
// and its failure does not fail the pipeline: all resource state is already
// correctly provisioned. The upsert is idempotent, so a retried run after a
// prior partial success reports already_exists.
type OnboardingStep struct {
	store Store
}

func (s *OnboardingStep) Name() string { return StepMarkOnboarding }

func (s *OnboardingStep) Provision(ctx context.Context, req *Request) (StepResult, error) {
	already, err := s.store.MarkOnboardingComplete(ctx, req.UserID)
	if err != nil {
		return StepResult{Step: s.Name(), Outcome: OutcomeFailed, Detail: err.Error()}, err
	}
	if already {
		return StepResult{Step: s.Name(), Outcome: OutcomeAlreadyExists, Count: 1}, nil
	}
	return StepResult{Step: s.Name(), Outcome: OutcomeCreated, Count: 1}, nil
}
