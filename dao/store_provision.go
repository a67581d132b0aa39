package dao

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/loomworks/loomspace/dao/model"
)

// provision.Store implementation.

func (s *Store) FindBucketByName(ctx context.Context, name string) (*model.Bucket, error) {
	var bucket model.Bucket
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&bucket).Error
	if err != nil {
		return nil, translate(err)
	}
	return &bucket, nil
}

func (s *Store) CreateBucket(ctx context.Context, bucket *model.Bucket) error {
	return translate(s.db.WithContext(ctx).Create(bucket).Error)
}

func (s *Store) ListStageTemplates(ctx context.Context) ([]*model.StageTemplate, error) {
	var templates []*model.StageTemplate
	err := s.db.WithContext(ctx).Order("position").Find(&templates).Error
	return templates, translate(err)
}

func (s *Store) ListProjectStages(ctx context.Context, projectID uint) ([]*model.ProjectStage, error) {
	var stages []*model.ProjectStage
	err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("position").Find(&stages).Error
	return stages, translate(err)
}

func (s *Store) CreateProjectStage(ctx context.Context, stage *model.ProjectStage) error {
	return translate(s.db.WithContext(ctx).Create(stage).Error)
}

func (s *Store) ListAgentTemplates(ctx context.Context, stageTemplateIDs []uint) ([]*model.AgentTemplate, error) {
	if len(stageTemplateIDs) == 0 {
		return nil, nil
	}
	var templates []*model.AgentTemplate
	err := s.db.WithContext(ctx).
		Where("stage_template_id IN ?", stageTemplateIDs).
		Order("id").
		Find(&templates).Error
	return templates, translate(err)
}

func (s *Store) FindStageAgent(ctx context.Context, stageID uint) (*model.ProjectAgent, error) {
	var agent model.ProjectAgent
	err := s.db.WithContext(ctx).Where("stage_id = ?", stageID).First(&agent).Error
	if err != nil {
		return nil, translate(err)
	}
	return &agent, nil
}

func (s *Store) CreateProjectAgent(ctx context.Context, agent *model.ProjectAgent) error {
	return translate(s.db.WithContext(ctx).Create(agent).Error)
}

func (s *Store) ListProjectThreads(ctx context.Context, projectID uint) ([]*model.Thread, error) {
	var threads []*model.Thread
	err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Find(&threads).Error
	return threads, translate(err)
}

func (s *Store) CreateThread(ctx context.Context, thread *model.Thread) error {
	return translate(s.db.WithContext(ctx).Create(thread).Error)
}

func (s *Store) MarkOnboardingComplete(ctx context.Context, userID uint) (bool, error) {
	var state model.OnboardingState
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&state).Error
	if err == nil && state.Completed && state.Stage >= model.OnboardingFinalStage {
		return true, nil
	}

	state.UserID = userID
	state.Stage = model.OnboardingFinalStage
	state.Completed = true
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"stage", "completed", "updated_at"}),
		}).
		Create(&state).Error
	return false, translate(err)
}
