package dao

import (
	"context"

	"github.com/loomworks/loomspace/dao/model"
	"github.com/loomworks/loomspace/pkg/objectstore"
	"github.com/loomworks/loomspace/pkg/transfer"
)

// transfer.Store implementation.

func (s *Store) FindFile(ctx context.Context, id uint) (*model.FileRecord, error) {
	var file model.FileRecord
	err := s.db.WithContext(ctx).First(&file, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &file, nil
}

func (s *Store) FindBucketByID(ctx context.Context, id uint) (*model.Bucket, error) {
	var bucket model.Bucket
	err := s.db.WithContext(ctx).First(&bucket, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &bucket, nil
}

// FindStageChain resolves stage → project → workspace for access checks.
func (s *Store) FindStageChain(ctx context.Context, stageID uint) (*transfer.StageChain, error) {
	var stage model.ProjectStage
	if err := s.db.WithContext(ctx).First(&stage, stageID).Error; err != nil {
		return nil, translate(err)
	}
	var project model.Project
	if err := s.db.WithContext(ctx).First(&project, stage.ProjectID).Error; err != nil {
		return nil, translate(err)
	}
	var ws model.Workspace
	if err := s.db.WithContext(ctx).First(&ws, project.WorkspaceID).Error; err != nil {
		return nil, translate(err)
	}
	return &transfer.StageChain{Stage: &stage, Project: &project, Workspace: &ws}, nil
}

func (s *Store) FindStageBucket(ctx context.Context, stageID uint) (*model.Bucket, error) {
	return s.FindBucketByName(ctx, objectstore.StageBucketName(stageID))
}

func (s *Store) FindFileBySource(ctx context.Context, bucketID, sourceFileID uint) (*model.FileRecord, error) {
	var file model.FileRecord
	err := s.db.WithContext(ctx).
		Where("bucket_id = ? AND source_file_id = ?", bucketID, sourceFileID).
		First(&file).Error
	if err != nil {
		return nil, translate(err)
	}
	return &file, nil
}

func (s *Store) CreateFile(ctx context.Context, f *model.FileRecord) error {
	return translate(s.db.WithContext(ctx).Create(f).Error)
}

func (s *Store) DeleteFile(ctx context.Context, id uint) error {
	return translate(s.db.WithContext(ctx).Delete(&model.FileRecord{}, id).Error)
}
