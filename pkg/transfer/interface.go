// Package transfer copies files from a user's mindspace into a stage bucket:
// move the physical object, write the metadata record, trigger enrichment.
// The object upload and the record insert are not atomic with respect to each
// other, so the workflow compensates by deleting the uploaded object when the
// record insert fails.
package transfer

import (
	"context"

	"github.com/loomworks/loomspace/dao/model"
)

// StageChain is the access chain of a target stage, used for ownership
// verification.
type StageChain struct {
	Stage     *model.ProjectStage
	Project   *model.Project
	Workspace *model.Workspace
}

// Store is the persistence surface of the workflow. Lookups return
// apperr.ErrNotFound when no row matches; creates return apperr.ErrConflict
// on a unique-key violation.
type Store interface {
	FindFile(ctx context.Context, id uint) (*model.FileRecord, error)
	FindBucketByID(ctx context.Context, id uint) (*model.Bucket, error)
	FindStageChain(ctx context.Context, stageID uint) (*StageChain, error)
	FindStageBucket(ctx context.Context, stageID uint) (*model.Bucket, error)
	FindFileBySource(ctx context.Context, bucketID, sourceFileID uint) (*model.FileRecord, error)
	CreateFile(ctx context.Context, f *model.FileRecord) error
	DeleteFile(ctx context.Context, id uint) error
}

type (
	CopyRequest struct {
		SourceFileID  uint
		TargetStageID uint
		CallerID      uint
	}

	CopyResult struct {
		File *model.FileRecord `json:"file"`
		// Enriched is false when the copy succeeded but metadata
		// extraction or indexing did not; the copy stands regardless.
		Enriched bool `json:"enriched"`
	}

	BatchRequest struct {
		SourceFileIDs []uint
		TargetStageID uint
		CallerID      uint
	}

	ItemResult struct {
		SourceFileID uint              `json:"source_file_id"`
		Success      bool              `json:"success"`
		ErrorKind    string            `json:"error_kind,omitempty"`
		Error        string            `json:"error,omitempty"`
		File         *model.FileRecord `json:"file,omitempty"`
	}

	BatchSummary struct {
		Total     int `json:"total"`
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
	}

	BatchResult struct {
		Results []ItemResult `json:"results"`
		Summary BatchSummary `json:"summary"`
	}
)
