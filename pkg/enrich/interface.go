package enrich

import "context"

type (
	ExtractRequest struct {
		StorageKey  string `json:"storage_key"`
		BucketName  string `json:"bucket_name"`
		ProjectID   uint   `json:"project_id"`
		StageID     uint   `json:"stage_id"`
		WorkspaceID uint   `json:"workspace_id,omitempty"`
	}

	Metadata struct {
		Summary  string   `json:"summary"`
		Tags     []string `json:"tags"`
		Category string   `json:"category"`
	}

	ProcessRequest struct {
		ExtractRequest
		Summary  string   `json:"summary"`
		Tags     []string `json:"tags"`
		Category string   `json:"category"`
	}

	ProcessResult struct {
		DocumentID  string `json:"document_id"`
		Status      string `json:"status"`
		Message     string `json:"message"`
		ProcessedAt string `json:"processed_at"`
		BucketName  string `json:"bucket_name"`
	}
)

// Service is the narrow contract the file-transfer workflow consumes.
// Failures are always non-fatal to the operation that triggered them.
type Service interface {
	ExtractMetadata(ctx context.Context, req *ExtractRequest) (*Metadata, error)
	ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
}
