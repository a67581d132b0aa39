package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/loomworks/loomspace/dao/model"
	"github.com/loomworks/loomspace/pkg/apperr"
	"github.com/loomworks/loomspace/pkg/enrich"
	"github.com/loomworks/loomspace/pkg/logutils"
	"github.com/loomworks/loomspace/pkg/metrics"
	"github.com/loomworks/loomspace/pkg/objectstore"
)

type Workflow struct {
	store    Store
	objects  objectstore.ObjectStore
	enricher enrich.Service
}

func NewWorkflow(store Store, objects objectstore.ObjectStore, enricher enrich.Service) *Workflow {
	return &Workflow{
		store:    store,
		objects:  objects,
		enricher: enricher,
	}
}

// CopyFile copies one mindspace file into the target stage's bucket. Steps
// run strictly in order: ownership checks, duplicate guard, object copy,
// record insert (with compensation), best-effort enrichment.
func (w *Workflow) CopyFile(ctx context.Context, req *CopyRequest) (*CopyResult, error) {
	result, err := w.copyFile(ctx, req)
	if err != nil {
		metrics.FileCopyTotal.WithLabelValues(apperr.Kind(err)).Inc()
		return nil, err
	}
	metrics.FileCopyTotal.WithLabelValues("copied").Inc()
	return result, nil
}

func (w *Workflow) copyFile(ctx context.Context, req *CopyRequest) (*CopyResult, error) {
	// Source file and its owning mindspace bucket.
	source, err := w.store.FindFile(ctx, req.SourceFileID)
	if err != nil {
		return nil, fmt.Errorf("source file: %w", err)
	}
	sourceBucket, err := w.store.FindBucketByID(ctx, source.BucketID)
	if err != nil {
		return nil, fmt.Errorf("source bucket: %w", err)
	}
	if sourceBucket.OwnerID != req.CallerID {
		return nil, fmt.Errorf("%w: file belongs to another user", apperr.ErrForbidden)
	}

	// Target stage access chain: the caller must own the workspace.
	chain, err := w.store.FindStageChain(ctx, req.TargetStageID)
	if err != nil {
		return nil, fmt.Errorf("target stage: %w", err)
	}
	if chain.Workspace.OwnerID != req.CallerID {
		return nil, fmt.Errorf("%w: stage belongs to another workspace", apperr.ErrForbidden)
	}

	// The stage bucket must already be provisioned; copying never creates it.
	targetBucket, err := w.store.FindStageBucket(ctx, req.TargetStageID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("%w: stage bucket is not provisioned", apperr.ErrNotReady)
		}
		return nil, fmt.Errorf("target bucket: %w", err)
	}

	// Duplicate guard: the same source can land in a bucket only once.
	if _, err := w.store.FindFileBySource(ctx, targetBucket.ID, source.ID); err == nil {
		return nil, fmt.Errorf("%w: file already copied to this stage", apperr.ErrConflict)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}

	// Move the bytes. No record is written if the upload fails.
	key := objectstore.ObjectKey(source.Name)
	reader, err := w.objects.Get(ctx, sourceBucket.Name, source.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: download source object: %v", apperr.ErrStorage, err)
	}
	size, err := w.objects.Put(ctx, targetBucket.Name, key, reader)
	_ = reader.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: upload to stage bucket: %v", apperr.ErrStorage, err)
	}

	record := &model.FileRecord{
		BucketID:     targetBucket.ID,
		Path:         key,
		Name:         source.Name,
		Size:         size,
		MimeType:     source.MimeType,
		Deliverable:  source.Deliverable,
		SourceFileID: &source.ID,
		UploadedBy:   req.CallerID,
	}
	if err := w.store.CreateFile(ctx, record); err != nil {
		// Compensate: the uploaded object must not outlive a failed
		// record insert. Best-effort, its own failure is logged only.
		if derr := w.objects.Delete(ctx, targetBucket.Name, key); derr != nil {
			logutils.Log.Warnf("transfer: rollback of %s/%s failed: %v", targetBucket.Name, key, derr)
		}
		if errors.Is(err, apperr.ErrConflict) {
			return nil, fmt.Errorf("%w: file already copied to this stage", apperr.ErrConflict)
		}
		return nil, fmt.Errorf("create file record: %w", err)
	}

	enriched := w.enrichFile(ctx, record, targetBucket, chain)

	return &CopyResult{File: record, Enriched: enriched}, nil
}

// enrichFile extracts metadata and submits the document for indexing. The
// copy is already durable, so every failure here only logs a warning.
func (w *Workflow) enrichFile(ctx context.Context, record *model.FileRecord, bucket *model.Bucket, chain *StageChain) bool {
	if w.enricher == nil {
		return false
	}
	extract := &enrich.ExtractRequest{
		StorageKey:  record.Path,
		BucketName:  bucket.Name,
		ProjectID:   chain.Project.ID,
		StageID:     chain.Stage.ID,
		WorkspaceID: chain.Workspace.ID,
	}
	meta, err := w.enricher.ExtractMetadata(ctx, extract)
	if err != nil {
		logutils.Log.Warnf("transfer: metadata extraction for file %d failed: %v", record.ID, err)
		return false
	}
	if _, err := w.enricher.ProcessDocument(ctx, &enrich.ProcessRequest{
		ExtractRequest: *extract,
		Summary:        meta.Summary,
		Tags:           meta.Tags,
		Category:       meta.Category,
	}); err != nil {
		logutils.Log.Warnf("transfer: document indexing for file %d failed: %v", record.ID, err)
		return false
	}
	return true
}

// CopyBatch fans out one CopyFile per source file and aggregates per-item
// results. One file's failure never affects the others, and ordering across
// items is not guaranteed.
func (w *Workflow) CopyBatch(ctx context.Context, req *BatchRequest) *BatchResult {
	results := make([]ItemResult, len(req.SourceFileIDs))
	var wg sync.WaitGroup
	for i, sourceID := range req.SourceFileIDs {
		wg.Add(1)
		go func(i int, sourceID uint) {
			defer wg.Done()
			item := ItemResult{SourceFileID: sourceID}
			res, err := w.CopyFile(ctx, &CopyRequest{
				SourceFileID:  sourceID,
				TargetStageID: req.TargetStageID,
				CallerID:      req.CallerID,
			})
			if err != nil {
				item.ErrorKind = apperr.Kind(err)
				item.Error = err.Error()
			} else {
				item.Success = true
				item.File = res.File
			}
			results[i] = item
		}(i, sourceID)
	}
	wg.Wait()

	summary := BatchSummary{Total: len(results)}
	for i := range results {
		if results[i].Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	return &BatchResult{Results: results, Summary: summary}
}

// DeleteMindspaceFile removes a mindspace file the caller owns: record first,
// then the object, whose deletion is best-effort.
func (w *Workflow) DeleteMindspaceFile(ctx context.Context, fileID, callerID uint) error {
	file, err := w.store.FindFile(ctx, fileID)
	if err != nil {
		return fmt.Errorf("file: %w", err)
	}
	bucket, err := w.store.FindBucketByID(ctx, file.BucketID)
	if err != nil {
		return fmt.Errorf("bucket: %w", err)
	}
	if bucket.OwnerID != callerID {
		return fmt.Errorf("%w: file belongs to another user", apperr.ErrForbidden)
	}
	if err := w.store.DeleteFile(ctx, file.ID); err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	if err := w.objects.Delete(ctx, bucket.Name, file.Path); err != nil && !errors.Is(err, objectstore.ErrObjectNotFound) {
		logutils.Log.Warnf("transfer: delete object %s/%s failed: %v", bucket.Name, file.Path, err)
	}
	return nil
}

// DeleteBatch fans out DeleteMindspaceFile per file with per-item results.
func (w *Workflow) DeleteBatch(ctx context.Context, fileIDs []uint, callerID uint) *BatchResult {
	results := make([]ItemResult, len(fileIDs))
	var wg sync.WaitGroup
	for i, id := range fileIDs {
		wg.Add(1)
		go func(i int, id uint) {
			defer wg.Done()
			item := ItemResult{SourceFileID: id}
			if err := w.DeleteMindspaceFile(ctx, id, callerID); err != nil {
				item.ErrorKind = apperr.Kind(err)
				item.Error = err.Error()
			} else {
				item.Success = true
			}
			results[i] = item
		}(i, id)
	}
	wg.Wait()

	summary := BatchSummary{Total: len(results)}
	for i := range results {
		if results[i].Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	return &BatchResult{Results: results, Summary: summary}
}
