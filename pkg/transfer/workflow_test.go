package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loomspace/dao/model"
	"github.com/loomworks/loomspace/pkg/apperr"
	"github.com/loomworks/loomspace/pkg/enrich"
	"github.com/loomworks/loomspace/pkg/objectstore"
)

type memStore struct {
	nextID uint

	files   map[uint]*model.FileRecord
	buckets map[uint]*model.Bucket
	chains  map[uint]*StageChain

	failCreateFile error
}

func newMemStore() *memStore {
	return &memStore{
		files:   make(map[uint]*model.FileRecord),
		buckets: make(map[uint]*model.Bucket),
		chains:  make(map[uint]*StageChain),
	}
}

func (s *memStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *memStore) FindFile(_ context.Context, id uint) (*model.FileRecord, error) {
	f, ok := s.files[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return f, nil
}

func (s *memStore) FindBucketByID(_ context.Context, id uint) (*model.Bucket, error) {
	b, ok := s.buckets[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return b, nil
}

func (s *memStore) FindStageChain(_ context.Context, stageID uint) (*StageChain, error) {
	c, ok := s.chains[stageID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return c, nil
}

func (s *memStore) FindStageBucket(_ context.Context, stageID uint) (*model.Bucket, error) {
	for _, b := range s.buckets {
		if b.Kind == model.BucketStage && b.StageID != nil && *b.StageID == stageID {
			return b, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (s *memStore) FindFileBySource(_ context.Context, bucketID, sourceFileID uint) (*model.FileRecord, error) {
	for _, f := range s.files {
		if f.BucketID == bucketID && f.SourceFileID != nil && *f.SourceFileID == sourceFileID {
			return f, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (s *memStore) CreateFile(_ context.Context, f *model.FileRecord) error {
	if s.failCreateFile != nil {
		return s.failCreateFile
	}
	if f.SourceFileID != nil {
		for _, existing := range s.files {
			if existing.BucketID == f.BucketID && existing.SourceFileID != nil && *existing.SourceFileID == *f.SourceFileID {
				return apperr.ErrConflict
			}
		}
	}
	f.ID = s.id()
	s.files[f.ID] = f
	return nil
}

func (s *memStore) DeleteFile(_ context.Context, id uint) error {
	if _, ok := s.files[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(s.files, id)
	return nil
}

type memObjects struct {
	buckets map[string]map[string][]byte
	deleted []string
}

func newMemObjects() *memObjects {
	return &memObjects{buckets: make(map[string]map[string][]byte)}
}

func (o *memObjects) EnsureBucket(_ context.Context, bucket string) error {
	if o.buckets[bucket] == nil {
		o.buckets[bucket] = make(map[string][]byte)
	}
	return nil
}

func (o *memObjects) Put(_ context.Context, bucket, key string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if o.buckets[bucket] == nil {
		o.buckets[bucket] = make(map[string][]byte)
	}
	o.buckets[bucket][key] = data
	return int64(len(data)), nil
}

func (o *memObjects) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	data, ok := o.buckets[bucket][key]
	if !ok {
		return nil, objectstore.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (o *memObjects) Delete(_ context.Context, bucket, key string) error {
	if _, ok := o.buckets[bucket][key]; !ok {
		return objectstore.ErrObjectNotFound
	}
	delete(o.buckets[bucket], key)
	o.deleted = append(o.deleted, bucket+"/"+key)
	return nil
}

func (o *memObjects) Exists(_ context.Context, bucket, key string) (bool, error) {
	_, ok := o.buckets[bucket][key]
	return ok, nil
}

func (o *memObjects) count(bucket string) int {
	return len(o.buckets[bucket])
}

type fakeEnricher struct {
	extractErr error
	processErr error
	processed  int
}

func (e *fakeEnricher) ExtractMetadata(_ context.Context, _ *enrich.ExtractRequest) (*enrich.Metadata, error) {
	if e.extractErr != nil {
		return nil, e.extractErr
	}
	return &enrich.Metadata{Summary: "a document", Tags: []string{"doc"}, Category: "general"}, nil
}

func (e *fakeEnricher) ProcessDocument(_ context.Context, _ *enrich.ProcessRequest) (*enrich.ProcessResult, error) {
	if e.processErr != nil {
		return nil, e.processErr
	}
	e.processed++
	return &enrich.ProcessResult{Status: "completed"}, nil
}

const (
	ownerID    = uint(1)
	strangerID = uint(2)
	stageID    = uint(7)
)

type fixture struct {
	store    *memStore
	objects  *memObjects
	enricher *fakeEnricher
	workflow *Workflow

	mindBucket  *model.Bucket
	stageBucket *model.Bucket
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	objects := newMemObjects()
	enricher := &fakeEnricher{}

	f := &fixture{
		store:    store,
		objects:  objects,
		enricher: enricher,
		workflow: NewWorkflow(store, objects, enricher),
	}

	ws := &model.Workspace{Name: "W", OwnerID: ownerID}
	ws.ID = store.id()
	project := &model.Project{WorkspaceID: ws.ID, OwnerID: ownerID, Name: "P"}
	project.ID = store.id()
	stage := &model.ProjectStage{ProjectID: project.ID, Name: "Design"}
	stage.ID = stageID
	store.chains[stageID] = &StageChain{Stage: stage, Project: project, Workspace: ws}

	f.mindBucket = &model.Bucket{
		Kind:        model.BucketMindspace,
		Name:        objectstore.MindspaceBucketName(ws.ID, ownerID),
		WorkspaceID: ws.ID,
		OwnerID:     ownerID,
	}
	f.mindBucket.ID = store.id()
	store.buckets[f.mindBucket.ID] = f.mindBucket

	f.stageBucket = &model.Bucket{
		Kind:        model.BucketStage,
		Name:        objectstore.StageBucketName(stageID),
		WorkspaceID: ws.ID,
		ProjectID:   lo.ToPtr(project.ID),
		StageID:     lo.ToPtr(stageID),
		OwnerID:     ownerID,
	}
	f.stageBucket.ID = store.id()
	store.buckets[f.stageBucket.ID] = f.stageBucket

	require.NoError(t, objects.EnsureBucket(context.Background(), f.mindBucket.Name))
	require.NoError(t, objects.EnsureBucket(context.Background(), f.stageBucket.Name))
	return f
}

// upload seeds one mindspace file, object and record.
func (f *fixture) upload(t *testing.T, name, content string) *model.FileRecord {
	t.Helper()
	key := objectstore.ObjectKey(name)
	size, err := f.objects.Put(context.Background(), f.mindBucket.Name, key, bytes.NewReader([]byte(content)))
	require.NoError(t, err)
	record := &model.FileRecord{
		BucketID:   f.mindBucket.ID,
		Path:       key,
		Name:       name,
		Size:       size,
		MimeType:   "text/plain",
		UploadedBy: ownerID,
	}
	require.NoError(t, f.store.CreateFile(context.Background(), record))
	return record
}

func (f *fixture) copyReq(sourceID uint) *CopyRequest {
	return &CopyRequest{SourceFileID: sourceID, TargetStageID: stageID, CallerID: ownerID}
}

func TestCopyFileCopiesObjectAndRecord(t *testing.T) {
	f := newFixture(t)
	source := f.upload(t, "brief.md", "hello")

	result, err := f.workflow.CopyFile(context.Background(), f.copyReq(source.ID))
	require.NoError(t, err)

	assert.True(t, result.Enriched)
	assert.Equal(t, f.stageBucket.ID, result.File.BucketID)
	assert.Equal(t, source.Name, result.File.Name)
	assert.Equal(t, int64(5), result.File.Size)
	require.NotNil(t, result.File.SourceFileID)
	assert.Equal(t, source.ID, *result.File.SourceFileID)

	// The stage bucket holds the copied bytes, the source object is untouched.
	assert.Equal(t, 1, f.objects.count(f.stageBucket.Name))
	assert.Equal(t, 1, f.objects.count(f.mindBucket.Name))
	assert.Equal(t, 1, f.enricher.processed)
}

func TestCopyFileRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	source := f.upload(t, "brief.md", "hello")

	_, err := f.workflow.CopyFile(context.Background(), f.copyReq(source.ID))
	require.NoError(t, err)

	_, err = f.workflow.CopyFile(context.Background(), f.copyReq(source.ID))
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, 1, f.objects.count(f.stageBucket.Name))
}

func TestCopyFileRejectsForeignFile(t *testing.T) {
	f := newFixture(t)
	source := f.upload(t, "brief.md", "hello")

	_, err := f.workflow.CopyFile(context.Background(), &CopyRequest{
		SourceFileID:  source.ID,
		TargetStageID: stageID,
		CallerID:      strangerID,
	})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestCopyFileRejectsForeignStage(t *testing.T) {
	f := newFixture(t)
	source := f.upload(t, "brief.md", "hello")
	f.store.chains[stageID].Workspace.OwnerID = strangerID

	_, err := f.workflow.CopyFile(context.Background(), f.copyReq(source.ID))
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestCopyFileRequiresProvisionedStageBucket(t *testing.T) {
	f := newFixture(t)
	source := f.upload(t, "brief.md", "hello")
	delete(f.store.buckets, f.stageBucket.ID)

	_, err := f.workflow.CopyFile(context.Background(), f.copyReq(source.ID))
	assert.ErrorIs(t, err, apperr.ErrNotReady)
}

func TestCopyFileCompensatesFailedRecordInsert(t *testing.T) {
	f := newFixture(t)
	source := f.upload(t, "brief.md", "hello")
	f.store.failCreateFile = errors.New("connection reset")

	_, err := f.workflow.CopyFile(context.Background(), f.copyReq(source.ID))
	require.Error(t, err)

	// The uploaded object must not survive the failed insert.
	assert.Equal(t, 0, f.objects.count(f.stageBucket.Name))
	assert.Len(t, f.objects.deleted, 1)
}

func TestCopyFileSurvivesEnrichmentFailure(t *testing.T) {
	f := newFixture(t)
	source := f.upload(t, "brief.md", "hello")
	f.enricher.extractErr = errors.New("service unavailable")

	result, err := f.workflow.CopyFile(context.Background(), f.copyReq(source.ID))
	require.NoError(t, err)
	assert.False(t, result.Enriched)
	assert.Equal(t, 1, f.objects.count(f.stageBucket.Name))
}

func TestCopyFileWithoutEnricher(t *testing.T) {
	f := newFixture(t)
	f.workflow = NewWorkflow(f.store, f.objects, nil)
	source := f.upload(t, "brief.md", "hello")

	result, err := f.workflow.CopyFile(context.Background(), f.copyReq(source.ID))
	require.NoError(t, err)
	assert.False(t, result.Enriched)
}

func TestCopyBatchReportsPerItemResults(t *testing.T) {
	f := newFixture(t)
	a := f.upload(t, "a.md", "aa")
	b := f.upload(t, "b.md", "bb")

	batch := f.workflow.CopyBatch(context.Background(), &BatchRequest{
		SourceFileIDs: []uint{a.ID, 9999, b.ID},
		TargetStageID: stageID,
		CallerID:      ownerID,
	})

	assert.Equal(t, 3, batch.Summary.Total)
	assert.Equal(t, 2, batch.Summary.Succeeded)
	assert.Equal(t, 1, batch.Summary.Failed)

	// Results keep request order regardless of goroutine scheduling.
	require.Len(t, batch.Results, 3)
	assert.Equal(t, a.ID, batch.Results[0].SourceFileID)
	assert.True(t, batch.Results[0].Success)
	assert.Equal(t, uint(9999), batch.Results[1].SourceFileID)
	assert.False(t, batch.Results[1].Success)
	assert.Equal(t, "not_found", batch.Results[1].ErrorKind)
	assert.True(t, batch.Results[2].Success)
}

func TestDeleteMindspaceFileRemovesRecordAndObject(t *testing.T) {
	f := newFixture(t)
	source := f.upload(t, "brief.md", "hello")

	err := f.workflow.DeleteMindspaceFile(context.Background(), source.ID, ownerID)
	require.NoError(t, err)

	_, err = f.store.FindFile(context.Background(), source.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 0, f.objects.count(f.mindBucket.Name))
}

func TestDeleteMindspaceFileRejectsForeignFile(t *testing.T) {
	f := newFixture(t)
	source := f.upload(t, "brief.md", "hello")

	err := f.workflow.DeleteMindspaceFile(context.Background(), source.ID, strangerID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, 1, f.objects.count(f.mindBucket.Name))
}

func TestDeleteBatchAggregates(t *testing.T) {
	f := newFixture(t)
	a := f.upload(t, "a.md", "aa")

	batch := f.workflow.DeleteBatch(context.Background(), []uint{a.ID, 9999}, ownerID)
	assert.Equal(t, 1, batch.Summary.Succeeded)
	assert.Equal(t, 1, batch.Summary.Failed)
}
