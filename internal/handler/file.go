package handler

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/loomworks/loomspace/dao"
	"github.com/loomworks/loomspace/dao/model"
	"github.com/loomworks/loomspace/internal/resputil"
	"github.com/loomworks/loomspace/internal/util"
	"github.com/loomworks/loomspace/pkg/objectstore"
	"github.com/loomworks/loomspace/pkg/transfer"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewFileMgr)
}

type FileMgr struct {
	name     string
	store    *dao.Store
	objects  objectstore.ObjectStore
	workflow *transfer.Workflow
}

func NewFileMgr(conf *RegisterConfig) Manager {
	return &FileMgr{
		name:     "files",
		store:    conf.Store,
		objects:  conf.Objects,
		workflow: conf.Transfers,
	}
}

func (mgr *FileMgr) GetName() string { return mgr.name }

func (mgr *FileMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *FileMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("/upload", mgr.Upload)
	g.GET("/mindspace", mgr.ListMindspace)
	g.GET("/:id/download", mgr.Download)
	g.POST("/copy", mgr.Copy)
	g.POST("/delete", mgr.Delete)
}

func (mgr *FileMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	FileUploadReq struct {
		WorkspaceID uint `form:"workspace_id" binding:"required"`
	}

	FileResp struct {
		ID       uint   `json:"id"`
		Name     string `json:"name"`
		Size     int64  `json:"size"`
		MimeType string `json:"mime_type"`
		BucketID uint   `json:"bucket_id"`
	}

	FileCopyReq struct {
		SourceFileIDs []uint `json:"source_file_ids" binding:"required,min=1"`
		TargetStageID uint   `json:"target_stage_id" binding:"required"`
	}

	FileDeleteReq struct {
		FileIDs []uint `json:"file_ids" binding:"required,min=1"`
	}
)

func toFileResp(f *model.FileRecord) FileResp {
	return FileResp{
		ID:       f.ID,
		Name:     f.Name,
		Size:     f.Size,
		MimeType: f.MimeType,
		BucketID: f.BucketID,
	}
}

// Upload godoc
// @Summary Upload a file into the caller's mindspace
// @Description Store the object in the mindspace bucket of the given workspace and record its metadata
// @Tags File
// @Accept multipart/form-data
// @Produce json
// @Security Bearer
// @Param workspace_id formData uint true "workspace id"
// @Param file formData file true "file content"
// @Success 200 {object} resputil.Response[FileResp] "the stored file"
// @Failure 400 {object} resputil.Response[any] "Request parameter error"
// @Failure 424 {object} resputil.Response[any] "mindspace bucket is not provisioned"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /v1/files/upload [post]
func (mgr *FileMgr) Upload(c *gin.Context) {
	token := util.GetToken(c)

	var req FileUploadReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		resputil.BadRequestError(c, "file is required")
		return
	}

	// The mindspace bucket is created during provisioning; uploading into a
	// workspace that was never provisioned is a caller error.
	bucketName := objectstore.MindspaceBucketName(req.WorkspaceID, token.UserID)
	var bucket model.Bucket
	if err := mgr.store.DB().WithContext(c).Where("name = ?", bucketName).First(&bucket).Error; err != nil {
		resputil.HTTPError(c, http.StatusFailedDependency, "mindspace bucket is not provisioned", resputil.DependencyNotReady)
		return
	}
	if bucket.OwnerID != token.UserID {
		resputil.HTTPError(c, http.StatusForbidden, "mindspace belongs to another user", resputil.UserNotAllowed)
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		resputil.Error(c, fmt.Sprintf("open upload failed, detail: %v", err), resputil.NotSpecified)
		return
	}
	defer src.Close()

	name := filepath.Base(fileHeader.Filename)
	key := objectstore.ObjectKey(name)
	size, err := mgr.objects.Put(c, bucket.Name, key, src)
	if err != nil {
		resputil.Error(c, fmt.Sprintf("store object failed, detail: %v", err), resputil.StorageFailure)
		return
	}

	record := model.FileRecord{
		BucketID:   bucket.ID,
		Path:       key,
		Name:       name,
		Size:       size,
		MimeType:   fileHeader.Header.Get("Content-Type"),
		UploadedBy: token.UserID,
	}
	if err := mgr.store.DB().WithContext(c).Create(&record).Error; err != nil {
		// The object must not outlive a failed record insert.
		_ = mgr.objects.Delete(c, bucket.Name, key)
		resputil.Error(c, fmt.Sprintf("create file record failed, detail: %v", err), resputil.NotSpecified)
		return
	}

	resputil.Success(c, toFileResp(&record))
}

// ListMindspace godoc
// @Summary List the caller's mindspace files
// @Tags File
// @Produce json
// @Security Bearer
// @Param workspace_id query uint true "workspace id"
// @Success 200 {object} resputil.Response[[]FileResp] "mindspace files"
// @Failure 424 {object} resputil.Response[any] "mindspace bucket is not provisioned"
// @Router /v1/files/mindspace [get]
func (mgr *FileMgr) ListMindspace(c *gin.Context) {
	token := util.GetToken(c)

	var req FileUploadReq
	if err := c.ShouldBindQuery(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	bucketName := objectstore.MindspaceBucketName(req.WorkspaceID, token.UserID)
	var bucket model.Bucket
	if err := mgr.store.DB().WithContext(c).Where("name = ?", bucketName).First(&bucket).Error; err != nil {
		resputil.HTTPError(c, http.StatusFailedDependency, "mindspace bucket is not provisioned", resputil.DependencyNotReady)
		return
	}

	var files []*model.FileRecord
	err := mgr.store.DB().WithContext(c).
		Where("bucket_id = ?", bucket.ID).
		Order("id DESC").
		Find(&files).Error
	if err != nil {
		resputil.Error(c, fmt.Sprintf("list files failed, detail: %v", err), resputil.NotSpecified)
		return
	}

	resp := make([]FileResp, 0, len(files))
	for _, f := range files {
		resp = append(resp, toFileResp(f))
	}
	resputil.Success(c, resp)
}

// Download godoc
// @Summary Download a file
// @Description Stream the object of a file record the caller owns
// @Tags File
// @Produce octet-stream
// @Security Bearer
// @Param id path uint true "file id"
// @Success 200 {file} binary "file content"
// @Failure 403 {object} resputil.Response[any] "file belongs to another user"
// @Failure 404 {object} resputil.Response[any] "file or object not found"
// @Router /v1/files/{id}/download [get]
func (mgr *FileMgr) Download(c *gin.Context) {
	token := util.GetToken(c)

	var idReq struct {
		ID uint `uri:"id" binding:"required"`
	}
	if err := c.ShouldBindUri(&idReq); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	var file model.FileRecord
	if err := mgr.store.DB().WithContext(c).First(&file, idReq.ID).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "file not found", resputil.ResourceNotFound)
		return
	}
	var bucket model.Bucket
	if err := mgr.store.DB().WithContext(c).First(&bucket, file.BucketID).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "bucket not found", resputil.ResourceNotFound)
		return
	}
	if bucket.OwnerID != token.UserID {
		resputil.HTTPError(c, http.StatusForbidden, "file belongs to another user", resputil.UserNotAllowed)
		return
	}

	reader, err := mgr.objects.Get(c, bucket.Name, file.Path)
	if err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "object not found", resputil.ResourceNotFound)
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.DataFromReader(http.StatusOK, file.Size, file.MimeType, reader, nil)
}

// Copy godoc
// @Summary Copy mindspace files into a stage
// @Description Copy one or more mindspace files into the target stage's bucket.
// @Description A single file responds 200 or the workflow error; a batch responds
// @Description 200 when all items succeed, 207 on partial success and 500 when every item fails.
// @Tags File
// @Accept json
// @Produce json
// @Security Bearer
// @Param data body FileCopyReq true "source files and target stage"
// @Success 200 {object} resputil.Response[transfer.BatchResult] "per-item results"
// @Success 207 {object} resputil.Response[transfer.BatchResult] "partial success"
// @Failure 409 {object} resputil.Response[any] "file already copied to this stage"
// @Failure 424 {object} resputil.Response[any] "stage bucket is not provisioned"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /v1/files/copy [post]
func (mgr *FileMgr) Copy(c *gin.Context) {
	token := util.GetToken(c)

	var req FileCopyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	if len(req.SourceFileIDs) == 1 {
		result, err := mgr.workflow.CopyFile(c, &transfer.CopyRequest{
			SourceFileID:  req.SourceFileIDs[0],
			TargetStageID: req.TargetStageID,
			CallerID:      token.UserID,
		})
		if err != nil {
			resputil.WorkflowError(c, err)
			return
		}
		resputil.Success(c, result)
		return
	}

	batch := mgr.workflow.CopyBatch(c, &transfer.BatchRequest{
		SourceFileIDs: req.SourceFileIDs,
		TargetStageID: req.TargetStageID,
		CallerID:      token.UserID,
	})
	respondBatch(c, batch)
}

// Delete godoc
// @Summary Delete mindspace files
// @Description Remove the metadata records and objects; per-item results follow the batch status rules
// @Tags File
// @Accept json
// @Produce json
// @Security Bearer
// @Param data body FileDeleteReq true "file ids"
// @Success 200 {object} resputil.Response[transfer.BatchResult] "per-item results"
// @Success 207 {object} resputil.Response[transfer.BatchResult] "partial success"
// @Failure 500 {object} resputil.Response[any] "every item failed"
// @Router /v1/files/delete [post]
func (mgr *FileMgr) Delete(c *gin.Context) {
	token := util.GetToken(c)

	var req FileDeleteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	batch := mgr.workflow.DeleteBatch(c, req.FileIDs, token.UserID)
	respondBatch(c, batch)
}

// respondBatch maps an aggregate result onto the HTTP status: 200 when all
// items succeeded, 207 on partial success, 500 when nothing succeeded.
func respondBatch(c *gin.Context, batch *transfer.BatchResult) {
	switch {
	case batch.Summary.Failed == 0:
		resputil.Success(c, batch)
	case batch.Summary.Succeeded == 0:
		resputil.SuccessWithStatus(c, http.StatusInternalServerError, batch)
	default:
		resputil.SuccessWithStatus(c, http.StatusMultiStatus, batch)
	}
}
