package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loomworks/loomspace/dao"
	"github.com/loomworks/loomspace/dao/model"
	"github.com/loomworks/loomspace/internal/resputil"
	"github.com/loomworks/loomspace/internal/util"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewStageMgr)
}

type StageMgr struct {
	name  string
	store *dao.Store
}

func NewStageMgr(conf *RegisterConfig) Manager {
	return &StageMgr{
		name:  "stages",
		store: conf.Store,
	}
}

func (mgr *StageMgr) GetName() string { return mgr.name }

func (mgr *StageMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *StageMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("", mgr.List)
	g.GET("/:id/files", mgr.ListFiles)
}

func (mgr *StageMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	StageListReq struct {
		ProjectID uint `form:"project_id" binding:"required"`
	}

	StageIDReq struct {
		ID uint `uri:"id" binding:"required"`
	}

	StageResp struct {
		ID              uint              `json:"id"`
		ProjectID       uint              `json:"project_id"`
		StageTemplateID uint              `json:"stage_template_id"`
		Name            string            `json:"name"`
		Position        int               `json:"position"`
		Status          model.StageStatus `json:"status"`
	}
)

// stageAccessible reports whether the caller owns the stage's project or holds
// a membership on it.
func (mgr *StageMgr) stageAccessible(c *gin.Context, project *model.Project, userID uint) bool {
	if project.OwnerID == userID {
		return true
	}
	var membership model.ProjectMembership
	err := mgr.store.DB().WithContext(c).
		Where("project_id = ? AND user_id = ?", project.ID, userID).
		First(&membership).Error
	return err == nil
}

// List godoc
// @Summary List the stages of a project
// @Tags Stage
// @Produce json
// @Security Bearer
// @Param project_id query uint true "project id"
// @Success 200 {object} resputil.Response[[]StageResp] "stages ordered by position"
// @Failure 403 {object} resputil.Response[any] "no access to the project"
// @Router /v1/stages [get]
func (mgr *StageMgr) List(c *gin.Context) {
	token := util.GetToken(c)

	var req StageListReq
	if err := c.ShouldBindQuery(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	var project model.Project
	if err := mgr.store.DB().WithContext(c).First(&project, req.ProjectID).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "project not found", resputil.ResourceNotFound)
		return
	}
	if !mgr.stageAccessible(c, &project, token.UserID) {
		resputil.HTTPError(c, http.StatusForbidden, "no access to this project", resputil.UserNotAllowed)
		return
	}

	var stages []*model.ProjectStage
	err := mgr.store.DB().WithContext(c).
		Where("project_id = ?", project.ID).
		Order("position ASC").
		Find(&stages).Error
	if err != nil {
		resputil.Error(c, fmt.Sprintf("list stages failed, detail: %v", err), resputil.NotSpecified)
		return
	}

	resp := make([]StageResp, 0, len(stages))
	for _, s := range stages {
		resp = append(resp, StageResp{
			ID:              s.ID,
			ProjectID:       s.ProjectID,
			StageTemplateID: s.StageTemplateID,
			Name:            s.Name,
			Position:        s.Position,
			Status:          s.Status,
		})
	}
	resputil.Success(c, resp)
}

// ListFiles godoc
// @Summary List the files in a stage's bucket
// @Tags Stage
// @Produce json
// @Security Bearer
// @Param id path StageIDReq true "stage id"
// @Success 200 {object} resputil.Response[[]FileResp] "stage files"
// @Failure 403 {object} resputil.Response[any] "no access to the project"
// @Failure 424 {object} resputil.Response[any] "stage bucket is not provisioned"
// @Router /v1/stages/{id}/files [get]
func (mgr *StageMgr) ListFiles(c *gin.Context) {
	token := util.GetToken(c)

	var idReq StageIDReq
	if err := c.ShouldBindUri(&idReq); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	var stage model.ProjectStage
	if err := mgr.store.DB().WithContext(c).First(&stage, idReq.ID).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "stage not found", resputil.ResourceNotFound)
		return
	}
	var project model.Project
	if err := mgr.store.DB().WithContext(c).First(&project, stage.ProjectID).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "project not found", resputil.ResourceNotFound)
		return
	}
	if !mgr.stageAccessible(c, &project, token.UserID) {
		resputil.HTTPError(c, http.StatusForbidden, "no access to this project", resputil.UserNotAllowed)
		return
	}

	var bucket model.Bucket
	err := mgr.store.DB().WithContext(c).
		Where("stage_id = ? AND kind = ?", stage.ID, model.BucketStage).
		First(&bucket).Error
	if err != nil {
		resputil.HTTPError(c, http.StatusFailedDependency, "stage bucket is not provisioned", resputil.DependencyNotReady)
		return
	}

	var files []*model.FileRecord
	err = mgr.store.DB().WithContext(c).
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
