package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loomworks/loomspace/dao"
	"github.com/loomworks/loomspace/dao/model"
	"github.com/loomworks/loomspace/internal/payload"
	"github.com/loomworks/loomspace/internal/resputil"
	"github.com/loomworks/loomspace/internal/util"
	"github.com/loomworks/loomspace/pkg/provision"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewProjectMgr)
}

type ProjectMgr struct {
	name         string
	store        *dao.Store
	orchestrator *provision.Orchestrator
}

func NewProjectMgr(conf *RegisterConfig) Manager {
	return &ProjectMgr{
		name:         "projects",
		store:        conf.Store,
		orchestrator: conf.Orchestrator,
	}
}

func (mgr *ProjectMgr) GetName() string { return mgr.name }

func (mgr *ProjectMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *ProjectMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("", mgr.ListMine)
	g.POST("", mgr.Create)
	g.POST("/:id/provision", mgr.Provision)
}

func (mgr *ProjectMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.GET("", mgr.ListAll)
}

type (
	ProjectCreateReq struct {
		Name        string `json:"name" binding:"required"`
		WorkspaceID uint   `json:"workspace_id" binding:"required"`
	}

	ProjectIDReq struct {
		ID uint `uri:"id" binding:"required"`
	}

	ProjectResp struct {
		ID          uint                `json:"id"`
		Name        string              `json:"name"`
		WorkspaceID uint                `json:"workspace_id"`
		Status      model.ProjectStatus `json:"status"`
		CreatedAt   string              `json:"created_at"`
	}

	ProjectCreateResp struct {
		Project ProjectResp       `json:"project"`
		Steps   *provision.Result `json:"steps"`
	}

	ProjectListReq struct {
		PageIndex *int           `form:"page_index" binding:"required"`
		PageSize  *int           `form:"page_size" binding:"required"`
		NameLike  *string        `form:"name_like"`
		Order     *payload.Order `form:"order"`
	}

	// Swagger does not support nested generics, define an alias
	ProjectListResp payload.ListResp[*model.Project]
)

func toProjectResp(p *model.Project) ProjectResp {
	return ProjectResp{
		ID:          p.ID,
		Name:        p.Name,
		WorkspaceID: p.WorkspaceID,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Create godoc
// @Summary Create a project
// @Description Create a project in one of the caller's workspaces and run the
// @Description full provisioning pipeline: stages, agents, threads and buckets
// @Tags Project
// @Accept json
// @Produce json
// @Security Bearer
// @Param data body ProjectCreateReq true "project info"
// @Success 200 {object} resputil.Response[ProjectCreateResp] "project and per-step results"
// @Failure 400 {object} resputil.Response[any] "Request parameter error"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /v1/projects [post]
func (mgr *ProjectMgr) Create(c *gin.Context) {
	token := util.GetToken(c)

	var req ProjectCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	var ws model.Workspace
	if err := mgr.store.DB().WithContext(c).First(&ws, req.WorkspaceID).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "workspace not found", resputil.ResourceNotFound)
		return
	}
	if ws.OwnerID != token.UserID {
		resputil.HTTPError(c, http.StatusForbidden, "workspace belongs to another user", resputil.UserNotAllowed)
		return
	}

	project := model.Project{
		WorkspaceID: ws.ID,
		OwnerID:     token.UserID,
		Name:        req.Name,
		Status:      model.ProjectPlanning,
	}
	if err := mgr.store.DB().WithContext(c).Create(&project).Error; err != nil {
		resputil.Error(c, fmt.Sprintf("create project failed, detail: %v", err), resputil.NotSpecified)
		return
	}

	result, err := mgr.orchestrator.Provision(c, &provision.Request{
		WorkspaceID: ws.ID,
		ProjectID:   project.ID,
		UserID:      token.UserID,
		ProjectName: project.Name,
	})
	if err != nil {
		// The project row stands; a re-run of provisioning picks up
		// where this one stopped.
		resputil.WorkflowError(c, err)
		return
	}

	resputil.Success(c, ProjectCreateResp{
		Project: toProjectResp(&project),
		Steps:   result,
	})
}

// Provision godoc
// @Summary Re-run provisioning for a project
// @Description Replay the provisioning pipeline; steps whose resources exist report already_exists
// @Tags Project
// @Produce json
// @Security Bearer
// @Param id path ProjectIDReq true "project id"
// @Success 200 {object} resputil.Response[provision.Result] "per-step results"
// @Failure 403 {object} resputil.Response[any] "not the project owner"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /v1/projects/{id}/provision [post]
func (mgr *ProjectMgr) Provision(c *gin.Context) {
	token := util.GetToken(c)

	var idReq ProjectIDReq
	if err := c.ShouldBindUri(&idReq); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	var project model.Project
	if err := mgr.store.DB().WithContext(c).First(&project, idReq.ID).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "project not found", resputil.ResourceNotFound)
		return
	}
	if project.OwnerID != token.UserID {
		resputil.HTTPError(c, http.StatusForbidden, "project belongs to another user", resputil.UserNotAllowed)
		return
	}

	result, err := mgr.orchestrator.Provision(c, &provision.Request{
		WorkspaceID: project.WorkspaceID,
		ProjectID:   project.ID,
		UserID:      token.UserID,
		ProjectName: project.Name,
	})
	if err != nil {
		resputil.WorkflowError(c, err)
		return
	}

	resputil.Success(c, result)
}

// ListMine godoc
// @Summary List the caller's projects
// @Description Projects owned by the caller plus projects joined via invitation
// @Tags Project
// @Produce json
// @Security Bearer
// @Success 200 {object} resputil.Response[[]ProjectResp] "projects"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /v1/projects [get]
func (mgr *ProjectMgr) ListMine(c *gin.Context) {
	token := util.GetToken(c)

	var projects []*model.Project
	err := mgr.store.DB().WithContext(c).
		Distinct("projects.*").
		Joins("LEFT JOIN project_memberships m ON m.project_id = projects.id AND m.deleted_at IS NULL").
		Where("projects.owner_id = ? OR m.user_id = ?", token.UserID, token.UserID).
		Order("projects.id DESC").
		Find(&projects).Error
	if err != nil {
		resputil.Error(c, fmt.Sprintf("list projects failed, detail: %v", err), resputil.NotSpecified)
		return
	}

	resp := make([]ProjectResp, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, toProjectResp(p))
	}
	resputil.Success(c, resp)
}

// ListAll godoc
// @Summary List all projects
// @Description List all projects with filtering, pagination and ordering
// @Tags Project
// @Produce json
// @Security Bearer
// @Param page query ProjectListReq true "pagination"
// @Success 200 {object} resputil.Response[ProjectListResp] "project list"
// @Failure 400 {object} resputil.Response[any] "Request parameter error"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /v1/admin/projects [get]
func (mgr *ProjectMgr) ListAll(c *gin.Context) {
	var req ProjectListReq
	if err := c.ShouldBindQuery(&req); err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}

	q := mgr.store.DB().WithContext(c).Model(&model.Project{})
	if req.NameLike != nil {
		q = q.Where("name LIKE ?", "%"+*req.NameLike+"%")
	}
	if req.Order != nil && *req.Order == payload.Asc {
		q = q.Order("id ASC")
	} else {
		q = q.Order("id DESC")
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}

	var projects []*model.Project
	err := q.Offset((*req.PageIndex) * (*req.PageSize)).Limit(*req.PageSize).Find(&projects).Error
	if err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}

	resputil.Success(c, ProjectListResp{Rows: projects, Count: count})
}
