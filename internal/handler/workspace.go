package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/loomworks/loomspace/dao"
	"github.com/loomworks/loomspace/dao/model"
	"github.com/loomworks/loomspace/internal/resputil"
	"github.com/loomworks/loomspace/internal/util"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewWorkspaceMgr)
}

type WorkspaceMgr struct {
	name  string
	store *dao.Store
}

func NewWorkspaceMgr(conf *RegisterConfig) Manager {
	return &WorkspaceMgr{
		name:  "workspaces",
		store: conf.Store,
	}
}

func (mgr *WorkspaceMgr) GetName() string { return mgr.name }

func (mgr *WorkspaceMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *WorkspaceMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("", mgr.ListMine)
	g.POST("", mgr.Create)
}

func (mgr *WorkspaceMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.GET("", mgr.ListAll)
}

type (
	WorkspaceCreateReq struct {
		Name string `json:"name" binding:"required"`
	}

	WorkspaceResp struct {
		ID        uint   `json:"id"`
		Name      string `json:"name"`
		OwnerID   uint   `json:"owner_id"`
		CreatedAt string `json:"created_at"`
	}
)

func toWorkspaceResp(ws *model.Workspace) WorkspaceResp {
	return WorkspaceResp{
		ID:        ws.ID,
		Name:      ws.Name,
		OwnerID:   ws.OwnerID,
		CreatedAt: ws.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Create godoc
// @Summary Create a workspace
// @Description Create a workspace owned by the current user
// @Tags Workspace
// @Accept json
// @Produce json
// @Security Bearer
// @Param data body WorkspaceCreateReq true "workspace info"
// @Success 200 {object} resputil.Response[WorkspaceResp] "the created workspace"
// @Failure 400 {object} resputil.Response[any] "Request parameter error"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /v1/workspaces [post]
func (mgr *WorkspaceMgr) Create(c *gin.Context) {
	token := util.GetToken(c)

	var req WorkspaceCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	ws := model.Workspace{
		Name:    req.Name,
		OwnerID: token.UserID,
	}
	if err := mgr.store.DB().WithContext(c).Create(&ws).Error; err != nil {
		resputil.Error(c, fmt.Sprintf("create workspace failed, detail: %v", err), resputil.NotSpecified)
		return
	}

	resputil.Success(c, toWorkspaceResp(&ws))
}

// ListMine godoc
// @Summary List workspaces of the current user
// @Tags Workspace
// @Produce json
// @Security Bearer
// @Success 200 {object} resputil.Response[[]WorkspaceResp] "owned workspaces"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /v1/workspaces [get]
func (mgr *WorkspaceMgr) ListMine(c *gin.Context) {
	token := util.GetToken(c)

	var workspaces []*model.Workspace
	err := mgr.store.DB().WithContext(c).
		Where("owner_id = ?", token.UserID).
		Order("id DESC").
		Find(&workspaces).Error
	if err != nil {
		resputil.Error(c, fmt.Sprintf("list workspaces failed, detail: %v", err), resputil.NotSpecified)
		return
	}

	resp := make([]WorkspaceResp, 0, len(workspaces))
	for _, ws := range workspaces {
		resp = append(resp, toWorkspaceResp(ws))
	}
	resputil.Success(c, resp)
}

// ListAll godoc
// @Summary List all workspaces
// @Tags Workspace
// @Produce json
// @Security Bearer
// @Success 200 {object} resputil.Response[[]WorkspaceResp] "all workspaces"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /v1/admin/workspaces [get]
func (mgr *WorkspaceMgr) ListAll(c *gin.Context) {
	var workspaces []*model.Workspace
	err := mgr.store.DB().WithContext(c).Order("id DESC").Find(&workspaces).Error
	if err != nil {
		resputil.Error(c, fmt.Sprintf("list workspaces failed, detail: %v", err), resputil.NotSpecified)
		return
	}

	resp := make([]WorkspaceResp, 0, len(workspaces))
	for _, ws := range workspaces {
		resp = append(resp, toWorkspaceResp(ws))
	}
	resputil.Success(c, resp)
}
