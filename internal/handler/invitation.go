package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loomworks/loomspace/dao"
	"github.com/loomworks/loomspace/dao/model"
	"github.com/loomworks/loomspace/internal/resputil"
	"github.com/loomworks/loomspace/internal/util"
	"github.com/loomworks/loomspace/pkg/invitation"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewInvitationMgr)
}

type InvitationMgr struct {
	name     string
	store    *dao.Store
	workflow *invitation.Workflow
}

func NewInvitationMgr(conf *RegisterConfig) Manager {
	return &InvitationMgr{
		name:     "invitations",
		store:    conf.Store,
		workflow: conf.Invitations,
	}
}

func (mgr *InvitationMgr) GetName() string { return mgr.name }

func (mgr *InvitationMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *InvitationMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("", mgr.Create)
	g.POST("/accept", mgr.Accept)
}

func (mgr *InvitationMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	InvitationCreateReq struct {
		ProjectID    uint       `json:"project_id" binding:"required"`
		InviteeEmail string     `json:"invitee_email" binding:"required,email"`
		Role         model.Role `json:"role"`
		TTLHours     int        `json:"ttl_hours"`
	}

	InvitationCreateResp struct {
		Code      string `json:"code"`
		ProjectID uint   `json:"project_id"`
		ExpiresAt string `json:"expires_at"`
	}

	InvitationAcceptReq struct {
		Code        string `json:"code" binding:"required"`
		DisplayName string `json:"display_name"`
	}
)

// Create godoc
// @Summary Invite a user to a project
// @Description Generate a single-use invitation code for one of the caller's projects and mail it to the invitee
// @Tags Invitation
// @Accept json
// @Produce json
// @Security Bearer
// @Param data body InvitationCreateReq true "invitation info"
// @Success 200 {object} resputil.Response[InvitationCreateResp] "the generated code"
// @Failure 400 {object} resputil.Response[any] "Request parameter error"
// @Failure 403 {object} resputil.Response[any] "not the project owner"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /v1/invitations [post]
func (mgr *InvitationMgr) Create(c *gin.Context) {
	token := util.GetToken(c)

	var req InvitationCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	var project model.Project
	if err := mgr.store.DB().WithContext(c).First(&project, req.ProjectID).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "project not found", resputil.ResourceNotFound)
		return
	}
	if project.OwnerID != token.UserID {
		resputil.HTTPError(c, http.StatusForbidden, "only the project owner can invite", resputil.UserNotAllowed)
		return
	}

	inv, err := mgr.workflow.Create(c, &invitation.CreateRequest{
		ProjectID:    req.ProjectID,
		InviterID:    token.UserID,
		InviteeEmail: req.InviteeEmail,
		Role:         req.Role,
		TTLHours:     req.TTLHours,
	})
	if err != nil {
		resputil.WorkflowError(c, err)
		return
	}

	resputil.Success(c, InvitationCreateResp{
		Code:      inv.Code,
		ProjectID: inv.ProjectID,
		ExpiresAt: inv.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// Accept godoc
// @Summary Accept an invitation code
// @Description Consume a code; first-time users must pass display_name and get a workspace and starter project provisioned
// @Tags Invitation
// @Accept json
// @Produce json
// @Security Bearer
// @Param data body InvitationAcceptReq true "code and optional display name"
// @Success 200 {object} resputil.Response[invitation.AcceptResult] "joined project and onboarding outcome"
// @Failure 400 {object} resputil.Response[any] "display name missing for a first-time user"
// @Failure 403 {object} resputil.Response[any] "self-invite or email mismatch"
// @Failure 404 {object} resputil.Response[any] "unknown code"
// @Failure 409 {object} resputil.Response[any] "code already used or already a member"
// @Failure 410 {object} resputil.Response[any] "code expired"
// @Router /v1/invitations/accept [post]
func (mgr *InvitationMgr) Accept(c *gin.Context) {
	token := util.GetToken(c)

	var req InvitationAcceptReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	result, err := mgr.workflow.Accept(c, &invitation.AcceptRequest{
		Code:        req.Code,
		CallerID:    token.UserID,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		resputil.WorkflowError(c, err)
		return
	}

	resputil.Success(c, result)
}
