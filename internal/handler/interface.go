package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/loomworks/loomspace/dao"
	"github.com/loomworks/loomspace/internal/util"
	"github.com/loomworks/loomspace/pkg/invitation"
	"github.com/loomworks/loomspace/pkg/objectstore"
	"github.com/loomworks/loomspace/pkg/provision"
	"github.com/loomworks/loomspace/pkg/transfer"
)

type Manager interface {
	GetName() string
	RegisterPublic(group *gin.RouterGroup)
	RegisterProtected(group *gin.RouterGroup)
	RegisterAdmin(group *gin.RouterGroup)
}

// RegisterConfig carries the shared dependencies into the managers. Every
// handle is injected here; no package-level singletons.
type RegisterConfig struct {
	Store        *dao.Store
	Objects      objectstore.ObjectStore
	Orchestrator *provision.Orchestrator
	Invitations  *invitation.Workflow
	Transfers    *transfer.Workflow
	TokenMgr     *util.TokenManager
}

type ManagerRegisterFunc func(conf *RegisterConfig) Manager

var Registers []ManagerRegisterFunc
