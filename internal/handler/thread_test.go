package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/loomworks/loomspace/dao"
	"github.com/loomworks/loomspace/dao/model"
	"github.com/loomworks/loomspace/internal/resputil"
	"github.com/loomworks/loomspace/internal/util"
)

func newTestStore(t *testing.T) *dao.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "loomspace.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Project{},
		&model.ProjectMembership{},
		&model.Thread{},
		&model.ThreadMessage{},
	))
	return dao.NewStore(db)
}

// newThreadRouter registers the thread routes behind a stub auth middleware
// that injects the given caller.
func newThreadRouter(store *dao.Store, userID uint) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		util.SetJWTContext(c, util.JWTMessage{UserID: userID, Username: "tester"})
	})
	NewThreadMgr(&RegisterConfig{Store: store}).RegisterProtected(r.Group("/v1/threads"))
	return r
}

func listThreads(t *testing.T, store *dao.Store, userID, projectID uint) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/v1/threads?project_id=%d", projectID), nil)
	newThreadRouter(store, userID).ServeHTTP(w, req)
	return w
}

func TestThreadListRequiresProjectAccess(t *testing.T) {
	store := newTestStore(t)

	project := model.Project{WorkspaceID: 1, OwnerID: 1, Name: "Website Redesign"}
	require.NoError(t, store.DB().Create(&project).Error)
	require.NoError(t, store.DB().Create(&model.Thread{
		ProjectID: project.ID, Type: model.ThreadProjectMain, Title: "General",
	}).Error)
	require.NoError(t, store.DB().Create(&model.ProjectMembership{
		ProjectID: project.ID, UserID: 2, AccessType: model.AccessInvitation,
	}).Error)

	// Owner and invited member both see the project's threads.
	for _, userID := range []uint{1, 2} {
		w := listThreads(t, store, userID, project.ID)
		require.Equal(t, http.StatusOK, w.Code, "user %d", userID)

		var body struct {
			Data []ThreadResp `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Len(t, body.Data, 1, "user %d", userID)
	}

	// A caller without a membership must not enumerate them.
	w := listThreads(t, store, 3, project.ID)
	assert.Equal(t, http.StatusForbidden, w.Code)
	var body struct {
		Code resputil.ErrorCode `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, resputil.UserNotAllowed, body.Code)
}

func TestThreadListUnknownProject(t *testing.T) {
	store := newTestStore(t)

	w := listThreads(t, store, 1, 999)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
