package handler

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/loomworks/loomspace/dao"
	"github.com/loomworks/loomspace/dao/model"
	"github.com/loomworks/loomspace/internal/resputil"
	"github.com/loomworks/loomspace/internal/util"
	"github.com/loomworks/loomspace/pkg/config"
	"github.com/loomworks/loomspace/pkg/logutils"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewThreadMgr)
}

const (
	// WriteTimeout specifies the maximum duration for completing a write operation.
	WriteTimeout = 10 * time.Second
)

// threadHub fans persisted messages out to websocket subscribers, keyed by
// thread id. Slow subscribers drop messages instead of blocking the sender.
type threadHub struct {
	mu   sync.RWMutex
	subs map[uint]map[chan *model.ThreadMessage]struct{}
}

func newThreadHub() *threadHub {
	return &threadHub{subs: make(map[uint]map[chan *model.ThreadMessage]struct{})}
}

func (h *threadHub) subscribe(threadID uint) chan *model.ThreadMessage {
	ch := make(chan *model.ThreadMessage, 16)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[threadID] == nil {
		h.subs[threadID] = make(map[chan *model.ThreadMessage]struct{})
	}
	h.subs[threadID][ch] = struct{}{}
	return ch
}

func (h *threadHub) unsubscribe(threadID uint, ch chan *model.ThreadMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[threadID], ch)
}

func (h *threadHub) publish(msg *model.ThreadMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[msg.ThreadID] {
		select {
		case ch <- msg:
		default:
		}
	}
}

type ThreadMgr struct {
	name  string
	store *dao.Store
	hub   *threadHub
}

func NewThreadMgr(conf *RegisterConfig) Manager {
	return &ThreadMgr{
		name:  "threads",
		store: conf.Store,
		hub:   newThreadHub(),
	}
}

func (mgr *ThreadMgr) GetName() string { return mgr.name }

func (mgr *ThreadMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *ThreadMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("", mgr.List)
	g.GET("/:id/messages", mgr.ListMessages)
	g.POST("/:id/messages", mgr.PostMessage)
	g.GET("/:id/stream", mgr.Stream)
}

func (mgr *ThreadMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	ThreadListReq struct {
		ProjectID uint `form:"project_id" binding:"required"`
	}

	ThreadIDReq struct {
		ID uint `uri:"id" binding:"required"`
	}

	ThreadResp struct {
		ID      uint             `json:"id"`
		Type    model.ThreadType `json:"type"`
		Title   string           `json:"title"`
		StageID *uint            `json:"stage_id,omitempty"`
	}

	MessagePostReq struct {
		Body string `json:"body" binding:"required"`
	}

	MessageResp struct {
		ID        uint   `json:"id"`
		ThreadID  uint   `json:"thread_id"`
		AuthorID  uint   `json:"author_id"`
		Body      string `json:"body"`
		CreatedAt string `json:"created_at"`
	}
)

func toMessageResp(m *model.ThreadMessage) MessageResp {
	return MessageResp{
		ID:        m.ID,
		ThreadID:  m.ThreadID,
		AuthorID:  m.AuthorID,
		Body:      m.Body,
		CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// projectAccessible reports whether the caller owns the project or holds a
// membership on it.
func (mgr *ThreadMgr) projectAccessible(c *gin.Context, project *model.Project, userID uint) bool {
	if project.OwnerID == userID {
		return true
	}
	var membership model.ProjectMembership
	err := mgr.store.DB().WithContext(c).
		Where("project_id = ? AND user_id = ?", project.ID, userID).
		First(&membership).Error
	return err == nil
}

// threadAccessible loads the thread and verifies project access in one shot.
func (mgr *ThreadMgr) threadAccessible(c *gin.Context, threadID, userID uint) (*model.Thread, bool) {
	var thread model.Thread
	if err := mgr.store.DB().WithContext(c).First(&thread, threadID).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "thread not found", resputil.ResourceNotFound)
		return nil, false
	}
	var project model.Project
	if err := mgr.store.DB().WithContext(c).First(&project, thread.ProjectID).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "project not found", resputil.ResourceNotFound)
		return nil, false
	}
	if !mgr.projectAccessible(c, &project, userID) {
		resputil.HTTPError(c, http.StatusForbidden, "no access to this thread", resputil.UserNotAllowed)
		return nil, false
	}
	return &thread, true
}

// List godoc
// @Summary List the threads of a project
// @Tags Thread
// @Produce json
// @Security Bearer
// @Param project_id query uint true "project id"
// @Success 200 {object} resputil.Response[[]ThreadResp] "threads"
// @Failure 403 {object} resputil.Response[any] "no access to the project"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /v1/threads [get]
func (mgr *ThreadMgr) List(c *gin.Context) {
	token := util.GetToken(c)

	var req ThreadListReq
	if err := c.ShouldBindQuery(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	var project model.Project
	if err := mgr.store.DB().WithContext(c).First(&project, req.ProjectID).Error; err != nil {
		resputil.HTTPError(c, http.StatusNotFound, "project not found", resputil.ResourceNotFound)
		return
	}
	if !mgr.projectAccessible(c, &project, token.UserID) {
		resputil.HTTPError(c, http.StatusForbidden, "no access to this project", resputil.UserNotAllowed)
		return
	}

	var threads []*model.Thread
	err := mgr.store.DB().WithContext(c).
		Where("project_id = ?", project.ID).
		Order("id ASC").
		Find(&threads).Error
	if err != nil {
		resputil.Error(c, fmt.Sprintf("list threads failed, detail: %v", err), resputil.NotSpecified)
		return
	}

	resp := make([]ThreadResp, 0, len(threads))
	for _, t := range threads {
		resp = append(resp, ThreadResp{
			ID:      t.ID,
			Type:    t.Type,
			Title:   t.Title,
			StageID: t.StageID,
		})
	}
	resputil.Success(c, resp)
}

// ListMessages godoc
// @Summary List the messages of a thread
// @Tags Thread
// @Produce json
// @Security Bearer
// @Param id path ThreadIDReq true "thread id"
// @Success 200 {object} resputil.Response[[]MessageResp] "messages in creation order"
// @Failure 403 {object} resputil.Response[any] "no access to the thread"
// @Router /v1/threads/{id}/messages [get]
func (mgr *ThreadMgr) ListMessages(c *gin.Context) {
	token := util.GetToken(c)

	var idReq ThreadIDReq
	if err := c.ShouldBindUri(&idReq); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	thread, ok := mgr.threadAccessible(c, idReq.ID, token.UserID)
	if !ok {
		return
	}

	var messages []*model.ThreadMessage
	err := mgr.store.DB().WithContext(c).
		Where("thread_id = ?", thread.ID).
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		resputil.Error(c, fmt.Sprintf("list messages failed, detail: %v", err), resputil.NotSpecified)
		return
	}

	resp := make([]MessageResp, 0, len(messages))
	for _, m := range messages {
		resp = append(resp, toMessageResp(m))
	}
	resputil.Success(c, resp)
}

// PostMessage godoc
// @Summary Post a message into a thread
// @Description Persist the message and fan it out to connected stream subscribers
// @Tags Thread
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path ThreadIDReq true "thread id"
// @Param data body MessagePostReq true "message body"
// @Success 200 {object} resputil.Response[MessageResp] "the stored message"
// @Failure 403 {object} resputil.Response[any] "no access to the thread"
// @Router /v1/threads/{id}/messages [post]
func (mgr *ThreadMgr) PostMessage(c *gin.Context) {
	token := util.GetToken(c)

	var idReq ThreadIDReq
	if err := c.ShouldBindUri(&idReq); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var req MessagePostReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	thread, ok := mgr.threadAccessible(c, idReq.ID, token.UserID)
	if !ok {
		return
	}

	message := model.ThreadMessage{
		ThreadID: thread.ID,
		AuthorID: token.UserID,
		Body:     req.Body,
	}
	if err := mgr.store.DB().WithContext(c).Create(&message).Error; err != nil {
		resputil.Error(c, fmt.Sprintf("create message failed, detail: %v", err), resputil.NotSpecified)
		return
	}

	mgr.hub.publish(&message)
	resputil.Success(c, toMessageResp(&message))
}

// Stream godoc
// @Summary Stream new thread messages over a websocket
// @Description Upgrade the connection and push every message posted to the thread until the client disconnects
// @Tags Thread
// @Security Bearer
// @Param id path ThreadIDReq true "thread id"
// @Router /v1/threads/{id}/stream [get]
func (mgr *ThreadMgr) Stream(c *gin.Context) {
	token := util.GetToken(c)

	var idReq ThreadIDReq
	if err := c.ShouldBindUri(&idReq); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	thread, ok := mgr.threadAccessible(c, idReq.ID, token.UserID)
	if !ok {
		return
	}

	var upgrade = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	// Allow all origins in debug mode
	if config.IsDebugMode() {
		upgrade.CheckOrigin = func(_ *http.Request) bool {
			return true
		}
	}
	ws, err := upgrade.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	defer ws.Close()

	sub := mgr.hub.subscribe(thread.ID)
	defer mgr.hub.unsubscribe(thread.ID, sub)

	// Reader goroutine only detects the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg := <-sub:
			if err := ws.SetWriteDeadline(time.Now().Add(WriteTimeout)); err != nil {
				return
			}
			if err := ws.WriteJSON(toMessageResp(msg)); err != nil {
				logutils.Log.Debugf("thread stream %d: write failed: %v", thread.ID, err)
				return
			}
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
