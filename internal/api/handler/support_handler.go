package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/supportdesk/pkg/response"
)

type createThreadRequest struct {
	Subject string `json:"subject" binding:"required"`
	Message string `json:"message" binding:"required"`
}

type addMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// ListThreads 当前用户的工单
// @Summary 我的工单列表
// @Tags 工单
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]service.ThreadSummary}
// @Failure 401 {object} response.Response
// @Router /api/v1/support/threads [get]
func (h *Handler) ListThreads(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := h.tickets.ListThreads(c.Request.Context(), user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, list)
}

// GetThread 工单详情，同时把客服回复标记为已读
// @Summary 工单详情
// @Tags 工单
// @Produce json
// @Security BearerAuth
// @Param thread_id path string true "工单ID"
// @Success 200 {object} response.Response{data=service.ThreadDetail}
// @Failure 404 {object} response.Response
// @Router /api/v1/support/threads/{thread_id} [get]
func (h *Handler) GetThread(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	detail, err := h.tickets.GetThread(c.Request.Context(), user.ID, c.Param("thread_id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, detail)
}

// CreateThread 新建工单
// @Summary 新建工单
// @Tags 工单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createThreadRequest true "主题与首条消息"
// @Success 201 {object} response.Response{data=service.ThreadSummary}
// @Failure 400 {object} response.Response
// @Router /api/v1/support/threads [post]
func (h *Handler) CreateThread(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req createThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindMessage(err))
		return
	}
	summary, err := h.tickets.CreateThread(c.Request.Context(), user, req.Subject, req.Message)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, summary)
}

// AddMessage 用户追加消息
// @Summary 回复工单
// @Tags 工单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param thread_id path string true "工单ID"
// @Param request body addMessageRequest true "消息内容"
// @Success 201 {object} response.Response{data=service.MessageView}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/support/threads/{thread_id}/messages [post]
func (h *Handler) AddMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req addMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindMessage(err))
		return
	}
	msg, err := h.tickets.AddMessage(c.Request.Context(), user.ID, c.Param("thread_id"), req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, msg)
}

// UnreadCount 未读客服回复数
// @Summary 未读数
// @Tags 工单
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=map[string]int64}
// @Router /api/v1/support/notifications/unread-count [get]
func (h *Handler) UnreadCount(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	n, err := h.tickets.UnreadCount(c.Request.Context(), user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"count": n})
}
