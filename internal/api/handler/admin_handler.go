package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/supportdesk/internal/service"
	"github.com/d60-Lab/supportdesk/pkg/response"
)

type adminListQuery struct {
	Status   string `form:"status" binding:"omitempty,thread_status"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

type replyRequest struct {
	Message string `json:"message" binding:"required,max=5000"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required,thread_status"`
}

type sendEmailRequest struct {
	ToEmail string `json:"to_email" binding:"required,email"`
	Subject string `json:"subject" binding:"required,max=200"`
	Message string `json:"message" binding:"required,max=10000"`
	HTML    bool   `json:"html"`
}

type auditLogQuery struct {
	ThreadID string `form:"thread_id"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// AdminListThreads 全部工单，可按状态过滤
// @Summary 工单列表（管理员）
// @Tags 工单管理
// @Produce json
// @Security BearerAuth
// @Param status query string false "状态" Enums(open, pending, closed)
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(50)
// @Success 200 {object} response.Response{data=service.AdminThreadPage}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/v1/admin/support/threads [get]
func (h *Handler) AdminListThreads(c *gin.Context) {
	var q adminListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, bindMessage(err))
		return
	}
	page, err := h.admin.ListThreads(c.Request.Context(), service.AdminThreadFilter{
		Status:   q.Status,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, page)
}

// AdminGetThread 任意工单详情
// @Summary 工单详情（管理员）
// @Tags 工单管理
// @Produce json
// @Security BearerAuth
// @Param thread_id path string true "工单ID"
// @Success 200 {object} response.Response{data=service.AdminThreadDetail}
// @Failure 404 {object} response.Response
// @Router /api/v1/admin/support/threads/{thread_id} [get]
func (h *Handler) AdminGetThread(c *gin.Context) {
	detail, err := h.admin.GetThread(c.Request.Context(), c.Param("thread_id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, detail)
}

// AdminReply 客服回复；已关闭的工单会重新打开为 pending
// @Summary 回复工单（管理员）
// @Tags 工单管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param X-CSRF-Token header string true "CSRF 令牌"
// @Param thread_id path string true "工单ID"
// @Param request body replyRequest true "回复内容"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/admin/support/threads/{thread_id}/reply [post]
func (h *Handler) AdminReply(c *gin.Context) {
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindMessage(err))
		return
	}
	msg, err := h.admin.Reply(c.Request.Context(), actor(c), c.Param("thread_id"), req.Message)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "Reply sent successfully", "reply": msg})
}

// AdminUpdateStatus 设置工单状态
// @Summary 修改工单状态（管理员）
// @Tags 工单管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param X-CSRF-Token header string true "CSRF 令牌"
// @Param thread_id path string true "工单ID"
// @Param request body statusRequest true "目标状态"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/admin/support/threads/{thread_id}/status [put]
func (h *Handler) AdminUpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindMessage(err))
		return
	}
	summary, err := h.admin.SetStatus(c.Request.Context(), actor(c), c.Param("thread_id"), req.Status)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"message": "Thread status updated successfully",
		"status":  summary.Status,
		"thread":  summary,
	})
}

// AdminDeleteThread 删除工单及其消息
// @Summary 删除工单（管理员）
// @Tags 工单管理
// @Produce json
// @Security BearerAuth
// @Param X-CSRF-Token header string true "CSRF 令牌"
// @Param thread_id path string true "工单ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/admin/support/threads/{thread_id} [delete]
func (h *Handler) AdminDeleteThread(c *gin.Context) {
	if err := h.admin.DeleteThread(c.Request.Context(), actor(c), c.Param("thread_id")); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "Thread deleted successfully"})
}

// AdminSendEmail 给指定用户发邮件，发送失败返回 502
// @Summary 发送邮件（管理员）
// @Tags 工单管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param X-CSRF-Token header string true "CSRF 令牌"
// @Param user_id path string true "用户ID"
// @Param request body sendEmailRequest true "邮件内容"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /api/v1/admin/users/{user_id}/send-email [post]
func (h *Handler) AdminSendEmail(c *gin.Context) {
	var req sendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindMessage(err))
		return
	}
	err := h.admin.SendEmail(c.Request.Context(), actor(c), c.Param("user_id"), service.SendEmailInput{
		ToEmail: req.ToEmail,
		Subject: req.Subject,
		Message: req.Message,
		HTML:    req.HTML,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "Email sent successfully"})
}

// AdminListAuditLogs 审计日志
// @Summary 审计日志（管理员）
// @Tags 工单管理
// @Produce json
// @Security BearerAuth
// @Param thread_id query string false "工单ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(50)
// @Success 200 {object} response.Response{data=service.AuditLogPage}
// @Router /api/v1/admin/audit-logs [get]
func (h *Handler) AdminListAuditLogs(c *gin.Context) {
	var q auditLogQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, bindMessage(err))
		return
	}
	page, err := h.admin.ListAuditLogs(c.Request.Context(), q.ThreadID, q.Page, q.PageSize)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, page)
}
