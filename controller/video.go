package controller

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/linxy101-sys/too/logic"
	"github.com/linxy101-sys/too/models"
)

// SubmitVideoHandler 新建视频任务
// 额度不足前置拒绝；远端失败把原始诊断信息带回给前端
func (h *Handler) SubmitVideoHandler(c *gin.Context) {
	var fo *models.SubmitVideoForm
	if err := c.ShouldBindJSON(&fo); err != nil {
		zap.L().Error("SubmitVideo with invalid param", zap.Error(err))
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			ResponseError(c, CodeInvalidParams)
			return
		}
		ResponseErrorWithMsg(c, CodeInvalidParams, removeTopStruct(errs.Translate(trans)))
		return
	}

	sess := h.session(c)
	if sess == nil {
		return
	}

	t, err := h.video.Submit(c.Request.Context(), sess, fo.Prompt, models.VideoParams{
		NegativePrompt: fo.NegativePrompt,
		AspectRatio:    fo.AspectRatio,
		Duration:       fo.Duration,
	})
	if err != nil {
		if errors.Is(err, logic.ErrQuotaExceeded) {
			ResponseError(c, CodeQuotaExceeded)
			return
		}
		zap.L().Error("submit video failed", zap.String("username", sess.Username), zap.Error(err))
		ResponseErrorWithMsg(c, CodeRemoteFailed, err.Error())
		return
	}
	ResponseSuccess(c, t)
}

// RetryVideoHandler 按记录ID重试：克隆参数提交新任务，旧记录不动
func (h *Handler) RetryVideoHandler(c *gin.Context) {
	sess := h.session(c)
	if sess == nil {
		return
	}

	t, err := h.video.Retry(c.Request.Context(), sess, c.Param("record_id"))
	if err != nil {
		switch {
		case errors.Is(err, logic.ErrQuotaExceeded):
			ResponseError(c, CodeQuotaExceeded)
		case errors.Is(err, logic.ErrTaskNotFound):
			ResponseError(c, CodeTaskNotFound)
		default:
			zap.L().Error("retry video failed", zap.String("username", sess.Username), zap.Error(err))
			ResponseErrorWithMsg(c, CodeRemoteFailed, err.Error())
		}
		return
	}
	ResponseSuccess(c, t)
}

// ListVideoTasksHandler 取一页任务。页码越界夹回合法范围；
// 翻页会把轮询窗口挪到新页并踢一次 runner
func (h *Handler) ListVideoTasksHandler(c *gin.Context) {
	sess := h.session(c)
	if sess == nil {
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		page = 1
	}

	sess.Lock()
	page = sess.Data.ClampVideoPage(page, models.VideosPerPage)
	sess.VideoPage = page
	tasks := sess.Data.VideoPage(page, models.VideosPerPage)
	totalPages := sess.Data.VideoTotalPages(models.VideosPerPage)
	total := len(sess.Data.VideoTasks)
	active := sess.Data.ActiveVideoCount()
	sess.Unlock()

	// 有人在看列表才值得轮询
	h.mgr.Kick(sess.Username)

	ResponseSuccess(c, gin.H{
		"tasks":        tasks,
		"page":         page,
		"total_pages":  totalPages,
		"total":        total,
		"active_tasks": active,
	})
}

// ClearVideoTasksHandler 清空视频记录
func (h *Handler) ClearVideoTasksHandler(c *gin.Context) {
	sess := h.session(c)
	if sess == nil {
		return
	}
	h.video.Clear(c.Request.Context(), sess)
	ResponseSuccess(c, nil)
}

// BatchVideoHandler 分镜批量提交。逐条提交，成功失败分开报
func (h *Handler) BatchVideoHandler(c *gin.Context) {
	var fo *models.BatchVideoForm
	if err := c.ShouldBindJSON(&fo); err != nil {
		zap.L().Error("BatchVideo with invalid param", zap.Error(err))
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			ResponseError(c, CodeInvalidParams)
			return
		}
		ResponseErrorWithMsg(c, CodeInvalidParams, removeTopStruct(errs.Translate(trans)))
		return
	}

	sess := h.session(c)
	if sess == nil {
		return
	}

	submitted, failures, err := h.video.SubmitBatch(c.Request.Context(), sess, fo.Prompts, fo.StyleAnchor, models.VideoParams{
		NegativePrompt: fo.NegativePrompt,
		AspectRatio:    fo.AspectRatio,
		Duration:       fo.Duration,
	})
	if err != nil {
		if errors.Is(err, logic.ErrQuotaExceeded) {
			ResponseError(c, CodeQuotaExceeded)
			return
		}
		ResponseError(c, CodeServerBusy)
		return
	}
	ResponseSuccess(c, gin.H{
		"submitted": len(submitted),
		"failures":  failures,
	})
}
