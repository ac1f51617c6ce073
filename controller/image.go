package controller

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/linxy101-sys/too/logic"
	"github.com/linxy101-sys/too/models"
)

// GenerateImageHandler 绘图。同步接口，阻塞到出结果
func (h *Handler) GenerateImageHandler(c *gin.Context) {
	var fo *models.SubmitImageForm
	if err := c.ShouldBindJSON(&fo); err != nil {
		zap.L().Error("GenerateImage with invalid param", zap.Error(err))
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

	t, err := h.image.Generate(c.Request.Context(), sess, fo.Prompt)
	if err != nil {
		if errors.Is(err, logic.ErrQuotaExceeded) {
			ResponseError(c, CodeQuotaExceeded)
			return
		}
		zap.L().Error("generate image failed", zap.String("username", sess.Username), zap.Error(err))
		ResponseErrorWithMsg(c, CodeRemoteFailed, err.Error())
		return
	}
	ResponseSuccess(c, t)
}

// ListImageTasksHandler 绘图历史
func (h *Handler) ListImageTasksHandler(c *gin.Context) {
	sess := h.session(c)
	if sess == nil {
		return
	}
	sess.Lock()
	tasks := make([]models.ImageTask, len(sess.Data.ImageTasks))
	copy(tasks, sess.Data.ImageTasks)
	sess.Unlock()
	ResponseSuccess(c, gin.H{"tasks": tasks})
}

// ClearImageTasksHandler 清空绘图记录
func (h *Handler) ClearImageTasksHandler(c *gin.Context) {
	sess := h.session(c)
	if sess == nil {
		return
	}
	h.image.Clear(c.Request.Context(), sess)
	ResponseSuccess(c, nil)
}
