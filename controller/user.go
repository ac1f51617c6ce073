package controller

import (
	"encoding/base64"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/linxy101-sys/too/dao/mysql"
	"github.com/linxy101-sys/too/models"
)

// LoginHandler 登录业务
// 校验内置账号表，成功后拉取云端数据建会话，返回自动登录令牌
func (h *Handler) LoginHandler(c *gin.Context) {
	var fo *models.LoginForm
	if err := c.ShouldBindJSON(&fo); err != nil {
		zap.L().Error("Login with invalid param", zap.Error(err))
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			ResponseError(c, CodeInvalidParams)
			return
		}
		ResponseErrorWithMsg(c, CodeInvalidParams, removeTopStruct(errs.Translate(trans)))
		return
	}

	if !models.CheckLogin(fo.UserName, fo.Password) {
		zap.L().Warn("login rejected", zap.String("username", fo.UserName))
		ResponseError(c, CodeInvalidPassword)
		return
	}

	sess, err := h.mgr.Open(c.Request.Context(), fo.UserName)
	if err != nil {
		zap.L().Error("open session failed", zap.String("username", fo.UserName), zap.Error(err))
		ResponseError(c, CodeServerBusy)
		return
	}

	mysql.InsertAction(fo.UserName, "LOGIN", "Success")

	sess.Lock()
	used, limit := sess.Data.UsageCount, sess.Data.QuotaLimit
	sess.Unlock()

	ResponseSuccess(c, gin.H{
		"username":    fo.UserName,
		"token":       base64.StdEncoding.EncodeToString([]byte(fo.UserName)),
		"usage_count": used,
		"quota_limit": limit,
		"is_admin":    fo.UserName == models.AdminUser,
	})
}

// LogoutHandler 登出：保存会话并释放轮询 runner
func (h *Handler) LogoutHandler(c *gin.Context) {
	username := c.GetString(ctxUserKey)
	h.mgr.Close(c.Request.Context(), username)
	mysql.InsertAction(username, "LOGOUT", "")
	ResponseSuccess(c, nil)
}

// ProfileHandler 当前用户的额度概况
func (h *Handler) ProfileHandler(c *gin.Context) {
	sess := h.session(c)
	if sess == nil {
		return
	}
	sess.Lock()
	defer sess.Unlock()
	ResponseSuccess(c, gin.H{
		"username":     sess.Username,
		"usage_count":  sess.Data.UsageCount,
		"quota_limit":  sess.Data.QuotaLimit,
		"active_tasks": sess.Data.ActiveVideoCount(),
	})
}
