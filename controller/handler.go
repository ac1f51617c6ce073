package controller

import (
	"encoding/base64"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/linxy101-sys/too/client/genapi"
	"github.com/linxy101-sys/too/logic"
	"github.com/linxy101-sys/too/models"
)

const ctxUserKey = "username"

// Handler 持有所有业务依赖，路由处理函数都挂在它上面
type Handler struct {
	mgr   *logic.Manager
	video *logic.VideoService
	image *logic.ImageService
	chat  *genapi.Client
}

func NewHandler(mgr *logic.Manager, video *logic.VideoService, image *logic.ImageService, chat *genapi.Client) *Handler {
	return &Handler{mgr: mgr, video: video, image: image, chat: chat}
}

// AuthMiddleware 解析 Authorization: Bearer <token> 并恢复会话。
// token 是用户名的 base64（和历史版本的自动登录令牌一致），
// 解出的用户名必须在内置账号表里。
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.Request.Header.Get("Authorization")
		if authHeader == "" {
			ResponseError(c, CodeNeedLogin)
			c.Abort()
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			ResponseErrorWithMsg(c, CodeInvalidToken, "Token格式不对")
			c.Abort()
			return
		}
		raw, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			ResponseError(c, CodeInvalidToken)
			c.Abort()
			return
		}
		username := string(raw)
		if _, ok := models.Users[username]; !ok {
			ResponseError(c, CodeInvalidToken)
			c.Abort()
			return
		}
		// 服务重启后内存会话丢了，用 token 里的身份静默恢复
		if h.mgr.Get(username) == nil {
			if _, err := h.mgr.Open(c.Request.Context(), username); err != nil {
				ResponseError(c, CodeServerBusy)
				c.Abort()
				return
			}
		}
		c.Set(ctxUserKey, username)
		c.Next()
	}
}

// AdminOnly 管理后台接口只放行 admin
func (h *Handler) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxUserKey) != models.AdminUser {
			ResponseError(c, CodeNoPermission)
			c.Abort()
			return
		}
		c.Next()
	}
}

// session 取当前请求用户的会话，没有就返回 nil 并已写好响应
func (h *Handler) session(c *gin.Context) *logic.Session {
	sess := h.mgr.Get(c.GetString(ctxUserKey))
	if sess == nil {
		ResponseError(c, CodeNeedLogin)
	}
	return sess
}
