package sse

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServeSSE 建立 SSE 长连接，订阅当前登录用户的事件流。
// 任务状态变化、额度扣减、后台通知都会从这条连接推送。
// 用户名由鉴权中间件写入上下文，不信任查询参数。
func ServeSSE(c *gin.Context) {
	username := c.GetString("username")
	if username == "" {
		c.String(http.StatusUnauthorized, "need login")
		return
	}

	h := GetHub()
	if h == nil {
		c.String(http.StatusInternalServerError, "sse hub not initialized")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.String(http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// 每个连接一个带缓冲的通道，断开时由本函数取消订阅
	msgCh := make(chan []byte, 16)
	h.Subscribe(msgCh, username)
	defer h.Unsubscribe(msgCh, username)

	notify := c.Request.Context().Done()
	// 初次握手注释帧，部分代理需要它来保持连接
	fmt.Fprintf(c.Writer, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-notify:
			return
		case msg := <-msgCh:
			if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", string(msg)); err != nil {
				zap.L().Warn("sse write failed", zap.String("user", username), zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}
