package controller

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linxy101-sys/too/client/genapi"
	"github.com/linxy101-sys/too/dao/mysql"
	"github.com/linxy101-sys/too/models"
	"github.com/linxy101-sys/too/util"
)

type sessionBrief struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Current bool   `json:"current"`
}

// ListChatSessionsHandler 对话列表
func (h *Handler) ListChatSessionsHandler(c *gin.Context) {
	sess := h.session(c)
	if sess == nil {
		return
	}
	sess.Lock()
	defer sess.Unlock()
	sess.Data.EnsureSession()
	list := make([]sessionBrief, 0, len(sess.Data.ChatSessions))
	for id, cs := range sess.Data.ChatSessions {
		list = append(list, sessionBrief{ID: id, Title: cs.Title, Current: id == sess.Data.CurrentSessionID})
	}
	ResponseSuccess(c, gin.H{"sessions": list, "current": sess.Data.CurrentSessionID})
}

// CreateChatSessionHandler 新建对话并切换过去
func (h *Handler) CreateChatSessionHandler(c *gin.Context) {
	sess := h.session(c)
	if sess == nil {
		return
	}
	id := uuid.New().String()
	sess.Lock()
	sess.Data.ChatSessions[id] = models.ChatSession{
		Title:    "对话 " + time.Now().Format("15:04"),
		Messages: []models.ChatMessage{},
	}
	sess.Data.CurrentSessionID = id
	sess.Unlock()
	h.mgr.Save(c.Request.Context(), sess)
	ResponseSuccess(c, gin.H{"id": id})
}

// DeleteChatSessionHandler 删除对话，最后一个不让删
func (h *Handler) DeleteChatSessionHandler(c *gin.Context) {
	sess := h.session(c)
	if sess == nil {
		return
	}
	id := c.Param("session_id")
	sess.Lock()
	if len(sess.Data.ChatSessions) <= 1 {
		sess.Unlock()
		ResponseErrorWithMsg(c, CodeInvalidParams, "至少保留一个对话")
		return
	}
	if _, ok := sess.Data.ChatSessions[id]; !ok {
		sess.Unlock()
		ResponseError(c, CodeInvalidParams)
		return
	}
	delete(sess.Data.ChatSessions, id)
	sess.Data.EnsureSession()
	sess.Unlock()
	h.mgr.Save(c.Request.Context(), sess)
	ResponseSuccess(c, nil)
}

// RenameChatSessionHandler 改对话标题
func (h *Handler) RenameChatSessionHandler(c *gin.Context) {
	var fo struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&fo); err != nil {
		ResponseError(c, CodeInvalidParams)
		return
	}
	sess := h.session(c)
	if sess == nil {
		return
	}
	id := c.Param("session_id")
	sess.Lock()
	cs, ok := sess.Data.ChatSessions[id]
	if !ok {
		sess.Unlock()
		ResponseError(c, CodeInvalidParams)
		return
	}
	cs.Title = fo.Title
	sess.Data.ChatSessions[id] = cs
	sess.Unlock()
	h.mgr.Save(c.Request.Context(), sess)
	ResponseSuccess(c, nil)
}

// SwitchChatSessionHandler 切换当前对话
func (h *Handler) SwitchChatSessionHandler(c *gin.Context) {
	var fo struct {
		SessionID string `json:"session_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&fo); err != nil {
		ResponseError(c, CodeInvalidParams)
		return
	}
	sess := h.session(c)
	if sess == nil {
		return
	}
	sess.Lock()
	_, ok := sess.Data.ChatSessions[fo.SessionID]
	if ok {
		sess.Data.CurrentSessionID = fo.SessionID
	}
	sess.Unlock()
	if !ok {
		ResponseError(c, CodeInvalidParams)
		return
	}
	h.mgr.Save(c.Request.Context(), sess)
	ResponseSuccess(c, nil)
}

// GetChatMessagesHandler 当前对话的消息
func (h *Handler) GetChatMessagesHandler(c *gin.Context) {
	sess := h.session(c)
	if sess == nil {
		return
	}
	sess.Lock()
	defer sess.Unlock()
	sess.Data.EnsureSession()
	cs := sess.Data.ChatSessions[sess.Data.CurrentSessionID]
	ResponseSuccess(c, gin.H{
		"session_id": sess.Data.CurrentSessionID,
		"title":      cs.Title,
		"messages":   cs.Messages,
	})
}

// buildChatMessages 把历史消息转成对话接口的载荷，带图的消息走多模态格式
func buildChatMessages(history []models.ChatMessage) []genapi.Message {
	msgs := make([]genapi.Message, 0, len(history))
	for _, m := range history {
		if len(m.Images) == 0 {
			msgs = append(msgs, genapi.Message{Role: m.Role, Content: m.Content})
			continue
		}
		parts := []interface{}{genapi.TextPart{Type: "text", Text: m.Content}}
		for _, img := range m.Images {
			parts = append(parts, genapi.NewImagePart(img))
		}
		msgs = append(msgs, genapi.Message{Role: m.Role, Content: parts})
	}
	return msgs
}

// SendChatMessageHandler 发消息并以 SSE 流式返回助手回复。
// 用户消息先落库；流结束后把完整回复追加进会话再落一次。
// 流中途出错时已收到的内容照样保留，错误文本拼在后面。
func (h *Handler) SendChatMessageHandler(c *gin.Context) {
	var fo struct {
		Content string   `json:"content" binding:"required"`
		Images  []string `json:"images"`
	}
	if err := c.ShouldBindJSON(&fo); err != nil {
		ResponseError(c, CodeInvalidParams)
		return
	}
	sess := h.session(c)
	if sess == nil {
		return
	}

	sess.Lock()
	sess.Data.EnsureSession()
	sessionID := sess.Data.CurrentSessionID
	cs := sess.Data.ChatSessions[sessionID]
	cs.Messages = append(cs.Messages, models.ChatMessage{
		Role:    "user",
		Content: fo.Content,
		Images:  fo.Images,
	})
	sess.Data.ChatSessions[sessionID] = cs
	apiMsgs := buildChatMessages(cs.Messages)
	sess.Unlock()
	h.mgr.Save(c.Request.Context(), sess)
	mysql.InsertAction(sess.Username, "CHAT", util.Truncate(fo.Content, 20))

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		ResponseError(c, CodeServerBusy)
		return
	}

	full, err := h.chat.ChatStream(c.Request.Context(), apiMsgs, func(delta string) {
		fmt.Fprintf(c.Writer, "data: %s\n\n", util.EncodeSSEData(delta))
		flusher.Flush()
	})
	if err != nil {
		zap.L().Error("chat stream failed", zap.String("username", sess.Username), zap.Error(err))
		if full == "" {
			full = "Error: " + err.Error()
		}
	}
	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	flusher.Flush()

	sess.Lock()
	cs = sess.Data.ChatSessions[sessionID]
	cs.Messages = append(cs.Messages, models.ChatMessage{Role: "assistant", Content: full})
	sess.Data.ChatSessions[sessionID] = cs
	sess.Unlock()
	h.mgr.Save(c.Request.Context(), sess)
}

// ExtractHandler 从一段助手回复里提取分镜脚本和文案块，
// 提取到的分镜存入会话等确认提交
func (h *Handler) ExtractHandler(c *gin.Context) {
	var fo struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&fo); err != nil {
		ResponseError(c, CodeInvalidParams)
		return
	}
	sess := h.session(c)
	if sess == nil {
		return
	}

	prompts, anchor := util.ExtractPrompts(fo.Content)
	blocks := util.ExtractCopyBlocks(fo.Content)

	sess.Lock()
	sess.PendingPrompts = prompts
	sess.StyleAnchor = anchor
	sess.Unlock()

	ResponseSuccess(c, gin.H{
		"prompts":     prompts,
		"anchor":      anchor,
		"copy_blocks": blocks,
	})
}

// PendingPromptsHandler 查看待确认的分镜
func (h *Handler) PendingPromptsHandler(c *gin.Context) {
	sess := h.session(c)
	if sess == nil {
		return
	}
	sess.Lock()
	defer sess.Unlock()
	ResponseSuccess(c, gin.H{
		"prompts": sess.PendingPrompts,
		"anchor":  sess.StyleAnchor,
	})
}

// CancelPendingHandler 放弃待确认的分镜
func (h *Handler) CancelPendingHandler(c *gin.Context) {
	sess := h.session(c)
	if sess == nil {
		return
	}
	sess.Lock()
	sess.PendingPrompts = nil
	sess.StyleAnchor = ""
	sess.Unlock()
	ResponseSuccess(c, nil)
}
