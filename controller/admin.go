package controller

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/linxy101-sys/too/dao/mysql"
	"github.com/linxy101-sys/too/models"
	"github.com/linxy101-sys/too/util"
)

// adminRecord 后台监控里一行生成记录
type adminRecord struct {
	User   string `json:"user"`
	Type   string `json:"type"` // 视频 / 图片
	Prompt string `json:"prompt"`
	Status string `json:"status"`
	Time   string `json:"time"`
}

// AdminRecordsHandler 全站生成记录（读云端全量文档后平铺）
func (h *Handler) AdminRecordsHandler(c *gin.Context) {
	all, err := h.mgr.Store().LoadAll(c.Request.Context())
	if err != nil {
		zap.L().Error("admin load all failed", zap.Error(err))
		ResponseError(c, CodeServerBusy)
		return
	}

	records := []adminRecord{}
	for user, data := range all {
		for _, t := range data.VideoTasks {
			records = append(records, adminRecord{
				User:   user,
				Type:   "视频",
				Prompt: util.Truncate(t.Prompt, 50),
				Status: t.Status,
				Time:   t.CreatedAt,
			})
		}
		for _, t := range data.ImageTasks {
			records = append(records, adminRecord{
				User:   user,
				Type:   "图片",
				Prompt: util.Truncate(t.Prompt, 50),
				Status: "Success",
				Time:   t.Time,
			})
		}
	}
	ResponseSuccess(c, gin.H{"records": records})
}

// quotaRow 额度管理里一行
type quotaRow struct {
	User  string `json:"user"`
	Used  int64  `json:"used"`
	Limit int64  `json:"limit"`
}

// AdminQuotasGetHandler 所有内置账号的额度情况
func (h *Handler) AdminQuotasGetHandler(c *gin.Context) {
	all, err := h.mgr.Store().LoadAll(c.Request.Context())
	if err != nil {
		zap.L().Error("admin load all failed", zap.Error(err))
		ResponseError(c, CodeServerBusy)
		return
	}
	rows := make([]quotaRow, 0, len(models.Users))
	for user := range models.Users {
		row := quotaRow{User: user, Limit: models.DefaultQuota}
		if data, ok := all[user]; ok {
			row.Used = data.UsageCount
			row.Limit = data.QuotaLimit
		}
		rows = append(rows, row)
	}
	ResponseSuccess(c, gin.H{"quotas": rows})
}

// AdminQuotasPutHandler 批量改额度上限。读全量、改目标用户、批量写回——
// 和在线会话的保存是同一份文档，最后写的赢（已知的多写方竞争）。
func (h *Handler) AdminQuotasPutHandler(c *gin.Context) {
	var fo struct {
		Quotas map[string]int64 `json:"quotas" binding:"required"`
	}
	if err := c.ShouldBindJSON(&fo); err != nil {
		ResponseError(c, CodeInvalidParams)
		return
	}

	all, err := h.mgr.Store().LoadAll(c.Request.Context())
	if err != nil {
		zap.L().Error("admin load all failed", zap.Error(err))
		ResponseError(c, CodeServerBusy)
		return
	}

	for user, limit := range fo.Quotas {
		if _, ok := models.Users[user]; !ok || limit < 0 {
			continue
		}
		data, ok := all[user]
		if !ok {
			data = models.NewUserData()
			all[user] = data
		}
		data.QuotaLimit = limit
		// 在线会话立刻生效，不用等重新登录
		h.mgr.ApplyQuota(user, limit)
	}

	if err := h.mgr.Store().SaveAll(c.Request.Context(), all); err != nil {
		zap.L().Error("admin save all failed", zap.Error(err))
		ResponseError(c, CodeServerBusy)
		return
	}
	mysql.InsertAction(c.GetString(ctxUserKey), "ADMIN_SET_QUOTA", "")
	ResponseSuccess(c, nil)
}

// AdminInitHandler 初始化/修复云端库：给还没有文档的内置账号补一份默认结构，
// 已有数据不动
func (h *Handler) AdminInitHandler(c *gin.Context) {
	all, err := h.mgr.Store().LoadAll(c.Request.Context())
	if err != nil {
		zap.L().Error("admin load all failed", zap.Error(err))
		ResponseError(c, CodeServerBusy)
		return
	}

	created := 0
	for user := range models.Users {
		if _, ok := all[user]; !ok {
			all[user] = models.NewUserData()
			created++
		}
	}

	if err := h.mgr.Store().SaveAll(c.Request.Context(), all); err != nil {
		zap.L().Error("admin init failed", zap.Error(err))
		ResponseError(c, CodeServerBusy)
		return
	}
	mysql.InsertAction(c.GetString(ctxUserKey), "ADMIN_INIT_DB", "")
	ResponseSuccess(c, gin.H{"created": created})
}

// AdminActionsHandler 最近的操作审计
func (h *Handler) AdminActionsHandler(c *gin.Context) {
	logs, err := mysql.RecentActions(100)
	if err != nil {
		zap.L().Error("load action logs failed", zap.Error(err))
		ResponseError(c, CodeServerBusy)
		return
	}
	ResponseSuccess(c, gin.H{"actions": logs})
}
