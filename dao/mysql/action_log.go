package mysql

import (
	"go.uber.org/zap"
)

// ActionLog 用户操作审计记录
type ActionLog struct {
	ID        uint64 `db:"id" json:"id"`
	Username  string `db:"username" json:"username"`
	Action    string `db:"action" json:"action"` // LOGIN / SUBMIT_VIDEO / GENERATE_IMAGE / CHAT ...
	Detail    string `db:"detail" json:"detail"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

// InsertAction 写一条审计记录。尽力而为：MySQL 没配或写失败只打日志，
// 绝不阻塞业务流程。
func InsertAction(username, action, detail string) {
	if Db == nil {
		return
	}
	sqlStr := "INSERT INTO t_action_logs (username, action, detail, created_at) VALUES (?, ?, ?, NOW())"
	if _, err := Db.Exec(sqlStr, username, action, detail); err != nil {
		zap.L().Warn("insert action log failed",
			zap.String("username", username),
			zap.String("action", action),
			zap.Error(err))
	}
}

// RecentActions 最近的操作记录，管理后台展示用
func RecentActions(limit int) ([]ActionLog, error) {
	if Db == nil {
		return []ActionLog{}, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	logs := []ActionLog{}
	sqlStr := "SELECT id, username, action, detail, created_at FROM t_action_logs ORDER BY id DESC LIMIT ?"
	if err := Db.Select(&logs, sqlStr, limit); err != nil {
		return nil, err
	}
	return logs, nil
}
