package store

import (
	"context"

	"github.com/linxy101-sys/too/models"
)

// UserStore 用户文档持久化接口，key 是用户名。
//
// 保存语义是 read-modify-write 的 last-write-wins：同一用户开多个标签页、
// 或管理员批量写入时可能互相覆盖，这里不做 CAS 和加锁——单用户工作台
// 可以接受，多会话正确性不在保证范围内。
// 所有写入都是尽力而为：失败记日志、给用户一条临时提示，不中断内存里的流程。
type UserStore interface {
	// Load 读取单个用户的文档，不存在时返回 (nil, nil)
	Load(ctx context.Context, username string) (*models.UserData, error)
	// LoadAll 读取全量用户文档（管理后台用）
	LoadAll(ctx context.Context) (map[string]*models.UserData, error)
	// Save 覆盖写入单个用户的文档
	Save(ctx context.Context, username string, data *models.UserData) error
	// SaveAll 批量覆盖写入（管理员改额度、初始化）
	SaveAll(ctx context.Context, all map[string]*models.UserData) error
}
