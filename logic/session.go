package logic

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/linxy101-sys/too/dao/store"
	"github.com/linxy101-sys/too/models"
	"github.com/linxy101-sys/too/pkg/sse"
)

// Session 一个登录用户的内存态：云端文档 + 页面状态。
// 所有组件都显式拿 Session 干活，不走任何包级全局状态。
type Session struct {
	Username string
	Data     *models.UserData

	// 当前浏览的任务列表页码，轮询只覆盖这一页
	VideoPage int

	// 从对话里提取、等待确认提交的分镜脚本
	PendingPrompts []string
	StyleAnchor    string

	mu sync.Mutex
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Manager 会话注册表：按用户名持有 Session 和对应的轮询 runner。
type Manager struct {
	store store.UserStore
	hub   *sse.Hub
	sched *Scheduler

	mu       sync.RWMutex
	sessions map[string]*Session
	runners  map[string]*Runner
}

func NewManager(st store.UserStore, hub *sse.Hub, sched *Scheduler) *Manager {
	return &Manager{
		store:    st,
		hub:      hub,
		sched:    sched,
		sessions: make(map[string]*Session),
		runners:  make(map[string]*Runner),
	}
}

// Get 取已登录用户的会话，没有返回 nil
func (m *Manager) Get(username string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[username]
}

// Open 登录时调用：从云端拉用户文档（没有就初始化一份），建会话并启动轮询 runner。
// 已有会话直接复用（同一账号多标签页共享一份内存态）。
func (m *Manager) Open(ctx context.Context, username string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[username]; ok {
		return sess, nil
	}

	data, err := m.store.Load(ctx, username)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = models.NewUserData()
	}
	data.EnsureSession()
	if data.QuotaLimit == 0 {
		data.QuotaLimit = models.DefaultQuota
	}

	sess := &Session{
		Username:  username,
		Data:      data,
		VideoPage: 1,
	}
	m.sessions[username] = sess

	r := newRunner(sess, m.sched, m, m.hub)
	m.runners[username] = r
	go r.Run()

	return sess, nil
}

// Close 登出：保存、停掉 runner、丢弃内存态
func (m *Manager) Close(ctx context.Context, username string) {
	m.mu.Lock()
	sess := m.sessions[username]
	r := m.runners[username]
	delete(m.sessions, username)
	delete(m.runners, username)
	m.mu.Unlock()

	if r != nil {
		r.Stop()
	}
	if sess != nil {
		m.Save(ctx, sess)
	}
}

// Save 把会话状态写回云端。尽力而为：失败只记日志、给前端一条临时提示，
// 绝不让持久化问题打断内存里的工作流。
// 快照在锁内取好再落库，轮询 runner 和 HTTP handler 并发改数据也不会写出半截文档。
func (m *Manager) Save(ctx context.Context, sess *Session) {
	sess.Lock()
	snap := sess.Data.CloudCopy()
	sess.Unlock()

	if err := m.store.Save(ctx, sess.Username, snap); err != nil {
		zap.L().Error("save user data failed",
			zap.String("username", sess.Username),
			zap.Error(err))
		if m.hub != nil {
			m.hub.PublishEvent(sess.Username, "notice", "数据保存失败")
		}
	}
}

// Kick 提交/重试/翻页之后踢一下 runner，马上开始新的刷新周期
func (m *Manager) Kick(username string) {
	m.mu.RLock()
	r := m.runners[username]
	m.mu.RUnlock()
	if r != nil {
		r.Kick()
	}
}

// ApplyQuota 管理员改完额度后同步到在线会话
func (m *Manager) ApplyQuota(username string, limit int64) {
	m.mu.RLock()
	sess := m.sessions[username]
	m.mu.RUnlock()
	if sess != nil {
		sess.Lock()
		sess.Data.QuotaLimit = limit
		sess.Unlock()
	}
}

// Store 暴露底层存储（管理后台全量读写用）
func (m *Manager) Store() store.UserStore {
	return m.store
}

// Hub 暴露事件推送
func (m *Manager) Hub() *sse.Hub {
	return m.hub
}
