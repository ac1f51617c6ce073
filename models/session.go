package models

import "github.com/google/uuid"

// VideosPerPage 任务列表固定每页 5 条
const VideosPerPage = 5

// DefaultQuota 新用户默认额度
const DefaultQuota = 200

// UserData 单个用户在云端的完整文档，key 为用户名
type UserData struct {
	VideoTasks       []VideoTask            `json:"video_tasks" bson:"video_tasks"`
	ImageTasks       []ImageTask            `json:"image_tasks" bson:"image_tasks"`
	ChatSessions     map[string]ChatSession `json:"chat_sessions" bson:"chat_sessions"`
	CurrentSessionID string                 `json:"current_session_id" bson:"current_session_id"`
	QuotaLimit       int64                  `json:"quota_limit" bson:"quota_limit"`
	UsageCount       int64                  `json:"usage_count" bson:"usage_count"`
}

// NewUserData 初始化一份带默认对话的用户文档
func NewUserData() *UserData {
	id := uuid.New().String()
	return &UserData{
		VideoTasks: []VideoTask{},
		ImageTasks: []ImageTask{},
		ChatSessions: map[string]ChatSession{
			id: {Title: "默认对话", Messages: []ChatMessage{}},
		},
		CurrentSessionID: id,
		QuotaLimit:       DefaultQuota,
		UsageCount:       0,
	}
}

// EnsureSession 保证 CurrentSessionID 指向一个存在的会话
func (d *UserData) EnsureSession() {
	if d.ChatSessions == nil {
		d.ChatSessions = map[string]ChatSession{}
	}
	if _, ok := d.ChatSessions[d.CurrentSessionID]; ok {
		return
	}
	for id := range d.ChatSessions {
		d.CurrentSessionID = id
		return
	}
	id := uuid.New().String()
	d.ChatSessions[id] = ChatSession{Title: "默认对话", Messages: []ChatMessage{}}
	d.CurrentSessionID = id
}

// InsertVideoTask 新任务插到列表头部（最新的在最前面）
func (d *UserData) InsertVideoTask(t VideoTask) {
	d.VideoTasks = append([]VideoTask{t}, d.VideoTasks...)
}

// FindVideoTask 按本地记录ID查找
func (d *UserData) FindVideoTask(recordID string) *VideoTask {
	for i := range d.VideoTasks {
		if d.VideoTasks[i].RecordID == recordID {
			return &d.VideoTasks[i]
		}
	}
	return nil
}

// InsertImageTask 绘图记录同样头插
func (d *UserData) InsertImageTask(t ImageTask) {
	d.ImageTasks = append([]ImageTask{t}, d.ImageTasks...)
}

// VideoTotalPages 总页数，空列表也算 1 页
func (d *UserData) VideoTotalPages(pageSize int) int {
	if pageSize <= 0 {
		pageSize = VideosPerPage
	}
	n := (len(d.VideoTasks) + pageSize - 1) / pageSize
	if n < 1 {
		n = 1
	}
	return n
}

// ClampVideoPage 把页码夹到 [1, totalPages]
func (d *UserData) ClampVideoPage(page, pageSize int) int {
	total := d.VideoTotalPages(pageSize)
	if page < 1 {
		return 1
	}
	if page > total {
		return total
	}
	return page
}

// VideoPageBounds 返回指定页在任务切片上的下标区间 [start, end)
// 页码越界时先夹回合法范围
func (d *UserData) VideoPageBounds(page, pageSize int) (start, end int) {
	if pageSize <= 0 {
		pageSize = VideosPerPage
	}
	page = d.ClampVideoPage(page, pageSize)
	start = (page - 1) * pageSize
	end = start + pageSize
	if end > len(d.VideoTasks) {
		end = len(d.VideoTasks)
	}
	if start > len(d.VideoTasks) {
		start = len(d.VideoTasks)
	}
	return start, end
}

// VideoPage 取一页任务快照
func (d *UserData) VideoPage(page, pageSize int) []VideoTask {
	start, end := d.VideoPageBounds(page, pageSize)
	out := make([]VideoTask, end-start)
	copy(out, d.VideoTasks[start:end])
	return out
}

// archivePlaceholder 超大的 base64 图片结果不上云，只留存档占位
const archivePlaceholder = "🖼️ [图片已生成，云端仅存档记录]"

// imageOmittedNote 对话消息里的图片被剥掉时追加到文本上的说明
const imageOmittedNote = " (图片数据未同步到云端)"

// oversizeResultLimit 超过这个长度的绘图结果视为内嵌了图片数据
const oversizeResultLimit = 500

// CloudCopy 生成一份适合上云的净化副本：内嵌图片数据的绘图结果
// 替换成占位符，对话消息里的 base64 图片整个剥掉、文本上追加说明。
// 内存里的原始数据不动。
func (d *UserData) CloudCopy() *UserData {
	c := *d

	c.ImageTasks = make([]ImageTask, len(d.ImageTasks))
	copy(c.ImageTasks, d.ImageTasks)
	for i := range c.ImageTasks {
		if len(c.ImageTasks[i].Result) > oversizeResultLimit {
			c.ImageTasks[i].Result = archivePlaceholder
		}
	}

	c.ChatSessions = make(map[string]ChatSession, len(d.ChatSessions))
	for id, cs := range d.ChatSessions {
		msgs := make([]ChatMessage, len(cs.Messages))
		copy(msgs, cs.Messages)
		for i := range msgs {
			if len(msgs[i].Images) > 0 {
				msgs[i].Images = nil
				msgs[i].Content += imageOmittedNote
			}
		}
		cs.Messages = msgs
		c.ChatSessions[id] = cs
	}

	return &c
}

// ActiveVideoCount 未到终态的任务数（侧边栏队列进度条用）
func (d *UserData) ActiveVideoCount() int {
	n := 0
	for i := range d.VideoTasks {
		if !d.VideoTasks[i].Finished() {
			n++
		}
	}
	return n
}
