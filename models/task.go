package models

import "strings"

// 本地归一化后的任务状态
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusUnknown   = "unknown"
)

// VideoParams 提交视频任务时的生成参数，重试时原样复用
type VideoParams struct {
	NegativePrompt string `json:"neg" bson:"neg"`
	AspectRatio    string `json:"ratio" bson:"ratio"`
	Duration       int    `json:"dur" bson:"dur"`
}

// VideoTask 一条视频生成任务记录
//
// ID 是远端服务下发的任务号，提交成功后不再变化；重试不会修改旧记录，
// 而是用旧记录的参数克隆一条全新记录插到列表头部。
// VideoURL 只在状态为 succeeded 时有值。
type VideoTask struct {
	RecordID    string      `json:"record_id" bson:"record_id"` // 本地记录ID（雪花），重试/删除按它定位
	ID          string      `json:"id" bson:"id"`               // 远端任务ID
	Prompt      string      `json:"prompt" bson:"prompt"`
	Status      string      `json:"status" bson:"status"`
	VideoURL    string      `json:"video_url,omitempty" bson:"video_url,omitempty"`
	Error       string      `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt   string      `json:"created_at" bson:"created_at"`
	CreatedUnix int64       `json:"created_unix" bson:"created_unix"`
	LastCheck   int64       `json:"last_check" bson:"last_check"` // 上次查询的 Unix 秒，节流轮询用
	Params      VideoParams `json:"params" bson:"params"`
}

// Finished 判断任务是否已到终态。unknown 不算终态，下个周期还会再查。
// 兼容云端可能存下来的历史原始状态（success/completed/error 等）。
func (t *VideoTask) Finished() bool {
	switch strings.ToLower(t.Status) {
	case StatusSucceeded, "success", "completed", StatusFailed, "error":
		return true
	}
	return false
}

// NormalizeStatus 把远端五花八门的状态字符串折叠到本地五值状态
func NormalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "queued", "pending", "submitted":
		return StatusQueued
	case "running", "processing", "in_progress", "in progress":
		return StatusRunning
	case "succeeded", "success", "completed", "complete", "done":
		return StatusSucceeded
	case "failed", "error", "expired", "canceled", "cancelled":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

// ImageTask 一条绘图记录（同步接口，提交即出结果）
type ImageTask struct {
	Prompt string `json:"prompt" bson:"prompt"`
	Result string `json:"result" bson:"result"` // markdown 文本，可能内嵌 base64 图片
	Time   string `json:"time" bson:"time"`
}

// ChatMessage 对话消息，图片以 base64 附带
type ChatMessage struct {
	Role    string   `json:"role" bson:"role"`
	Content string   `json:"content" bson:"content"`
	Images  []string `json:"images,omitempty" bson:"images,omitempty"`
}

// ChatSession 一个对话会话
type ChatSession struct {
	Title    string        `json:"title" bson:"title"`
	Messages []ChatMessage `json:"messages" bson:"messages"`
}
