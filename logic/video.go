package logic

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/linxy101-sys/too/dao/mysql"
	"github.com/linxy101-sys/too/models"
	"github.com/linxy101-sys/too/pkg/snowflake"
	"github.com/linxy101-sys/too/util"
)

// 重试时旧记录缺参数的兜底值（和历史版本一致）
const (
	defaultNegativePrompt = "low quality, blurry"
	defaultAspectRatio    = "9:16"
	defaultDuration       = 8
)

// batchSubmitGap 批量提交时相邻两次创建请求的间隔，给远端留口气
const batchSubmitGap = 500 * time.Millisecond

// ErrTaskNotFound 按记录ID找不到任务
var ErrTaskNotFound = errors.New("任务不存在")

// VideoCreator 提交服务对远端客户端的最小依赖
type VideoCreator interface {
	CreateVideo(ctx context.Context, prompt, negativePrompt, aspectRatio string, durationSeconds int) (string, error)
}

// BatchFailure 批量提交中单个分镜的失败信息
type BatchFailure struct {
	Index   int    `json:"index"` // 从 1 开始的分镜序号
	Message string `json:"message"`
}

// VideoService 视频任务的提交 / 重试 / 批量提交 / 清空。
// 额度检查在任何远端调用之前，名额随检查预占，远端失败原数退回。
type VideoService struct {
	client VideoCreator
	gate   *QuotaGate
	mgr    *Manager
}

func NewVideoService(client VideoCreator, gate *QuotaGate, mgr *Manager) *VideoService {
	return &VideoService{client: client, gate: gate, mgr: mgr}
}

// newTask 用本地雪花ID组装一条新记录。LastCheck 置 0，首个刷新周期就有资格被查。
func newTask(remoteID, prompt string, params models.VideoParams) models.VideoTask {
	recordID, err := snowflake.GetIDString()
	if err != nil {
		// 雪花没初始化时退化到远端ID，别让提交流程死在本地ID上
		recordID = remoteID
	}
	now := time.Now()
	return models.VideoTask{
		RecordID:    recordID,
		ID:          remoteID,
		Prompt:      prompt,
		Status:      models.StatusQueued,
		CreatedAt:   now.Format("15:04:05"),
		CreatedUnix: now.Unix(),
		LastCheck:   0,
		Params:      params,
	}
}

// Submit 提交单个视频任务。
// 额度不足直接拒绝（不打远端）；名额在检查的同一个临界区里预占，
// 并发提交抢不到同一个名额。远端失败退回名额、诊断信息原样带给调用方。
func (v *VideoService) Submit(ctx context.Context, sess *Session, prompt string, params models.VideoParams) (*models.VideoTask, error) {
	sess.Lock()
	if !v.gate.Available(sess.Data) {
		sess.Unlock()
		return nil, ErrQuotaExceeded
	}
	v.gate.Consume(sess.Data, 1)
	sess.Unlock()

	// 远端调用不占会话锁，轮询 runner 不用等它
	remoteID, err := v.client.CreateVideo(ctx, prompt, params.NegativePrompt, params.AspectRatio, params.Duration)
	if err != nil {
		sess.Lock()
		v.gate.Refund(sess.Data, 1)
		sess.Unlock()
		return nil, err
	}

	t := newTask(remoteID, prompt, params)

	sess.Lock()
	sess.Data.InsertVideoTask(t)
	sess.VideoPage = 1
	sess.Unlock()

	v.mgr.Save(ctx, sess)
	v.mgr.Kick(sess.Username)
	mysql.InsertAction(sess.Username, "SUBMIT_VIDEO", util.Truncate(prompt, 20))
	return &t, nil
}

// Retry 重试一条记录：用旧记录存的参数克隆一条全新任务插到头部，
// 旧记录（包括失败状态）原封不动。
func (v *VideoService) Retry(ctx context.Context, sess *Session, recordID string) (*models.VideoTask, error) {
	sess.Lock()
	src := sess.Data.FindVideoTask(recordID)
	var prompt string
	var params models.VideoParams
	if src != nil {
		prompt = src.Prompt
		params = src.Params
	}
	sess.Unlock()

	if src == nil {
		return nil, ErrTaskNotFound
	}
	if params.NegativePrompt == "" {
		params.NegativePrompt = defaultNegativePrompt
	}
	if params.AspectRatio == "" {
		params.AspectRatio = defaultAspectRatio
	}
	if params.Duration == 0 {
		params.Duration = defaultDuration
	}

	t, err := v.Submit(ctx, sess, prompt, params)
	if err != nil {
		return nil, err
	}
	mysql.InsertAction(sess.Username, "RETRY_VIDEO", recordID)
	return t, nil
}

// SubmitBatch 批量提交分镜脚本。整批的名额在动手前一次性预占；逐条提交，
// 成功的插入头部，失败的带序号报回去；收尾按 QuotaPolicy 算实际应扣数，
// 多占的退回。
func (v *VideoService) SubmitBatch(ctx context.Context, sess *Session, prompts []string, anchor string, params models.VideoParams) ([]models.VideoTask, []BatchFailure, error) {
	reserved := v.gate.BatchCharge(len(prompts))
	sess.Lock()
	if !v.gate.Available(sess.Data) {
		sess.Unlock()
		return nil, nil, ErrQuotaExceeded
	}
	v.gate.Consume(sess.Data, reserved)
	sess.Unlock()

	var submitted []models.VideoTask
	var failures []BatchFailure
	for i, p := range prompts {
		finalPrompt := util.ApplyAnchor(p, anchor)
		remoteID, err := v.client.CreateVideo(ctx, finalPrompt, params.NegativePrompt, params.AspectRatio, params.Duration)
		if err != nil {
			failures = append(failures, BatchFailure{Index: i + 1, Message: err.Error()})
		} else {
			submitted = append(submitted, newTask(remoteID, finalPrompt, params))
		}
		if i < len(prompts)-1 {
			time.Sleep(batchSubmitGap)
		}
	}

	sess.Lock()
	for _, t := range submitted {
		sess.Data.InsertVideoTask(t)
	}
	sess.VideoPage = 1
	sess.PendingPrompts = nil
	v.gate.Refund(sess.Data, reserved-v.gate.BatchCharge(len(submitted)))
	sess.Unlock()

	if len(submitted) > 0 {
		v.mgr.Save(ctx, sess)
		v.mgr.Kick(sess.Username)
	}
	zap.L().Info("batch video submit",
		zap.String("username", sess.Username),
		zap.Int("submitted", len(submitted)),
		zap.Int("failed", len(failures)))
	mysql.InsertAction(sess.Username, "SUBMIT_VIDEO_BATCH", "")
	return submitted, failures, nil
}

// Clear 清空当前用户的视频记录并落库
func (v *VideoService) Clear(ctx context.Context, sess *Session) {
	sess.Lock()
	sess.Data.VideoTasks = []models.VideoTask{}
	sess.Unlock()
	v.mgr.Save(ctx, sess)
}
