package logic

import (
	"context"
	"time"

	"github.com/linxy101-sys/too/dao/mysql"
	"github.com/linxy101-sys/too/models"
	"github.com/linxy101-sys/too/util"
)

// ImageGenerator 绘图服务对远端客户端的最小依赖
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// ImageService 绘图是同步接口：提交即阻塞到出结果，没有轮询。
// 额度规则和视频一致：检查时预占名额，失败退回。
type ImageService struct {
	client ImageGenerator
	gate   *QuotaGate
	mgr    *Manager
}

func NewImageService(client ImageGenerator, gate *QuotaGate, mgr *Manager) *ImageService {
	return &ImageService{client: client, gate: gate, mgr: mgr}
}

// Generate 生成一张图并头插到历史记录
func (s *ImageService) Generate(ctx context.Context, sess *Session, prompt string) (*models.ImageTask, error) {
	sess.Lock()
	if !s.gate.Available(sess.Data) {
		sess.Unlock()
		return nil, ErrQuotaExceeded
	}
	s.gate.Consume(sess.Data, 1)
	sess.Unlock()

	result, err := s.client.GenerateImage(ctx, prompt)
	if err != nil {
		sess.Lock()
		s.gate.Refund(sess.Data, 1)
		sess.Unlock()
		return nil, err
	}

	t := models.ImageTask{
		Prompt: prompt,
		Result: result,
		Time:   time.Now().Format("2006-01-02 15:04"),
	}

	sess.Lock()
	sess.Data.InsertImageTask(t)
	sess.Unlock()

	s.mgr.Save(ctx, sess)
	mysql.InsertAction(sess.Username, "GENERATE_IMAGE", util.Truncate(prompt, 20))
	return &t, nil
}

// Clear 清空绘图记录并落库
func (s *ImageService) Clear(ctx context.Context, sess *Session) {
	sess.Lock()
	sess.Data.ImageTasks = []models.ImageTask{}
	sess.Unlock()
	s.mgr.Save(ctx, sess)
}
