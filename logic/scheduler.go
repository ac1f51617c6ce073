package logic

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/linxy101-sys/too/models"
	"github.com/linxy101-sys/too/pkg/sse"
)

// 轮询参数。上限 2 和 5 秒间隔是为了任务多的时候别把远端查询接口打爆，
// 3 秒空转间隔在不忙等的前提下压住完成延迟。
const (
	MaxChecksPerCycle = 2                // 每个刷新周期最多发出的查询数，硬上限
	MinCheckInterval  = int64(5)         // 同一任务两次查询的最小间隔（秒）
	IdleRefreshDelay  = 3 * time.Second  // 有任务在跑但本周期无变化时的重查延迟
	StuckTaskMaxAge   = 30 * time.Minute // 超过这个年龄还没到终态，按失败收尾
)

// VideoQuerier 调度器对远端客户端的最小依赖
type VideoQuerier interface {
	QueryVideo(ctx context.Context, taskID string) (status, videoURL string)
}

// Outcome 一个刷新周期的结果
type Outcome struct {
	Changed bool // 有任务字段发生了可见变化，需要落库并立刻再来一轮
	Active  bool // 当前页还有未到终态的任务
	Checked int  // 本周期实际发出的查询数
}

// Scheduler 轮询调度器。对 UserData 是纯函数式的：自己不持锁、不落库，
// 谁调用谁负责加锁和持久化。
type Scheduler struct {
	client VideoQuerier
	now    func() int64 // 可注入的时钟，测试用
}

func NewScheduler(client VideoQuerier) *Scheduler {
	return &Scheduler{
		client: client,
		now:    func() int64 { return time.Now().Unix() },
	}
}

// RefreshPage 对当前展示页跑一个刷新周期。只看这一页是有意的取舍：
// 把一次周期的远端调用量限制在页大小以内。
//
// 按页内顺序处理每个未到终态的任务：
//   - 超龄任务直接置为 failed，不再占轮询名额；
//   - 距上次查询超过 MinCheckInterval 的任务才有资格被查，
//     一个周期最多查 MaxChecksPerCycle 个；
//   - 不管查询成败，LastCheck 一律更新，防止失败任务被连环重查；
//   - 拿到结果地址就强制 succeeded；
//   - 任何可见变化立即结束本周期（调用方落库后马上开下一轮）。
//
// 查询失败不会把任务打成失败：状态保持非终态，下个间隔继续查。
func (s *Scheduler) RefreshPage(ctx context.Context, data *models.UserData, page int) Outcome {
	var out Outcome
	now := s.now()
	start, end := data.VideoPageBounds(page, models.VideosPerPage)

	for i := start; i < end; i++ {
		t := &data.VideoTasks[i]
		if t.Finished() {
			continue
		}

		// 超龄收尾：原版任务可以永远停在 queued，这里给它一个明确的终态
		if t.CreatedUnix > 0 && now-t.CreatedUnix > int64(StuckTaskMaxAge/time.Second) {
			t.Status = models.StatusFailed
			t.Error = "等待生成结果超时"
			out.Changed = true
			zap.L().Warn("video task timed out",
				zap.String("record_id", t.RecordID),
				zap.String("task_id", t.ID))
			break
		}

		out.Active = true

		if out.Checked >= MaxChecksPerCycle {
			continue
		}
		if now-t.LastCheck <= MinCheckInterval {
			continue
		}

		status, videoURL := s.client.QueryVideo(ctx, t.ID)
		t.LastCheck = now
		out.Checked++

		changed := false
		if status != models.StatusUnknown && status != "" && t.Status != status {
			t.Status = status
			changed = true
		}
		if videoURL != "" {
			if t.VideoURL != videoURL {
				t.VideoURL = videoURL
				changed = true
			}
			if t.Status != models.StatusSucceeded {
				t.Status = models.StatusSucceeded
				changed = true
			}
		}
		if changed {
			out.Changed = true
			break
		}
	}
	return out
}

// Runner 每个会话一个的轮询循环，替掉了原版"整个页面重跑一遍"的刷新模型。
// 提交、重试、翻页都会 Kick 它；页面上没有在跑的任务时它彻底闲置。
type Runner struct {
	sess  *Session
	sched *Scheduler
	mgr   *Manager
	hub   *sse.Hub

	kick chan struct{}
	stop chan struct{}
}

func newRunner(sess *Session, sched *Scheduler, mgr *Manager, hub *sse.Hub) *Runner {
	return &Runner{
		sess:  sess,
		sched: sched,
		mgr:   mgr,
		hub:   hub,
		kick:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
	}
}

// Kick 请求马上跑一个刷新周期。通道带一格缓冲，重复踢合并成一次。
func (r *Runner) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Stop 停止循环（登出时调用）
func (r *Runner) Stop() {
	close(r.stop)
}

// Run 事件循环。变化 → 落库推送后立刻下一轮；还有任务在跑 → 3 秒后再来；
// 全部到终态 → 挂起等下一次 Kick。
func (r *Runner) Run() {
	idle := true
	for {
		if idle {
			select {
			case <-r.stop:
				return
			case <-r.kick:
			}
		}

		out := r.runCycle()

		switch {
		case out.Changed:
			idle = false
		case out.Active:
			select {
			case <-r.stop:
				return
			case <-r.kick:
			case <-time.After(IdleRefreshDelay):
			}
			idle = false
		default:
			idle = true
		}
	}
}

func (r *Runner) runCycle() Outcome {
	ctx := context.Background()

	r.sess.Lock()
	out := r.sched.RefreshPage(ctx, r.sess.Data, r.sess.VideoPage)
	var snapshot []models.VideoTask
	if out.Changed {
		snapshot = r.sess.Data.VideoPage(r.sess.VideoPage, models.VideosPerPage)
	}
	r.sess.Unlock()

	// 本周期的全部变更应用完才落库，绝不写半截
	if out.Changed {
		r.mgr.Save(ctx, r.sess)
		if r.hub != nil {
			r.hub.PublishEvent(r.sess.Username, "video_tasks", snapshot)
		}
	}
	return out
}
