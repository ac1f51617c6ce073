package logic

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linxy101-sys/too/models"
	"github.com/linxy101-sys/too/pkg/snowflake"
)

func TestMain(m *testing.M) {
	if err := snowflake.Init(1); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// memStore 纯内存的 UserStore，测试里替代云端文档库
type memStore struct {
	mu    sync.Mutex
	docs  map[string]*models.UserData
	saves int
}

func newMemStore() *memStore {
	return &memStore{docs: map[string]*models.UserData{}}
}

func (s *memStore) Load(_ context.Context, username string) (*models.UserData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[username], nil
}

func (s *memStore) LoadAll(_ context.Context) (map[string]*models.UserData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*models.UserData, len(s.docs))
	for k, v := range s.docs {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) Save(_ context.Context, username string, data *models.UserData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[username] = data
	s.saves++
	return nil
}

func (s *memStore) SaveAll(_ context.Context, all map[string]*models.UserData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range all {
		s.docs[k] = v
	}
	return nil
}

type fakeCreator struct {
	mu      sync.Mutex
	calls   int
	err     error
	failIdx map[int]error // 第 N 次调用（从 1 起）返回的错误
}

func (f *fakeCreator) CreateVideo(_ context.Context, _, _, _ string, _ int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if err, ok := f.failIdx[f.calls]; ok {
		return "", err
	}
	return fmt.Sprintf("remote-%d", f.calls), nil
}

func newTestVideoService(creator *fakeCreator) (*VideoService, *Session, *memStore) {
	st := newMemStore()
	mgr := NewManager(st, nil, nil)
	gate := &QuotaGate{Policy: QuotaPerTask}
	svc := NewVideoService(creator, gate, mgr)
	sess := &Session{
		Username:  "tester",
		Data:      models.NewUserData(),
		VideoPage: 2,
	}
	return svc, sess, st
}

func TestSubmitInsertsAtHeadAndConsumesQuota(t *testing.T) {
	creator := &fakeCreator{}
	svc, sess, st := newTestVideoService(creator)
	sess.Data.InsertVideoTask(models.VideoTask{RecordID: "old", Status: models.StatusSucceeded})

	params := models.VideoParams{NegativePrompt: "blurry", AspectRatio: "16:9", Duration: 8}
	task, err := svc.Submit(context.Background(), sess, "海边日落", params)

	require.NoError(t, err)
	assert.Equal(t, "remote-1", task.ID)
	assert.Equal(t, models.StatusQueued, task.Status)
	assert.NotEmpty(t, task.RecordID)
	assert.Equal(t, int64(0), task.LastCheck)

	require.Len(t, sess.Data.VideoTasks, 2)
	assert.Equal(t, task.RecordID, sess.Data.VideoTasks[0].RecordID, "新任务插在头部")
	assert.Equal(t, "old", sess.Data.VideoTasks[1].RecordID)

	assert.Equal(t, int64(1), sess.Data.UsageCount)
	assert.Equal(t, 1, sess.VideoPage, "提交后翻回第一页")
	assert.Equal(t, 1, st.saves)
}

func TestSubmitRejectsWhenQuotaExhausted(t *testing.T) {
	creator := &fakeCreator{}
	svc, sess, _ := newTestVideoService(creator)
	sess.Data.UsageCount = sess.Data.QuotaLimit

	_, err := svc.Submit(context.Background(), sess, "任意", models.VideoParams{})

	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, 0, creator.calls, "额度不足时根本不打远端")
	assert.Empty(t, sess.Data.VideoTasks)
}

func TestSubmitConcurrentAtLastQuotaSlot(t *testing.T) {
	// 两个提交同时抢最后一个名额：检查和预占在同一个临界区，只放行一个
	creator := &fakeCreator{}
	svc, sess, _ := newTestVideoService(creator)
	sess.Data.UsageCount = sess.Data.QuotaLimit - 1

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Submit(context.Background(), sess, "并发提交", models.VideoParams{})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, sess.Data.QuotaLimit, sess.Data.UsageCount, "用量不越过额度")
	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrQuotaExceeded)
		}
	}
	assert.Equal(t, 1, ok, "只有一个提交成功")
	assert.Equal(t, 1, creator.calls)
	assert.Len(t, sess.Data.VideoTasks, 1)
}

func TestSubmitRemoteFailureLeavesStateUntouched(t *testing.T) {
	creator := &fakeCreator{err: errors.New("HTTP 503: overloaded")}
	svc, sess, st := newTestVideoService(creator)

	_, err := svc.Submit(context.Background(), sess, "任意", models.VideoParams{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503", "远端诊断信息原样带回")
	assert.Empty(t, sess.Data.VideoTasks)
	assert.Equal(t, int64(0), sess.Data.UsageCount, "失败退回预占的名额")
	assert.Equal(t, 0, st.saves)
}

func TestSubmitBatchAllFailedRefundsReservation(t *testing.T) {
	creator := &fakeCreator{err: errors.New("HTTP 500: boom")}
	svc, sess, _ := newTestVideoService(creator)

	submitted, failures, err := svc.SubmitBatch(context.Background(), sess,
		[]string{"一", "二"}, "", models.VideoParams{})

	require.NoError(t, err)
	assert.Empty(t, submitted)
	assert.Len(t, failures, 2)
	assert.Equal(t, int64(0), sess.Data.UsageCount, "整批失败时预占全退")
}

func TestRetryClonesWithStoredParams(t *testing.T) {
	creator := &fakeCreator{}
	svc, sess, _ := newTestVideoService(creator)
	sess.Data.InsertVideoTask(models.VideoTask{
		RecordID: "orig",
		ID:       "remote-old",
		Prompt:   "城市夜景",
		Status:   models.StatusFailed,
		Error:    "等待生成结果超时",
		Params:   models.VideoParams{NegativePrompt: "noise", AspectRatio: "1:1", Duration: 10},
	})

	task, err := svc.Retry(context.Background(), sess, "orig")

	require.NoError(t, err)
	assert.NotEqual(t, "orig", task.RecordID)
	assert.Equal(t, models.StatusQueued, task.Status)
	assert.Equal(t, "城市夜景", task.Prompt)
	assert.Equal(t, models.VideoParams{NegativePrompt: "noise", AspectRatio: "1:1", Duration: 10}, task.Params)

	// 旧记录原封不动，失败状态保留
	require.Len(t, sess.Data.VideoTasks, 2)
	orig := sess.Data.FindVideoTask("orig")
	require.NotNil(t, orig)
	assert.Equal(t, models.StatusFailed, orig.Status)
	assert.Equal(t, "等待生成结果超时", orig.Error)

	assert.Equal(t, task.RecordID, sess.Data.VideoTasks[0].RecordID, "克隆插在头部")
}

func TestRetryFillsDefaultParams(t *testing.T) {
	creator := &fakeCreator{}
	svc, sess, _ := newTestVideoService(creator)
	sess.Data.InsertVideoTask(models.VideoTask{RecordID: "bare", Prompt: "老记录", Status: models.StatusFailed})

	task, err := svc.Retry(context.Background(), sess, "bare")

	require.NoError(t, err)
	assert.Equal(t, defaultNegativePrompt, task.Params.NegativePrompt)
	assert.Equal(t, defaultAspectRatio, task.Params.AspectRatio)
	assert.Equal(t, defaultDuration, task.Params.Duration)
}

func TestRetryUnknownRecord(t *testing.T) {
	creator := &fakeCreator{}
	svc, sess, _ := newTestVideoService(creator)

	_, err := svc.Retry(context.Background(), sess, "nope")

	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.Equal(t, 0, creator.calls)
}

func TestSubmitBatchReportsPerPromptFailures(t *testing.T) {
	creator := &fakeCreator{failIdx: map[int]error{2: errors.New("HTTP 500: boom")}}
	svc, sess, _ := newTestVideoService(creator)
	sess.PendingPrompts = []string{"a", "b", "c"}

	submitted, failures, err := svc.SubmitBatch(context.Background(), sess,
		[]string{"[Style Anchor] 镜头一", "[Style Anchor] 镜头二", "[Style Anchor] 镜头三"},
		"赛博朋克风", models.VideoParams{AspectRatio: "9:16", Duration: 8})

	require.NoError(t, err)
	assert.Len(t, submitted, 2)
	require.Len(t, failures, 1)
	assert.Equal(t, 2, failures[0].Index)
	assert.Contains(t, failures[0].Message, "500")

	// 前缀替换进了最终提示词
	assert.Equal(t, "赛博朋克风 镜头一", submitted[0].Prompt)

	assert.Len(t, sess.Data.VideoTasks, 2)
	assert.Equal(t, int64(2), sess.Data.UsageCount, "按任务计费只扣成功的")
	assert.Nil(t, sess.PendingPrompts, "提交完清空暂存")
	assert.Equal(t, 1, sess.VideoPage)
}

func TestSubmitBatchPerBatchPolicy(t *testing.T) {
	creator := &fakeCreator{}
	svc, sess, _ := newTestVideoService(creator)
	svc.gate.Policy = QuotaPerBatch

	submitted, failures, err := svc.SubmitBatch(context.Background(), sess,
		[]string{"一", "二", "三"}, "", models.VideoParams{})

	require.NoError(t, err)
	assert.Len(t, submitted, 3)
	assert.Empty(t, failures)
	assert.Equal(t, int64(1), sess.Data.UsageCount, "整批只扣一次")
}

func TestSubmitBatchRejectsWhenQuotaExhausted(t *testing.T) {
	creator := &fakeCreator{}
	svc, sess, _ := newTestVideoService(creator)
	sess.Data.UsageCount = sess.Data.QuotaLimit

	_, _, err := svc.SubmitBatch(context.Background(), sess, []string{"一"}, "", models.VideoParams{})

	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, 0, creator.calls)
}

func TestClearVideoTasks(t *testing.T) {
	creator := &fakeCreator{}
	svc, sess, st := newTestVideoService(creator)
	sess.Data.InsertVideoTask(models.VideoTask{RecordID: "a"})
	sess.Data.InsertVideoTask(models.VideoTask{RecordID: "b"})

	svc.Clear(context.Background(), sess)

	assert.Empty(t, sess.Data.VideoTasks)
	assert.Equal(t, 1, st.saves)
}
