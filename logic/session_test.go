package logic

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linxy101-sys/too/models"
)

func newTestManager() (*Manager, *memStore) {
	st := newMemStore()
	sched := NewScheduler(&fakeQuerier{results: map[string]queryResult{}})
	return NewManager(st, nil, sched), st
}

func TestManagerOpenSeedsNewUser(t *testing.T) {
	mgr, _ := newTestManager()
	defer mgr.Close(context.Background(), "alice")

	sess, err := mgr.Open(context.Background(), "alice")

	require.NoError(t, err)
	assert.Equal(t, "alice", sess.Username)
	assert.Equal(t, 1, sess.VideoPage)
	assert.Equal(t, int64(models.DefaultQuota), sess.Data.QuotaLimit)
	assert.NotEmpty(t, sess.Data.CurrentSessionID)
}

func TestManagerOpenLoadsExistingDoc(t *testing.T) {
	mgr, st := newTestManager()
	defer mgr.Close(context.Background(), "bob")

	doc := models.NewUserData()
	doc.UsageCount = 42
	doc.InsertVideoTask(models.VideoTask{RecordID: "r1", Status: models.StatusSucceeded})
	st.docs["bob"] = doc

	sess, err := mgr.Open(context.Background(), "bob")

	require.NoError(t, err)
	assert.Equal(t, int64(42), sess.Data.UsageCount)
	assert.Len(t, sess.Data.VideoTasks, 1)
}

func TestManagerOpenReusesLiveSession(t *testing.T) {
	mgr, _ := newTestManager()
	defer mgr.Close(context.Background(), "carol")

	first, err := mgr.Open(context.Background(), "carol")
	require.NoError(t, err)
	second, err := mgr.Open(context.Background(), "carol")
	require.NoError(t, err)

	assert.Same(t, first, second, "同账号共享一份内存态")
}

func TestManagerOpenRepairsZeroQuota(t *testing.T) {
	mgr, st := newTestManager()
	defer mgr.Close(context.Background(), "dave")

	// 历史坏文档：额度为 0 会把用户锁死
	st.docs["dave"] = &models.UserData{}

	sess, err := mgr.Open(context.Background(), "dave")

	require.NoError(t, err)
	assert.Equal(t, int64(models.DefaultQuota), sess.Data.QuotaLimit)
	_, ok := sess.Data.ChatSessions[sess.Data.CurrentSessionID]
	assert.True(t, ok, "会话指针修好了")
}

func TestManagerCloseSavesAndForgets(t *testing.T) {
	mgr, st := newTestManager()

	sess, err := mgr.Open(context.Background(), "erin")
	require.NoError(t, err)
	sess.Lock()
	sess.Data.UsageCount = 7
	sess.Unlock()

	mgr.Close(context.Background(), "erin")

	assert.Nil(t, mgr.Get("erin"))
	require.NotNil(t, st.docs["erin"])
	assert.Equal(t, int64(7), st.docs["erin"].UsageCount)
}

func TestManagerSaveConcurrentWithLockedWrites(t *testing.T) {
	// 轮询 runner 落库和 HTTP handler 改数据同时发生的场景：
	// Save 在锁内取快照，-race 下跑也不该报并发读写
	mgr, st := newTestManager()
	defer mgr.Close(context.Background(), "gail")

	sess, err := mgr.Open(context.Background(), "gail")
	require.NoError(t, err)

	sess.Lock()
	sess.Data.InsertImageTask(models.ImageTask{Prompt: "原图", Result: strings.Repeat("x", 600)})
	sess.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			mgr.Save(context.Background(), sess)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			sess.Lock()
			sess.Data.InsertVideoTask(models.VideoTask{
				RecordID: fmt.Sprintf("r%d", i),
				Status:   models.StatusRunning,
			})
			sess.Data.ImageTasks[0].Result = strings.Repeat("y", 600+i)
			sess.Unlock()
		}
	}()
	wg.Wait()

	mgr.Save(context.Background(), sess)

	loaded, err := st.Load(context.Background(), "gail")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Len(t, loaded.VideoTasks, 200)
	require.Len(t, loaded.ImageTasks, 1)
	assert.Equal(t, "🖼️ [图片已生成，云端仅存档记录]", loaded.ImageTasks[0].Result, "超大结果存的是占位符")
}

func TestManagerApplyQuota(t *testing.T) {
	mgr, _ := newTestManager()
	defer mgr.Close(context.Background(), "frank")

	sess, err := mgr.Open(context.Background(), "frank")
	require.NoError(t, err)

	mgr.ApplyQuota("frank", 500)
	assert.Equal(t, int64(500), sess.Data.QuotaLimit)

	// 不在线的用户静默跳过
	mgr.ApplyQuota("ghost", 100)
}
