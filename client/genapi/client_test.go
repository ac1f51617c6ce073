package genapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linxy101-sys/too/models"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key"})
	return c, srv
}

func TestCreateVideoSuccess(t *testing.T) {
	var gotAuth string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/video/create", r.URL.Path)
		w.Write([]byte(`{"id":"task-123"}`))
	})
	defer srv.Close()

	id, err := c.CreateVideo(context.Background(), "海边日落", "blurry", "9:16", 8)

	require.NoError(t, err)
	assert.Equal(t, "task-123", id)
	assert.Equal(t, "Bearer test-key", gotAuth)
}

func TestCreateVideoHTTPError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exhausted upstream", http.StatusPaymentRequired)
	})
	defer srv.Close()

	_, err := c.CreateVideo(context.Background(), "x", "", "9:16", 8)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 402")
	assert.Contains(t, err.Error(), "quota exhausted upstream", "原始响应体带回做诊断")
}

func TestCreateVideoMissingID(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"accepted"}`))
	})
	defer srv.Close()

	_, err := c.CreateVideo(context.Background(), "x", "", "9:16", 8)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "无ID")
}

func TestCreateVideoConnectionError(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1", APIKey: "k"})

	_, err := c.CreateVideo(context.Background(), "x", "", "9:16", 8)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "连接错误")
}

func TestQueryVideoStatusFieldVariants(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"status 字段", `{"status":"processing"}`, models.StatusRunning},
		{"state 字段", `{"state":"completed"}`, models.StatusSucceeded},
		{"task_status 字段", `{"task_status":"pending"}`, models.StatusQueued},
		{"失败状态", `{"status":"expired"}`, models.StatusFailed},
		{"陌生状态", `{"status":"warming_up"}`, models.StatusUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/video/query", r.URL.Path)
				w.Write([]byte(tc.body))
			})
			defer srv.Close()

			status, url := c.QueryVideo(context.Background(), "t1")
			assert.Equal(t, tc.want, status)
			assert.Empty(t, url)
		})
	}
}

func TestQueryVideoURLForcesSucceeded(t *testing.T) {
	// 状态还写着 processing，但结果地址已经有了——以地址为准
	cases := []struct {
		name string
		body string
	}{
		{"video_url", `{"status":"processing","video_url":"https://cdn/v.mp4"}`},
		{"data 数组", `{"status":"processing","data":[{"url":"https://cdn/v.mp4"}]}`},
		{"顶层 url", `{"status":"processing","url":"https://cdn/v.mp4"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			})
			defer srv.Close()

			status, url := c.QueryVideo(context.Background(), "t1")
			assert.Equal(t, models.StatusSucceeded, status)
			assert.Equal(t, "https://cdn/v.mp4", url)
		})
	}
}

func TestQueryVideoFailuresFoldToUnknown(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	})
	defer srv.Close()

	status, url := c.QueryVideo(context.Background(), "t1")
	assert.Equal(t, models.StatusUnknown, status)
	assert.Empty(t, url)
}

func TestQueryVideoBadJSON(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	})
	defer srv.Close()

	status, url := c.QueryVideo(context.Background(), "t1")
	assert.Equal(t, models.StatusUnknown, status)
	assert.Empty(t, url)
}

func TestQueryVideoEscapesTaskID(t *testing.T) {
	var gotID string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.URL.Query().Get("id")
		w.Write([]byte(`{"status":"queued"}`))
	})
	defer srv.Close()

	c.QueryVideo(context.Background(), "a b&c")
	assert.Equal(t, "a b&c", gotID)
}

func TestNewClientDefaultModels(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://x", APIKey: "k"})

	assert.Equal(t, "veo3.1-components", c.videoModel)
	assert.Equal(t, "gemini-3-flash-preview", c.chatModel)
	assert.Equal(t, "gemini-2.5-flash-image", c.imageModel)
}
