package genapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatStreamAssemblesDeltas(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"你好\"}}]}\n" +
			"\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\"，世界\"}}]}\n" +
			"data: [DONE]\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\"不该出现\"}}]}\n"))
	})
	defer srv.Close()

	var deltas []string
	full, err := c.ChatStream(context.Background(), []Message{{Role: "user", Content: "hi"}}, func(d string) {
		deltas = append(deltas, d)
	})

	require.NoError(t, err)
	assert.Equal(t, "你好，世界", full)
	assert.Equal(t, []string{"你好", "，世界"}, deltas)
}

func TestChatStreamSkipsMalformedChunks(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data: not-json\n" +
			"data: {\"choices\":[]}\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n" +
			"data: [DONE]\n"))
	})
	defer srv.Close()

	full, err := c.ChatStream(context.Background(), nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", full)
}

func TestChatStreamHTTPError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	})
	defer srv.Close()

	_, err := c.ChatStream(context.Background(), nil, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 503")
}

func TestGenerateImage(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"![图](data:image/png;base64,AAAA)"}}]}`))
	})
	defer srv.Close()

	out, err := c.GenerateImage(context.Background(), "一只猫")

	require.NoError(t, err)
	assert.Contains(t, out, "base64")
}

func TestGenerateImageBadResponse(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})
	defer srv.Close()

	_, err := c.GenerateImage(context.Background(), "一只猫")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "响应格式异常")
}

func TestNewImagePart(t *testing.T) {
	p := NewImagePart("AAAA")
	assert.Equal(t, "image_url", p.Type)
	assert.Equal(t, "data:image/jpeg;base64,AAAA", p.ImageURL.URL)
}
