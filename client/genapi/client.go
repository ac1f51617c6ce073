package genapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/linxy101-sys/too/models"
)

// 不同接口的超时各自独立：创建任务慢、查询要快进快出、对话要容忍长回复
const (
	createTimeout = 30 * time.Second
	queryTimeout  = 10 * time.Second
	chatTimeout   = 60 * time.Second
)

// Client 第三方生成网关的客户端。无状态，可被多个会话并发使用。
type Client struct {
	baseURL    string
	apiKey     string
	videoModel string
	chatModel  string
	imageModel string

	createHTTP *http.Client
	queryHTTP  *http.Client
	chatHTTP   *http.Client
}

// Config 网关配置，零值字段用默认模型
type Config struct {
	BaseURL    string
	APIKey     string
	VideoModel string
	ChatModel  string
	ImageModel string
}

func NewClient(cfg Config) *Client {
	if cfg.VideoModel == "" {
		cfg.VideoModel = "veo3.1-components"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gemini-3-flash-preview"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "gemini-2.5-flash-image"
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		videoModel: cfg.VideoModel,
		chatModel:  cfg.ChatModel,
		imageModel: cfg.ImageModel,
		createHTTP: &http.Client{Timeout: createTimeout},
		queryHTTP:  &http.Client{Timeout: queryTimeout},
		chatHTTP:   &http.Client{Timeout: chatTimeout},
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

// CreateVideo 提交一个视频生成任务，成功返回远端任务ID。
// 200 但没有 id 也算失败，原始响应体作为诊断信息带回；本层不做重试，
// 重试永远是用户发起的一次全新提交。
func (c *Client) CreateVideo(ctx context.Context, prompt, negativePrompt, aspectRatio string, durationSeconds int) (string, error) {
	payload := map[string]interface{}{
		"model":            c.videoModel,
		"prompt":           prompt,
		"negative_prompt":  negativePrompt,
		"aspect_ratio":     aspectRatio,
		"duration_seconds": durationSeconds,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/video/create", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	c.setHeaders(req)

	resp, err := c.createHTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("连接错误: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(raw))
	}

	var data struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.ID == "" {
		return "", fmt.Errorf("无ID: %s", string(raw))
	}
	return data.ID, nil
}

// queryResponse 兼容远端可能返回的三种形状：
// 状态字段叫 status / state / task_status 之一；
// 结果地址在 video_url、data[0].url 或顶层 url。
type queryResponse struct {
	Status     string `json:"status"`
	State      string `json:"state"`
	TaskStatus string `json:"task_status"`
	VideoURL   string `json:"video_url"`
	URL        string `json:"url"`
	Data       []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// QueryVideo 查询任务状态，返回归一化状态和结果地址。
// 只要拿到了结果地址就强制判定 succeeded，不管状态字段写的什么；
// 任何传输错误、非 200 都折叠成 (unknown, "")，绝不向上抛。
func (c *Client) QueryVideo(ctx context.Context, taskID string) (status string, videoURL string) {
	u := c.baseURL + "/v1/video/query?id=" + url.QueryEscape(taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.StatusUnknown, ""
	}
	c.setHeaders(req)

	resp, err := c.queryHTTP.Do(req)
	if err != nil {
		return models.StatusUnknown, ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.StatusUnknown, ""
	}

	var res queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return models.StatusUnknown, ""
	}

	raw := res.Status
	if raw == "" {
		raw = res.State
	}
	if raw == "" {
		raw = res.TaskStatus
	}

	switch {
	case res.VideoURL != "":
		videoURL = res.VideoURL
	case len(res.Data) > 0 && res.Data[0].URL != "":
		videoURL = res.Data[0].URL
	case res.URL != "":
		videoURL = res.URL
	}

	if videoURL != "" {
		return models.StatusSucceeded, videoURL
	}
	return models.NormalizeStatus(raw), ""
}
