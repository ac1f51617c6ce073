package genapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Message 对话接口的消息体，Content 可以是字符串或多模态内容列表
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// TextPart / ImagePart 多模态内容片段
type TextPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ImagePart struct {
	Type     string   `json:"type"`
	ImageURL ImageURL `json:"image_url"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// NewImagePart 把 base64 图片包装成多模态片段
func NewImagePart(b64 string) ImagePart {
	return ImagePart{Type: "image_url", ImageURL: ImageURL{URL: "data:image/jpeg;base64," + b64}}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatStream 流式对话。每个增量片段回调一次 onDelta，
// 流以字面量 [DONE] 结束，返回拼好的完整回复。
func (c *Client) ChatStream(ctx context.Context, messages []Message, onDelta func(delta string)) (string, error) {
	body, err := json.Marshal(chatRequest{Model: c.chatModel, Messages: messages, Stream: true})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	c.setHeaders(req)

	resp, err := c.chatHTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("连接错误: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(raw))
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	// 单行增量可能很大（长段落一次吐出），放宽扫描缓冲
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		line = strings.TrimPrefix(line, "data: ")
		if line == "[DONE]" {
			break
		}
		var chunk chatChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			// 坏块直接跳过，别断流
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
	if err := scanner.Err(); err != nil {
		// 已经收到的内容照样返回，调用方决定怎么兜底
		return full.String(), err
	}
	return full.String(), nil
}

// GenerateImage 走对话接口的绘图模型，阻塞到出结果。
// 返回的是 markdown 文本（可能内嵌 base64 图片）。
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.imageModel,
		Messages: []Message{{Role: "user", Content: prompt}},
		Stream:   false,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	c.setHeaders(req)

	resp, err := c.chatHTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("连接错误: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(raw))
	}

	var data chatChunk
	if err := json.Unmarshal(raw, &data); err != nil || len(data.Choices) == 0 {
		return "", fmt.Errorf("响应格式异常: %s", string(raw))
	}
	return data.Choices[0].Message.Content, nil
}
