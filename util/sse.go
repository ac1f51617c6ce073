package util

import "encoding/json"

// EncodeSSEData 把一段文本编码成可以安全塞进单行 data: 帧的 JSON 字符串，
// 增量里带换行也不会破坏 SSE 帧格式
func EncodeSSEData(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
