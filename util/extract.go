package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// 从模型回复里提取分镜脚本。回复可能是 markdown 表格、带序号的
// 镜头列表、或者裸的 [Style Anchor] 行，三种格式依次兜底。

var (
	anchorLineRe = regexp.MustCompile(`(?i)(?:通用(?:Prompt)?(?:前缀)?|Style Anchor).*?[:：]\s*(.*)`)
	sceneListRe  = regexp.MustCompile(`(?im)^\s*[•*\-\d.]+\s*(?:镜头|Scene).*?[:：]\s*(\[Style Anchor\].*)$`)
	anchorOnlyRe = regexp.MustCompile(`(?m)(\[Style Anchor\].*)$`)
	blockTitleRe = regexp.MustCompile(`(?m)^\s*(?:\d+\.\s*)?【(.*?)】`)
)

// CopyBlock 回复里用【】标出的可复制文案块
type CopyBlock struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ExtractPrompts 提取分镜提示词和通用前缀（Style Anchor）
func ExtractPrompts(text string) (prompts []string, anchor string) {
	if m := anchorLineRe.FindStringSubmatch(text); m != nil {
		raw := strings.SplitN(strings.TrimSpace(m[1]), "\n", 2)[0]
		raw = strings.NewReplacer("`", "", ")", "", "）", "").Replace(raw)
		anchor = strings.TrimSpace(raw)
	}

	// 优先认 markdown 表格：第三列是视觉指令
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, "|") || strings.Contains(line, "---") {
			continue
		}
		var parts []string
		for _, p := range strings.Split(line, "|") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) < 3 {
			continue
		}
		candidate := parts[2]
		if utf8.RuneCountInString(candidate) > 10 && !strings.HasPrefix(candidate, "视觉详细指令") {
			prompts = append(prompts, candidate)
		}
	}

	if len(prompts) == 0 {
		for _, m := range sceneListRe.FindAllStringSubmatch(text, -1) {
			prompts = append(prompts, m[1])
		}
	}
	if len(prompts) == 0 {
		for _, m := range anchorOnlyRe.FindAllStringSubmatch(text, -1) {
			prompts = append(prompts, m[1])
		}
	}

	for i := range prompts {
		prompts[i] = strings.TrimSpace(strings.ReplaceAll(prompts[i], "**", ""))
	}
	return prompts, anchor
}

// ExtractCopyBlocks 提取标题含"文案/粘贴/脚本"的【】块
func ExtractCopyBlocks(text string) []CopyBlock {
	var blocks []CopyBlock
	idx := blockTitleRe.FindAllStringSubmatchIndex(text, -1)
	for i, m := range idx {
		title := text[m[2]:m[3]]
		if !strings.Contains(title, "文案") && !strings.Contains(title, "粘贴") && !strings.Contains(title, "脚本") {
			continue
		}
		end := len(text)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		content := strings.TrimSpace(text[m[1]:end])
		blocks = append(blocks, CopyBlock{Title: title, Content: content})
	}
	return blocks
}

// ApplyAnchor 把分镜里的 [Style Anchor] 占位替换成实际前缀
func ApplyAnchor(prompt, anchor string) string {
	if anchor == "" {
		return prompt
	}
	return strings.NewReplacer(
		"`[Style Anchor]`", anchor,
		"[Style Anchor]", anchor,
		"【Style Anchor】", anchor,
	).Replace(prompt)
}

// Truncate 日志里提示词只留前 n 个字符
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
