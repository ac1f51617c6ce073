package models

// Users 内置账号表（和原工作台保持一致，管理员是 admin）
var Users = map[string]string{
	"admin":   "admin888",
	"guest":   "123456",
	"vip":     "vip666",
	"chunran": "123456",
	"zhixia":  "654321",
	"yuehuan": "987654",
}

const AdminUser = "admin"

// CheckLogin 校验账号密码
func CheckLogin(username, password string) bool {
	p, ok := Users[username]
	return ok && p == password
}

// LoginForm 登录表单
type LoginForm struct {
	UserName string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SubmitVideoForm 新建视频任务表单
type SubmitVideoForm struct {
	Prompt         string `json:"prompt" binding:"required"`
	NegativePrompt string `json:"negative_prompt"`
	AspectRatio    string `json:"aspect_ratio" binding:"required,oneof=9:16 16:9 1:1"`
	Duration       int    `json:"duration_seconds" binding:"required,min=5,max=10"`
}

// BatchVideoForm 分镜批量提交表单
type BatchVideoForm struct {
	Prompts        []string `json:"prompts" binding:"required,min=1"`
	StyleAnchor    string   `json:"style_anchor"`
	NegativePrompt string   `json:"negative_prompt"`
	AspectRatio    string   `json:"aspect_ratio" binding:"required,oneof=9:16 16:9 1:1"`
	Duration       int      `json:"duration_seconds" binding:"required,min=5,max=10"`
}

// SubmitImageForm 绘图表单
type SubmitImageForm struct {
	Prompt string `json:"prompt" binding:"required"`
}
