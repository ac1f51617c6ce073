package controller

type ResCode int64

const (
	CodeSuccess ResCode = 1000 + iota
	CodeInvalidParams
	CodeUserNotExist
	CodeInvalidPassword
	CodeServerBusy
	CodeInvalidToken
	CodeNeedLogin
	CodeNoPermission
	CodeQuotaExceeded
	CodeRemoteFailed
	CodeTaskNotFound
)

var codeMsgMap = map[ResCode]string{
	CodeSuccess:         "success",
	CodeInvalidParams:   "请求参数错误",
	CodeUserNotExist:    "用户不存在",
	CodeInvalidPassword: "用户名或密码错误",
	CodeServerBusy:      "服务繁忙",
	CodeInvalidToken:    "无效的Token",
	CodeNeedLogin:       "需要登录",
	CodeNoPermission:    "没有操作权限",
	CodeQuotaExceeded:   "额度已用尽，请联系管理员充值",
	CodeRemoteFailed:    "生成服务调用失败",
	CodeTaskNotFound:    "任务不存在",
}

func (c ResCode) Msg() string {
	msg, ok := codeMsgMap[c]
	if !ok {
		return codeMsgMap[CodeServerBusy]
	}
	return msg
}
