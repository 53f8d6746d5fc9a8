package httptransport

import (
	"kezmail/backend/internal/service"
	"kezmail/backend/internal/storage"
)

// 错误消息映射表（业务错误 -> 提示信息）
var errorMessages = map[error]string{
	storage.ErrMailboxNotFound:   "找不到临时邮箱",
	storage.ErrQuotaExceeded:     "已达到今日创建上限",
	storage.ErrIPBlockNotFound:   "封禁记录不存在",
	service.ErrAddressGeneration: "邮箱地址生成失败，请重试",
	service.ErrInvalidIP:         "请提供有效的 IP 地址",
	service.ErrReasonRequired:    "封禁原因至少需要 3 个字符",
}

// GetErrorMessage 获取业务错误对应的提示信息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return MsgInternalError
}

// 通用错误消息
const (
	MsgInvalidRequest = "请求参数格式错误"
	MsgInternalError  = "服务器内部错误，请稍后重试"
)
