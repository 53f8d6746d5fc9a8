package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kezmail/backend/internal/monitoring"
	"kezmail/backend/internal/service"
	"kezmail/backend/internal/storage"
)

// MailboxHandler 临时邮箱相关的 HTTP 处理逻辑。
type MailboxHandler struct {
	mailboxes *service.MailboxService
	metrics   *monitoring.Metrics
	log       *zap.Logger
}

// NewMailboxHandler 创建邮箱处理器
func NewMailboxHandler(mailboxes *service.MailboxService, metrics *monitoring.Metrics, log *zap.Logger) *MailboxHandler {
	return &MailboxHandler{
		mailboxes: mailboxes,
		metrics:   metrics,
		log:       log,
	}
}

// Create 创建临时邮箱
//
// POST /v1/temp-emails
func (h *MailboxHandler) Create(c *gin.Context) {
	sourceIP := c.ClientIP()

	result, err := h.mailboxes.Create(sourceIP)
	if err != nil {
		if errors.Is(err, storage.ErrQuotaExceeded) {
			h.metrics.QuotaRejections.Inc()
			TooManyRequests(c, GetErrorMessage(err), gin.H{"remaining": 0})
			return
		}
		h.log.Error("failed to create mailbox", zap.String("ip", sourceIP), zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	h.metrics.MailboxesCreated.Inc()

	Created(c, "临时邮箱创建成功", gin.H{
		"address":          result.Mailbox.Address,
		"token":            result.Mailbox.Token,
		"expiresAt":        result.Mailbox.ExpiresAt,
		"remainingSeconds": result.Mailbox.RemainingSeconds(result.Mailbox.CreatedAt),
		"remaining":        result.Remaining,
	})
}

// Messages 获取邮箱内的邮件
//
// GET /v1/temp-emails/:address/messages
//
// 已过期但尚未清理的邮箱仍返回历史邮件，只有从未存在过的
// 地址才返回 404。
func (h *MailboxHandler) Messages(c *gin.Context) {
	address := c.Param("address")

	result, err := h.mailboxes.GetMessages(address)
	if err != nil {
		if errors.Is(err, storage.ErrMailboxNotFound) {
			NotFound(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to load messages", zap.String("address", address), zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, result)
}

// Status 查询邮箱状态与剩余有效时间
//
// GET /v1/temp-emails/:address/status
func (h *MailboxHandler) Status(c *gin.Context) {
	address := c.Param("address")

	result, err := h.mailboxes.CheckStatus(address)
	if err != nil {
		if errors.Is(err, storage.ErrMailboxNotFound) {
			NotFound(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to check mailbox status", zap.String("address", address), zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, result)
}

// ListToday 列出来源 IP 当日创建的邮箱
//
// GET /v1/temp-emails
//
// 空列表是正常结果，永远不返回 404。
func (h *MailboxHandler) ListToday(c *gin.Context) {
	sourceIP := c.ClientIP()

	list, err := h.mailboxes.ListTodayBySource(sourceIP)
	if err != nil {
		h.log.Error("failed to list today's mailboxes", zap.String("ip", sourceIP), zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, gin.H{
		"sourceIp": sourceIP,
		"list":     list,
	})
}
