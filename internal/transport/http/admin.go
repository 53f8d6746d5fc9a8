package httptransport

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kezmail/backend/internal/service"
	"kezmail/backend/internal/storage"
)

// AdminHandler 封禁名单与攻击审计的管理接口。
type AdminHandler struct {
	blocks *service.BlockListService
	log    *zap.Logger
}

// NewAdminHandler 创建管理接口处理器
func NewAdminHandler(blocks *service.BlockListService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		blocks: blocks,
		log:    log,
	}
}

type upsertBlockRequest struct {
	IPAddress    string     `json:"ipAddress" binding:"required"`
	Reason       string     `json:"reason" binding:"required"`
	BlockedUntil *time.Time `json:"blockedUntil"`
}

// ListBlocks 列出全部封禁记录
//
// GET /v1/admin/ip-blocks
func (h *AdminHandler) ListBlocks(c *gin.Context) {
	list, err := h.blocks.List()
	if err != nil {
		h.log.Error("failed to list ip blocks", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}
	Success(c, gin.H{"list": list})
}

// UpsertBlock 封禁来源 IP，重复封禁原地更新
//
// POST /v1/admin/ip-blocks
func (h *AdminHandler) UpsertBlock(c *gin.Context) {
	var req upsertBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	block, err := h.blocks.Upsert(req.IPAddress, req.Reason, req.BlockedUntil)
	if err != nil {
		if errors.Is(err, service.ErrInvalidIP) || errors.Is(err, service.ErrReasonRequired) {
			BadRequest(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to upsert ip block", zap.String("ip", req.IPAddress), zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Created(c, "封禁记录已保存", block)
}

// DeleteBlock 删除封禁记录（解封）
//
// DELETE /v1/admin/ip-blocks/:id
func (h *AdminHandler) DeleteBlock(c *gin.Context) {
	id := c.Param("id")

	if err := h.blocks.Unblock(id); err != nil {
		if errors.Is(err, storage.ErrIPBlockNotFound) {
			NotFound(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to delete ip block", zap.String("id", id), zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, gin.H{"id": id})
}

// RecentAttacks 列出最近的攻击审计记录
//
// GET /v1/admin/attacks?limit=10
func (h *AdminHandler) RecentAttacks(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	list, err := h.blocks.RecentAttacks(limit)
	if err != nil {
		h.log.Error("failed to list attack logs", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, gin.H{"list": list})
}
