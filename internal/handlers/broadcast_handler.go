package handlers

import (
	"errors"
	"net/http"

	"storechat-gin/internal/dto"
	apperrors "storechat-gin/internal/errors"
	"storechat-gin/internal/middleware"
	"storechat-gin/internal/repositories"
	"storechat-gin/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ===========================================================================
// Broadcast Handler
// Gửi thông báo hàng loạt đến mọi conversation của store
// ===========================================================================

// BroadcastHandler xử lý broadcast endpoints
type BroadcastHandler struct {
	broadcastService services.BroadcastService
	logger           *zap.Logger
}

// NewBroadcastHandler tạo handler mới
func NewBroadcastHandler(broadcastService services.BroadcastService, logger *zap.Logger) *BroadcastHandler {
	return &BroadcastHandler{
		broadcastService: broadcastService,
		logger:           logger,
	}
}

// Create tạo và gửi broadcast ngay lập tức
// POST /broadcasts
// Không idempotent: gửi lại request tạo campaign mới
func (h *BroadcastHandler) Create(c *gin.Context) {
	storeID, ok := middleware.GetStoreID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Authentication required"))
		return
	}

	var req dto.CreateBroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_INPUT", err.Error()))
		return
	}

	broadcast, err := h.broadcastService.Send(c.Request.Context(), storeID, req.Name, req.Content)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoRecipients) {
			c.JSON(http.StatusUnprocessableEntity, dto.Error("NO_RECIPIENTS", "Store chưa có hội thoại nào để gửi"))
			return
		}
		h.logger.Error("broadcast failed", zap.String("store_id", storeID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Không gửi được broadcast"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(dto.BroadcastResponse{
		RecipientCount: broadcast.RecipientCount,
		BroadcastID:    broadcast.ID.String(),
	}))
}

// List lấy lịch sử broadcast của store
// GET /broadcasts
func (h *BroadcastHandler) List(c *gin.Context) {
	storeID, ok := middleware.GetStoreID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Authentication required"))
		return
	}

	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_INPUT", err.Error()))
		return
	}
	page.SetDefaults()

	broadcasts, total, err := h.broadcastService.History(c.Request.Context(), storeID, repositories.FindOptions{
		Offset: page.Offset(),
		Limit:  page.Limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Không đọc được lịch sử"))
		return
	}

	c.JSON(http.StatusOK, dto.SuccessWithMeta(broadcasts, dto.NewMeta(page.Page, page.Limit, total)))
}

// RegisterRoutes đăng ký broadcast routes (yêu cầu auth middleware)
func (h *BroadcastHandler) RegisterRoutes(rg *gin.RouterGroup) {
	broadcasts := rg.Group("/broadcasts")
	{
		broadcasts.POST("", h.Create)
		broadcasts.GET("", h.List)
	}
}
