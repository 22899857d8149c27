package handlers

import (
	"net/http"
	"time"

	"storechat-gin/internal/channel"
	"storechat-gin/internal/dto"
	"storechat-gin/internal/models"
	"storechat-gin/internal/repositories"
	"storechat-gin/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Widget Handler
// Endpoints cho widget nhúng trên website của store:
// - POST chat: gửi tin nhắn, nhận câu trả lời đồng bộ + conversation id
// - POST lead: contact form
// - GET messages: polling đọc transcript
// Widget resolve store bằng slug - không authenticate end customer
// ===========================================================================

// WidgetHandler xử lý widget endpoints
type WidgetHandler struct {
	storeRepo      repositories.StoreRepository
	messageRepo    repositories.MessageRepository
	convRepo       repositories.ConversationRepository
	messageService services.MessageService
	logger         *zap.Logger
}

// NewWidgetHandler tạo handler mới
func NewWidgetHandler(
	storeRepo repositories.StoreRepository,
	messageRepo repositories.MessageRepository,
	convRepo repositories.ConversationRepository,
	messageService services.MessageService,
	logger *zap.Logger,
) *WidgetHandler {
	return &WidgetHandler{
		storeRepo:      storeRepo,
		messageRepo:    messageRepo,
		convRepo:       convRepo,
		messageService: messageService,
		logger:         logger,
	}
}

// resolveStore tìm store theo slug trong path
func (h *WidgetHandler) resolveStore(c *gin.Context) (*models.Store, bool) {
	slug := c.Param("storeSlug")
	store, err := h.storeRepo.FindBySlug(c.Request.Context(), slug)
	if err != nil {
		c.JSON(http.StatusNotFound, dto.Error("NOT_FOUND", "Store không tồn tại"))
		return nil, false
	}
	if !store.IsActive {
		c.JSON(http.StatusNotFound, dto.Error("NOT_FOUND", "Store không hoạt động"))
		return nil, false
	}
	return store, true
}

// Chat xử lý một lượt chat từ widget
// POST /widget/:storeSlug/chat
//
// Request: {visitor_key, message, conversation_id?}
// Response: {content, conversation_id}
// AI unavailable/timeout -> content là fallback message, không bao giờ
// trả raw error cho khách
func (h *WidgetHandler) Chat(c *gin.Context) {
	store, ok := h.resolveStore(c)
	if !ok {
		return
	}

	var req dto.WidgetChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_INPUT", err.Error()))
		return
	}

	// Conversation id client giữ từ lượt trước chỉ mang tính khai báo -
	// resolution luôn theo visitor key, nhưng id gửi lên phải hợp lệ
	var claimedID *uuid.UUID
	if req.ConversationID != nil && *req.ConversationID != "" {
		parsed, err := uuid.Parse(*req.ConversationID)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.Error("INVALID_INPUT", "conversation id không hợp lệ"))
			return
		}
		claimedID = &parsed
	}

	inbound := &channel.InboundEvent{
		StoreID:     store.ID,
		Channel:     models.ChannelWebsite,
		ExternalKey: req.VisitorKey,
		Content:     req.Message,
		Timestamp:   time.Now(),
	}

	result, err := h.messageService.ProcessInbound(c.Request.Context(), store, inbound)
	if err != nil {
		h.logger.Error("widget chat processing failed",
			zap.String("store_id", store.ID.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Không xử lý được tin nhắn"))
		return
	}

	// Id client giữ đã cũ (conversation bị đóng) - response mang id mới
	// để reconciler ghi đè identity local
	if claimedID != nil && *claimedID != result.ConversationID {
		h.logger.Info("widget conversation identity stale",
			zap.String("claimed", claimedID.String()),
			zap.String("resolved", result.ConversationID.String()),
		)
	}

	c.JSON(http.StatusOK, dto.Success(dto.WidgetChatResponse{
		Content:        result.ReplyContent,
		ConversationID: result.ConversationID.String(),
	}))
}

// Lead xử lý contact form từ widget
// POST /widget/:storeSlug/lead
//
// Response: {customer_id, conversation_id}
func (h *WidgetHandler) Lead(c *gin.Context) {
	store, ok := h.resolveStore(c)
	if !ok {
		return
	}

	var req dto.LeadCaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_INPUT", err.Error()))
		return
	}

	inbound := &channel.InboundEvent{
		StoreID:     store.ID,
		Channel:     models.ChannelWebsite,
		ExternalKey: req.VisitorKey,
		DisplayName: req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Content:     req.Message,
		Timestamp:   time.Now(),
	}

	result, err := h.messageService.ResolveLead(c.Request.Context(), store, inbound)
	if err != nil {
		h.logger.Error("lead capture failed",
			zap.String("store_id", store.ID.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Không lưu được thông tin"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(dto.LeadCaptureResponse{
		CustomerID:     result.CustomerID.String(),
		ConversationID: result.ConversationID.String(),
	}))
}

// Messages polling endpoint đọc transcript theo thứ tự thời gian
// GET /widget/:storeSlug/conversations/:conversationId/messages
func (h *WidgetHandler) Messages(c *gin.Context) {
	store, ok := h.resolveStore(c)
	if !ok {
		return
	}

	conversationID, err := uuid.Parse(c.Param("conversationId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_INPUT", "conversation id không hợp lệ"))
		return
	}

	conversation, err := h.convRepo.FindByID(c.Request.Context(), conversationID)
	if err != nil || conversation.StoreID != store.ID {
		c.JSON(http.StatusNotFound, dto.Error("NOT_FOUND", "Conversation không tồn tại"))
		return
	}

	// 200 message gần nhất theo thứ tự thời gian - transcript dài cắt phần
	// đầu, widget cần các lượt mới
	messages, err := h.messageRepo.FindRecentByConversation(c.Request.Context(), conversationID, 200)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Không đọc được tin nhắn"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(messages))
}

// ===========================================================================
// Route Registration
// ===========================================================================

// RegisterRoutes đăng ký widget routes
func (h *WidgetHandler) RegisterRoutes(rg *gin.RouterGroup) {
	widget := rg.Group("/widget/:storeSlug")
	{
		widget.POST("/chat", h.Chat)
		widget.POST("/lead", h.Lead)
		widget.GET("/conversations/:conversationId/messages", h.Messages)
	}
}
