package handlers

import (
	"errors"
	"net/http"

	"storechat-gin/internal/dto"
	apperrors "storechat-gin/internal/errors"
	"storechat-gin/internal/middleware"
	"storechat-gin/internal/models"
	"storechat-gin/internal/realtime"
	"storechat-gin/internal/repositories"
	"storechat-gin/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ===========================================================================
// Conversation Handler
// Agent-facing endpoints: inbox list, transcript, gửi tin nhắn,
// toggle AI, đổi trạng thái, tags, quality review
// Tất cả routes yêu cầu JWT - store id lấy từ claims
// ===========================================================================

// ConversationHandler xử lý conversation endpoints
type ConversationHandler struct {
	storeRepo      repositories.StoreRepository
	convRepo       repositories.ConversationRepository
	messageRepo    repositories.MessageRepository
	messageService services.MessageService
	publisher      realtime.Publisher
	logger         *zap.Logger
}

// NewConversationHandler tạo handler mới
func NewConversationHandler(
	storeRepo repositories.StoreRepository,
	convRepo repositories.ConversationRepository,
	messageRepo repositories.MessageRepository,
	messageService services.MessageService,
	publisher realtime.Publisher,
	logger *zap.Logger,
) *ConversationHandler {
	return &ConversationHandler{
		storeRepo:      storeRepo,
		convRepo:       convRepo,
		messageRepo:    messageRepo,
		messageService: messageService,
		publisher:      publisher,
		logger:         logger,
	}
}

// loadConversation đọc conversation và kiểm tra ownership theo store claims
func (h *ConversationHandler) loadConversation(c *gin.Context) (*models.Conversation, uuid.UUID, bool) {
	storeID, ok := middleware.GetStoreID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Authentication required"))
		return nil, uuid.Nil, false
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_INPUT", "conversation id không hợp lệ"))
		return nil, uuid.Nil, false
	}

	conversation, err := h.convRepo.FindByID(c.Request.Context(), conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, dto.Error("NOT_FOUND", "Conversation không tồn tại"))
		} else {
			c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Không đọc được conversation"))
		}
		return nil, uuid.Nil, false
	}

	if conversation.StoreID != storeID {
		c.JSON(http.StatusNotFound, dto.Error("NOT_FOUND", "Conversation không tồn tại"))
		return nil, uuid.Nil, false
	}

	return conversation, storeID, true
}

// List lấy danh sách conversations của store (inbox)
// GET /conversations?page=&limit=&status=&ai_suspended=
func (h *ConversationHandler) List(c *gin.Context) {
	storeID, ok := middleware.GetStoreID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Authentication required"))
		return
	}

	var req dto.ListConversationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_INPUT", err.Error()))
		return
	}
	req.SetDefaults()

	filters := map[string]interface{}{}
	if req.Status != "" {
		filters["status"] = req.Status
	}
	if req.AiSuspended != nil {
		filters["is_ai_suspended"] = *req.AiSuspended
	}

	opts := repositories.FindOptions{
		Offset:  req.Offset(),
		Limit:   req.Limit,
		OrderBy: "last_message_at",
		Filters: filters,
	}

	conversations, total, err := h.convRepo.FindByStore(c.Request.Context(), storeID, opts)
	if err != nil {
		h.logger.Error("list conversations failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Không đọc được danh sách"))
		return
	}

	c.JSON(http.StatusOK, dto.SuccessWithMeta(conversations, dto.NewMeta(req.Page, req.Limit, total)))
}

// Get lấy chi tiết một conversation
// GET /conversations/:id
func (h *ConversationHandler) Get(c *gin.Context) {
	conversation, _, ok := h.loadConversation(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.Success(conversation))
}

// Messages lấy transcript theo thứ tự thời gian
// GET /conversations/:id/messages
func (h *ConversationHandler) Messages(c *gin.Context) {
	conversation, _, ok := h.loadConversation(c)
	if !ok {
		return
	}

	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_INPUT", err.Error()))
		return
	}
	page.SetDefaults()

	messages, total, err := h.messageRepo.FindByConversation(c.Request.Context(), conversation.ID, repositories.FindOptions{
		Offset: page.Offset(),
		Limit:  page.Limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Không đọc được tin nhắn"))
		return
	}

	c.JSON(http.StatusOK, dto.SuccessWithMeta(messages, dto.NewMeta(page.Page, page.Limit, total)))
}

// Send agent gửi tin nhắn vào conversation
// POST /conversations/:id/messages
// Lỗi channel (VD: FB token hết hạn) được surface verbatim cho agent
func (h *ConversationHandler) Send(c *gin.Context) {
	conversation, storeID, ok := h.loadConversation(c)
	if !ok {
		return
	}

	var req dto.AgentMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_INPUT", err.Error()))
		return
	}

	store, err := h.storeRepo.FindByID(c.Request.Context(), storeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Không đọc được store"))
		return
	}

	msg, err := h.messageService.SendAgentMessage(c.Request.Context(), store, conversation.ID, req.Content)
	if err != nil {
		h.logger.Warn("agent send failed",
			zap.String("conversation_id", conversation.ID.String()),
			zap.Error(err),
		)
		status := apperrors.StatusCode(err)
		c.JSON(status, dto.Error(apperrors.ErrorCode(err), err.Error()))
		return
	}

	c.JSON(http.StatusOK, dto.Success(msg))
}

// ToggleAi bật/tắt AI cho conversation
// PATCH /conversations/:id/ai
func (h *ConversationHandler) ToggleAi(c *gin.Context) {
	conversation, storeID, ok := h.loadConversation(c)
	if !ok {
		return
	}

	var req dto.ToggleAiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_INPUT", err.Error()))
		return
	}

	if req.Suspended {
		conversation.SuspendAi()
	} else {
		conversation.ResumeAi()
	}

	if err := h.convRepo.Update(c.Request.Context(), conversation); err != nil {
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Không cập nhật được"))
		return
	}

	h.publishUpdate(storeID, conversation)
	c.JSON(http.StatusOK, dto.Success(conversation))
}

// UpdateStatus đổi trạng thái conversation
// PATCH /conversations/:id/status
// CLOSED là terminal: tin nhắn tiếp theo từ khách mở conversation MỚI
func (h *ConversationHandler) UpdateStatus(c *gin.Context) {
	conversation, storeID, ok := h.loadConversation(c)
	if !ok {
		return
	}

	var req dto.UpdateConversationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_INPUT", err.Error()))
		return
	}

	if conversation.IsClosed() {
		c.JSON(http.StatusConflict, dto.Error("CONFLICT", "Conversation đã đóng, không reopen được"))
		return
	}

	if req.Status == string(models.StatusClosed) {
		conversation.Close()
		if err := h.convRepo.Update(c.Request.Context(), conversation); err != nil {
			c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Không cập nhật được"))
			return
		}
	}

	h.publishUpdate(storeID, conversation)
	c.JSON(http.StatusOK, dto.Success(conversation))
}

// UpdateTags thay tag set của conversation
// PUT /conversations/:id/tags
func (h *ConversationHandler) UpdateTags(c *gin.Context) {
	conversation, storeID, ok := h.loadConversation(c)
	if !ok {
		return
	}

	var req dto.UpdateTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_INPUT", err.Error()))
		return
	}

	conversation.Tags = models.TagSet(req.Tags)
	if err := h.convRepo.Update(c.Request.Context(), conversation); err != nil {
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Không cập nhật được"))
		return
	}

	h.publishUpdate(storeID, conversation)
	c.JSON(http.StatusOK, dto.Success(conversation))
}

// ReviewMessage agent đánh giá chất lượng câu trả lời AI
// PATCH /conversations/:id/messages/:messageId/review
// Content gốc không bị sửa - correction lưu ở side field
func (h *ConversationHandler) ReviewMessage(c *gin.Context) {
	conversation, _, ok := h.loadConversation(c)
	if !ok {
		return
	}

	messageID, err := uuid.Parse(c.Param("messageId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_INPUT", "message id không hợp lệ"))
		return
	}

	var req dto.QualityReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_INPUT", err.Error()))
		return
	}

	msg, err := h.messageRepo.FindByID(c.Request.Context(), messageID)
	if err != nil || msg.ConversationID != conversation.ID {
		c.JSON(http.StatusNotFound, dto.Error("NOT_FOUND", "Message không tồn tại"))
		return
	}

	if !msg.IsFromAi() {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_INPUT", "Chỉ review được tin nhắn AI"))
		return
	}

	var feedback, corrected *string
	if req.Feedback != "" {
		feedback = &req.Feedback
	}
	if req.CorrectedContent != "" {
		corrected = &req.CorrectedContent
	}
	msg.SetQualityReview(req.Rating, feedback, corrected)

	if err := h.messageRepo.UpdateQualityReview(c.Request.Context(), msg); err != nil {
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Không lưu được đánh giá"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(msg))
}

// publishUpdate đẩy realtime event cho dashboard (best-effort)
func (h *ConversationHandler) publishUpdate(storeID uuid.UUID, conversation *models.Conversation) {
	if h.publisher == nil {
		return
	}
	go func() {
		suspended := conversation.IsAiSuspended
		event := &realtime.ConversationEvent{
			Type:           "conversation_updated",
			ConversationID: conversation.ID,
			Status:         string(conversation.Status),
			AiSuspended:    &suspended,
		}
		if err := h.publisher.PublishConversationUpdate(storeID, event); err != nil {
			h.logger.Warn("failed to publish conversation event", zap.Error(err))
		}
	}()
}

// ===========================================================================
// Route Registration
// ===========================================================================

// RegisterRoutes đăng ký conversation routes (yêu cầu auth middleware)
func (h *ConversationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	conversations := rg.Group("/conversations")
	{
		conversations.GET("", h.List)
		conversations.GET("/:id", h.Get)
		conversations.GET("/:id/messages", h.Messages)
		conversations.POST("/:id/messages", h.Send)
		conversations.PATCH("/:id/ai", h.ToggleAi)
		conversations.PATCH("/:id/status", h.UpdateStatus)
		conversations.PUT("/:id/tags", h.UpdateTags)
		conversations.PATCH("/:id/messages/:messageId/review", h.ReviewMessage)
	}
}
