package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"storechat-gin/internal/channel"
	"storechat-gin/internal/dto"
	"storechat-gin/internal/middleware"
	"storechat-gin/internal/models"
	"storechat-gin/internal/repositories"
	"storechat-gin/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ===========================================================================
// Webhook Handler
// Nhận events từ Facebook và Zalo
// Authenticate CHANNEL (verify token, signature, secret) chứ không phải
// end customer. Luôn trả 200 cho provider - provider tự retry delivery,
// retry của mình sẽ gây duplicate
// ===========================================================================

// WebhookHandler xử lý webhook endpoints
type WebhookHandler struct {
	channelRegistry *channel.Registry
	storeRepo       repositories.StoreRepository
	webhookRepo     repositories.WebhookEventRepository
	messageService  services.MessageService
	fbVerifyToken   string
	logger          *zap.Logger
}

// NewWebhookHandler tạo handler mới
func NewWebhookHandler(
	registry *channel.Registry,
	storeRepo repositories.StoreRepository,
	webhookRepo repositories.WebhookEventRepository,
	messageService services.MessageService,
	fbVerifyToken string,
	logger *zap.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		channelRegistry: registry,
		storeRepo:       storeRepo,
		webhookRepo:     webhookRepo,
		messageService:  messageService,
		fbVerifyToken:   fbVerifyToken,
		logger:          logger,
	}
}

// ===========================================================================
// Facebook Webhook
// ===========================================================================

// FacebookVerify xử lý GET request để verify webhook
// GET /webhooks/facebook
func (h *WebhookHandler) FacebookVerify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	h.logger.Info("fb webhook verify",
		zap.String("mode", mode),
	)

	if mode == "subscribe" && token == h.fbVerifyToken {
		c.String(http.StatusOK, challenge)
		return
	}

	c.JSON(http.StatusForbidden, dto.Error("FORBIDDEN", "Invalid verify token"))
}

// FacebookWebhook xử lý POST request nhận tin nhắn
// POST /webhooks/facebook
func (h *WebhookHandler) FacebookWebhook(c *gin.Context) {
	requestID := middleware.GetRequestID(c)
	ctx := c.Request.Context()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("BAD_REQUEST", "Cannot read body"))
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("BAD_REQUEST", "Invalid JSON"))
		return
	}

	fbChannel, err := h.channelRegistry.Get(models.ChannelFacebook)
	if err != nil {
		h.logger.Error("facebook channel not registered", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	// Resolve store từ Page ID trong payload
	pageID := h.extractPageID(payload)
	if pageID == "" {
		h.logger.Warn("no page id in fb payload")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	store, err := h.storeRepo.FindByFbPageID(ctx, pageID)
	if err != nil {
		h.logger.Warn("no store for fb page",
			zap.String("page_id", pageID),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	// Verify X-Hub-Signature-256 với app secret của store
	signature := c.GetHeader("X-Hub-Signature-256")
	if store.Credentials.FbAppSecret != "" &&
		!fbChannel.Verify(signature, body, store.Credentials.FbAppSecret) {
		h.logger.Warn("fb signature verification failed",
			zap.String("store_id", store.ID.String()),
		)
		c.JSON(http.StatusForbidden, dto.Error("FORBIDDEN", "Invalid signature"))
		return
	}

	h.process(c, store, models.ChannelFacebook, fbChannel, payload, requestID)
}

// extractPageID lấy Page ID từ FB webhook payload
func (h *WebhookHandler) extractPageID(payload map[string]interface{}) string {
	entries, ok := payload["entry"].([]interface{})
	if !ok || len(entries) == 0 {
		return ""
	}

	entry, ok := entries[0].(map[string]interface{})
	if !ok {
		return ""
	}

	pageID, _ := entry["id"].(string)
	return pageID
}

// ===========================================================================
// Zalo Webhook
// ===========================================================================

// ZaloWebhook xử lý POST request nhận tin nhắn từ Zalo OA
// POST /webhooks/zalo
func (h *WebhookHandler) ZaloWebhook(c *gin.Context) {
	requestID := middleware.GetRequestID(c)
	ctx := c.Request.Context()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("BAD_REQUEST", "Cannot read body"))
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("BAD_REQUEST", "Invalid JSON"))
		return
	}

	zaloChannel, err := h.channelRegistry.Get(models.ChannelZalo)
	if err != nil {
		h.logger.Error("zalo channel not registered", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	// Resolve store từ OA ID (recipient của event)
	oaID := h.extractOAID(payload)
	if oaID == "" {
		h.logger.Warn("no oa id in zalo payload")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	store, err := h.storeRepo.FindByZaloOAID(ctx, oaID)
	if err != nil {
		h.logger.Warn("no store for zalo oa",
			zap.String("oa_id", oaID),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	// Verify shared secret của store
	secret := c.GetHeader("X-ZEvent-Secret")
	if !zaloChannel.Verify(secret, body, store.Credentials.ZaloSecretKey) {
		h.logger.Warn("zalo secret verification failed",
			zap.String("store_id", store.ID.String()),
		)
		c.JSON(http.StatusForbidden, dto.Error("FORBIDDEN", "Invalid secret"))
		return
	}

	h.process(c, store, models.ChannelZalo, zaloChannel, payload, requestID)
}

// extractOAID lấy OA ID từ Zalo webhook payload
func (h *WebhookHandler) extractOAID(payload map[string]interface{}) string {
	recipient, ok := payload["recipient"].(map[string]interface{})
	if !ok {
		return ""
	}
	oaID, _ := recipient["id"].(string)
	return oaID
}

// ===========================================================================
// Common processing
// ===========================================================================

// process normalize payload, audit event và chạy pipeline
// Luôn trả 200 - provider retry sẽ tạo duplicate message
func (h *WebhookHandler) process(c *gin.Context, store *models.Store, ch models.Channel, adapter channel.Channel, payload map[string]interface{}, requestID string) {
	ctx := c.Request.Context()

	// Audit trail: lưu raw payload trước khi xử lý
	event := &models.WebhookEvent{
		StoreID: &store.ID,
		Channel: ch,
		Payload: models.RawPayload(payload),
		Status:  models.WebhookPending,
	}
	if err := h.webhookRepo.Create(ctx, event); err != nil {
		h.logger.Warn("failed to record webhook event", zap.Error(err))
		event = nil
	}

	inbound, err := adapter.Normalize(ctx, store, payload)
	if err != nil {
		h.logger.Warn("normalize failed",
			zap.String("channel", string(ch)),
			zap.Error(err),
		)
		h.markEvent(ctx, event, false, err.Error())
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	result, err := h.messageService.ProcessInbound(ctx, store, inbound)
	if err != nil {
		h.logger.Error("process inbound failed",
			zap.String("request_id", requestID),
			zap.String("channel", string(ch)),
			zap.Error(err),
		)
		h.markEvent(ctx, event, false, err.Error())
	} else {
		h.logger.Info("webhook message processed",
			zap.String("request_id", requestID),
			zap.String("channel", string(ch)),
			zap.String("conversation_id", result.ConversationID.String()),
			zap.Bool("ai_replied", result.AiReplied),
		)
		h.markEvent(ctx, event, true, "")
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// markEvent cập nhật trạng thái xử lý của webhook event
func (h *WebhookHandler) markEvent(ctx context.Context, event *models.WebhookEvent, ok bool, reason string) {
	if event == nil {
		return
	}
	if ok {
		event.MarkProcessed()
	} else {
		event.MarkFailed(reason)
	}
	if err := h.webhookRepo.Update(ctx, event); err != nil {
		h.logger.Warn("failed to update webhook event", zap.Error(err))
	}
}

// ===========================================================================
// Route Registration
// ===========================================================================

// RegisterRoutes đăng ký webhook routes
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	webhook := rg.Group("/webhooks")
	{
		// Facebook webhooks
		webhook.GET("/facebook", h.FacebookVerify)
		webhook.POST("/facebook", h.FacebookWebhook)

		// Zalo webhooks
		webhook.POST("/zalo", h.ZaloWebhook)
	}
}
