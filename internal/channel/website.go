package channel

import (
	"context"
	"fmt"
	"time"

	"storechat-gin/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Website Channel
// Kênh widget nhúng trên website của store
// Delivery outbound chỉ là persist message row - widget tự poll về
// ===========================================================================

// WebsiteChannel implements Channel interface cho website widget
type WebsiteChannel struct {
	logger *zap.Logger
}

// NewWebsiteChannel tạo website channel mới
func NewWebsiteChannel(logger *zap.Logger) *WebsiteChannel {
	return &WebsiteChannel{
		logger: logger,
	}
}

// Type trả về loại channel
func (c *WebsiteChannel) Type() models.Channel {
	return models.ChannelWebsite
}

// Normalize chuyển đổi widget payload thành InboundEvent chuẩn
//
// Expected payload format:
//
//	{
//	    "visitor_key": "widget_abc123",
//	    "name": "Nguyễn Văn A",
//	    "email": "a@example.com",
//	    "phone": "0901234567",
//	    "message": "Shop còn hàng không?"
//	}
func (c *WebsiteChannel) Normalize(
	ctx context.Context,
	store *models.Store,
	payload map[string]interface{},
) (*InboundEvent, error) {
	// visitor_key bắt buộc - widget tự generate và giữ trong localStorage
	visitorKey, ok := payload["visitor_key"].(string)
	if !ok || visitorKey == "" {
		return nil, fmt.Errorf("widget payload thiếu 'visitor_key'")
	}

	content, _ := payload["message"].(string)

	event := &InboundEvent{
		StoreID:          store.ID,
		Channel:          models.ChannelWebsite,
		ExternalKey:      visitorKey,
		DisplayName:      getString(payload, "name"),
		Email:            getString(payload, "email"),
		Phone:            getString(payload, "phone"),
		ChannelMessageID: fmt.Sprintf("web_%s_%d", visitorKey, time.Now().UnixNano()),
		Content:          content,
		Timestamp:        time.Now(),
		RawPayload:       payload,
	}

	c.logger.Debug("website channel: đã normalize message",
		zap.String("store_id", store.ID.String()),
		zap.String("visitor_key", visitorKey),
	)

	return event, nil
}

// Send "gửi" tin nhắn cho khách website
// Widget lấy tin nhắn bằng polling nên delivery chỉ cần persist -
// service layer đã lưu message row trước khi gọi đến đây
func (c *WebsiteChannel) Send(
	ctx context.Context,
	storeID uuid.UUID,
	creds models.ChannelCredentials,
	msg *OutboundMessage,
) (*SendResult, error) {
	if msg.RecipientKey == "" {
		return &SendResult{
			Success: false,
			Error:   fmt.Errorf("recipient_key không được để trống"),
		}, nil
	}

	messageID := fmt.Sprintf("web_sent_%d", time.Now().UnixNano())

	c.logger.Debug("website channel: message sẵn sàng cho polling",
		zap.String("recipient_key", msg.RecipientKey),
		zap.String("message_id", messageID),
	)

	return &SendResult{
		Success:          true,
		ChannelMessageID: messageID,
	}, nil
}

// Verify luôn trả về true - widget endpoint không có webhook signature,
// request được bảo vệ bằng store slug resolution
func (c *WebsiteChannel) Verify(signature string, body []byte, secret string) bool {
	return true
}

// ===========================================================================
// Helper functions
// ===========================================================================

// getString lấy string value từ map, trả về empty string nếu không tìm thấy
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
