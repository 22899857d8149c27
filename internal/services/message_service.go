package services

import (
	"context"

	"storechat-gin/internal/channel"
	"storechat-gin/internal/models"

	"github.com/google/uuid"
)

// ===========================================================================
// Message Service Interface
// Luồng chính của routing engine:
// normalize -> resolve customer/conversation -> lưu USER message ->
// gate AI -> assemble context -> AI reply (hoặc fallback) -> dispatch
// ===========================================================================

// ProcessResult kết quả xử lý một inbound event
type ProcessResult struct {
	// CustomerID ID customer (mới tạo hoặc có sẵn)
	CustomerID uuid.UUID

	// CustomerCreated customer mới được tạo
	CustomerCreated bool

	// ConversationID ID conversation (mới tạo hoặc có sẵn)
	ConversationID uuid.UUID

	// ConversationCreated conversation mới được tạo
	ConversationCreated bool

	// UserMessageID ID message USER đã lưu
	UserMessageID uuid.UUID

	// AiReplied AI đã trả lời (kể cả fallback)
	AiReplied bool

	// UsedFallback câu trả lời là fallback do AI unavailable/timeout
	UsedFallback bool

	// ReplyContent nội dung câu trả lời (rỗng nếu AI suspended)
	ReplyContent string

	// ReplyMessageID ID message AI đã lưu (uuid.Nil nếu không có)
	ReplyMessageID uuid.UUID
}

// MessageService interface cho message processing
type MessageService interface {
	// ProcessInbound xử lý inbound event từ bất kỳ channel nào
	// AI chỉ trả lời khi conversation đang OPEN và không bị suspend -
	// flag được đọc lại ngay trước khi gọi AI, không cache
	ProcessInbound(ctx context.Context, store *models.Store, inbound *channel.InboundEvent) (*ProcessResult, error)

	// ResolveLead xử lý lead-capture form: tạo/update customer với contact
	// info và đảm bảo có conversation OPEN, không gọi AI
	ResolveLead(ctx context.Context, store *models.Store, inbound *channel.InboundEvent) (*ProcessResult, error)

	// SendAgentMessage agent gửi tin nhắn vào conversation
	// Message được persist với role AGENT và dispatch ra channel gốc
	SendAgentMessage(ctx context.Context, store *models.Store, conversationID uuid.UUID, content string) (*models.Message, error)
}
