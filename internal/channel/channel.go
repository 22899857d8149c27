package channel

import (
	"context"
	"time"

	"storechat-gin/internal/models"

	"github.com/google/uuid"
)

// ===========================================================================
// Các interfaces cho hệ thống channel messaging
// Channel là một kênh giao tiếp của store (Website widget, Facebook, Zalo)
// ===========================================================================

// InboundEvent đại diện cho tin nhắn nhận được từ khách hàng
// Đây là cấu trúc chuẩn hóa, bất kể nguồn gốc từ channel nào
type InboundEvent struct {
	// StoreID store nhận tin nhắn
	StoreID uuid.UUID

	// Channel kênh tin nhắn đến từ
	Channel models.Channel

	// ExternalKey định danh khách trên channel (email, FB PSID, Zalo UID)
	ExternalKey string

	// DisplayName tên hiển thị của khách (nếu channel cung cấp)
	DisplayName string

	// AvatarURL URL avatar của khách (nếu có)
	AvatarURL string

	// Email email khách cung cấp (lead form)
	Email string

	// Phone số điện thoại khách cung cấp (lead form)
	Phone string

	// ChannelMessageID ID tin nhắn gốc từ channel (dùng cho deduplication)
	ChannelMessageID string

	// Content nội dung text của tin nhắn
	Content string

	// Timestamp thời điểm gửi tin nhắn
	Timestamp time.Time

	// RawPayload dữ liệu gốc từ webhook (để debug và audit)
	RawPayload map[string]interface{}
}

// OutboundMessage đại diện cho tin nhắn gửi đi cho khách hàng
type OutboundMessage struct {
	// RecipientKey định danh người nhận trên channel (ExternalKey của customer)
	RecipientKey string

	// Content nội dung text
	Content string
}

// SendResult kết quả gửi tin nhắn
type SendResult struct {
	// Success tin nhắn đã gửi thành công chưa
	Success bool

	// ChannelMessageID là ID tin nhắn được tạo bởi channel
	ChannelMessageID string

	// Error lỗi nếu có
	Error error
}

// ===========================================================================
// Interfaces chính
// ===========================================================================

// Normalizer chuyển đổi webhook payload thành InboundEvent chuẩn
// Mỗi channel type sẽ có implementation riêng
type Normalizer interface {
	// Normalize chuyển đổi raw payload thành InboundEvent
	// store là store nhận webhook (đã resolve từ page/OA id hoặc slug)
	Normalize(ctx context.Context, store *models.Store, payload map[string]interface{}) (*InboundEvent, error)
}

// Sender gửi tin nhắn đi cho khách hàng
// Mỗi channel type sẽ có implementation riêng để gọi API tương ứng
type Sender interface {
	// Send gửi tin nhắn với credentials của store và trả về kết quả
	// storeID dùng cho write-back khi channel tự refresh token
	Send(ctx context.Context, storeID uuid.UUID, creds models.ChannelCredentials, msg *OutboundMessage) (*SendResult, error)
}

// SignatureVerifier xác thực webhook
// Đảm bảo webhook đến từ đúng nguồn (FB, Zalo) và không bị tamper
type SignatureVerifier interface {
	// Verify kiểm tra chữ ký của request
	// signature là giá trị từ header (X-Hub-Signature-256, etc.)
	// body là raw body của request
	// secret là secret key để verify
	Verify(signature string, body []byte, secret string) bool
}

// Channel là interface tổng hợp cho một channel adapter
// Mỗi channel (website, facebook, zalo) sẽ implement interface này
type Channel interface {
	Normalizer
	Sender
	SignatureVerifier

	// Type trả về loại channel
	Type() models.Channel
}
