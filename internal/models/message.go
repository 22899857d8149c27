package models

import (
	"time"

	"github.com/google/uuid"
)

// ===========================================================================
// Message (Tin nhắn)
// Record append-only thuộc về một Conversation
// Content không bao giờ sửa sau khi tạo - correction lưu ở side field
// ===========================================================================

// MessageRole vai trò người gửi
type MessageRole string

const (
	// RoleUser tin nhắn từ khách hàng
	RoleUser MessageRole = "USER"

	// RoleAi tin nhắn AI tự động trả lời
	RoleAi MessageRole = "AI"

	// RoleAgent tin nhắn từ nhân viên (broadcast cũng dùng role này)
	RoleAgent MessageRole = "AGENT"
)

// Message đại diện cho một tin nhắn
type Message struct {
	AppendOnlyModel

	// ConversationID ID cuộc hội thoại
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index" json:"conversation_id"`

	// Role vai trò: USER, AI, AGENT
	Role MessageRole `gorm:"size:20;not null" json:"role"`

	// Content nội dung text - immutable sau khi tạo
	Content string `gorm:"type:text;not null" json:"content"`

	// Rating đánh giá chất lượng câu trả lời AI (offline tuning)
	Rating *int `json:"rating,omitempty"`

	// Feedback nhận xét của agent về câu trả lời
	Feedback *string `gorm:"type:text" json:"feedback,omitempty"`

	// CorrectedContent câu trả lời đã sửa - không mutate Content gốc
	CorrectedContent *string `gorm:"type:text" json:"corrected_content,omitempty"`

	// ChannelMessageID ID tin nhắn trên channel (để dedup)
	ChannelMessageID *string `gorm:"size:255;index" json:"channel_message_id,omitempty"`

	// Relations
	Conversation Conversation `gorm:"foreignKey:ConversationID" json:"conversation,omitempty"`
}

// TableName trả về tên bảng
func (Message) TableName() string {
	return "messages"
}

// IsFromCustomer kiểm tra tin nhắn từ khách hàng
func (m *Message) IsFromCustomer() bool { return m.Role == RoleUser }

// IsFromAi kiểm tra tin nhắn từ AI
func (m *Message) IsFromAi() bool { return m.Role == RoleAi }

// IsFromAgent kiểm tra tin nhắn từ agent
func (m *Message) IsFromAgent() bool { return m.Role == RoleAgent }

// SetQualityReview ghi nhận đánh giá chất lượng cho tin nhắn AI
// Chỉ lưu vào side fields, không đổi Content
func (m *Message) SetQualityReview(rating *int, feedback, corrected *string) {
	if rating != nil {
		m.Rating = rating
	}
	if feedback != nil {
		m.Feedback = feedback
	}
	if corrected != nil {
		m.CorrectedContent = corrected
	}
}

// GetContentPreview trả về preview nội dung
func (m *Message) GetContentPreview(maxLen int) string {
	if len(m.Content) > maxLen {
		return m.Content[:maxLen-3] + "..."
	}
	return m.Content
}

// SentAfter kiểm tra tin nhắn được tạo sau thời điểm t
func (m *Message) SentAfter(t time.Time) bool {
	return m.CreatedAt.After(t)
}
