package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ===========================================================================
// Conversation (Cuộc hội thoại)
// Đơn vị routing chính: gắn khách hàng với inbox của store
// Mỗi (store, customer) chỉ có tối đa một conversation OPEN
// ===========================================================================

// ConversationStatus trạng thái cuộc hội thoại
type ConversationStatus string

const (
	// StatusOpen đang mở, nhận tin nhắn mới
	StatusOpen ConversationStatus = "OPEN"

	// StatusClosed đã đóng - terminal, tin nhắn mới sẽ mở conversation khác
	StatusClosed ConversationStatus = "CLOSED"
)

// TagSet danh sách tag gán cho conversation, lưu JSONB
type TagSet []string

// Value implement driver.Valuer cho JSONB
func (t TagSet) Value() (driver.Value, error) {
	if t == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(t)
}

// Scan implement sql.Scanner cho JSONB
func (t *TagSet) Scan(value interface{}) error {
	if value == nil {
		*t = []string{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, t)
}

// Has kiểm tra tag đã tồn tại chưa
func (t TagSet) Has(tag string) bool {
	for _, existing := range t {
		if existing == tag {
			return true
		}
	}
	return false
}

// Conversation đại diện cho một cuộc hội thoại
type Conversation struct {
	BaseModel

	// StoreID ID store
	StoreID uuid.UUID `gorm:"type:uuid;not null;index" json:"store_id"`

	// CustomerID ID khách hàng
	CustomerID uuid.UUID `gorm:"type:uuid;not null;index" json:"customer_id"`

	// Status trạng thái: OPEN hoặc CLOSED
	// Unique partial index đảm bảo mỗi (store, customer) chỉ có một
	// conversation OPEN - chặn race khi hai inbound event đến cùng lúc:
	//   CREATE UNIQUE INDEX uq_open_conversation
	//   ON conversations (store_id, customer_id) WHERE status = 'OPEN'
	Status ConversationStatus `gorm:"size:20;not null;default:'OPEN';index" json:"status"`

	// IsAiSuspended true = agent đang xử lý, AI không được tự trả lời
	IsAiSuspended bool `gorm:"not null;default:false" json:"is_ai_suspended"`

	// LastMessage preview tin nhắn cuối (denormalized cho list view)
	LastMessage *string `gorm:"size:500" json:"last_message,omitempty"`

	// LastMessageAt thời điểm tin nhắn cuối cùng
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`

	// Tags nhãn gán cho conversation
	Tags TagSet `gorm:"type:jsonb;default:'[]'" json:"tags"`

	// ClosedAt thời điểm đóng hội thoại
	ClosedAt *time.Time `json:"closed_at,omitempty"`

	// Relations
	Store    Store     `gorm:"foreignKey:StoreID" json:"store,omitempty"`
	Customer Customer  `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Messages []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// TableName trả về tên bảng
func (Conversation) TableName() string {
	return "conversations"
}

// IsOpen kiểm tra hội thoại đang mở
func (c *Conversation) IsOpen() bool { return c.Status == StatusOpen }

// IsClosed kiểm tra hội thoại đã đóng
func (c *Conversation) IsClosed() bool { return c.Status == StatusClosed }

// AiActive kiểm tra AI có được phép tự trả lời không
func (c *Conversation) AiActive() bool {
	return c.Status == StatusOpen && !c.IsAiSuspended
}

// SuspendAi chuyển sang chế độ agent xử lý, AI dừng trả lời
func (c *Conversation) SuspendAi() {
	c.IsAiSuspended = true
}

// ResumeAi bật lại AI tự động trả lời
func (c *Conversation) ResumeAi() {
	c.IsAiSuspended = false
}

// Close đóng hội thoại - terminal, không reopen
// Tin nhắn tiếp theo từ khách sẽ tạo conversation mới
func (c *Conversation) Close() {
	c.Status = StatusClosed
	now := time.Now()
	c.ClosedAt = &now
}

// AddTag gán tag nếu chưa có
func (c *Conversation) AddTag(tag string) {
	if !c.Tags.Has(tag) {
		c.Tags = append(c.Tags, tag)
	}
}

// RemoveTag bỏ tag khỏi conversation
func (c *Conversation) RemoveTag(tag string) {
	filtered := make(TagSet, 0, len(c.Tags))
	for _, existing := range c.Tags {
		if existing != tag {
			filtered = append(filtered, existing)
		}
	}
	c.Tags = filtered
}

// LastMessagePreview cắt content về giới hạn của cột last_message
func LastMessagePreview(content string) string {
	if len(content) > 500 {
		return content[:497] + "..."
	}
	return content
}
