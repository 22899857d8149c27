package models

import (
	"time"

	"github.com/google/uuid"
)

// ===========================================================================
// Broadcast (Chiến dịch gửi hàng loạt)
// Record ghi lại một lần fan-out tin nhắn đến tất cả conversations của store
// Tạo sau khi fan-out hoàn tất; RecipientCount chỉ đếm các lần gửi thành công
// ===========================================================================

// Broadcast đại diện cho một chiến dịch broadcast
type Broadcast struct {
	AppendOnlyModel

	// StoreID ID store thực hiện broadcast
	StoreID uuid.UUID `gorm:"type:uuid;not null;index" json:"store_id"`

	// Name tên chiến dịch (VD: "Khuyến mãi 8/3")
	Name string `gorm:"size:255;not null" json:"name"`

	// Content nội dung tin nhắn đã gửi
	Content string `gorm:"type:text;not null" json:"content"`

	// RecipientCount số conversation gửi thành công
	RecipientCount int `gorm:"not null;default:0" json:"recipient_count"`

	// SentAt thời điểm hoàn tất fan-out
	SentAt time.Time `gorm:"not null" json:"sent_at"`

	// Relations
	Store Store `gorm:"foreignKey:StoreID" json:"store,omitempty"`
}

// TableName trả về tên bảng
func (Broadcast) TableName() string {
	return "broadcasts"
}
