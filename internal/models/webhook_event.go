package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

// ===========================================================================
// WebhookEvent (Sự kiện webhook)
// Audit trail cho các webhook nhận từ Facebook/Zalo
// Lưu raw payload để debug khi xử lý lỗi
// ===========================================================================

// WebhookStatus trạng thái xử lý webhook
type WebhookStatus string

const (
	WebhookPending   WebhookStatus = "pending"
	WebhookProcessed WebhookStatus = "processed"
	WebhookFailed    WebhookStatus = "failed"
)

// RawPayload JSON payload gốc từ provider
type RawPayload map[string]interface{}

// Value implement driver.Valuer cho JSONB
func (p RawPayload) Value() (driver.Value, error) {
	if p == nil {
		return json.Marshal(map[string]interface{}{})
	}
	return json.Marshal(p)
}

// Scan implement sql.Scanner cho JSONB
func (p *RawPayload) Scan(value interface{}) error {
	if value == nil {
		*p = RawPayload{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, p)
}

// WebhookEvent lưu một lần nhận webhook
type WebhookEvent struct {
	AppendOnlyModel

	// StoreID ID store nhận webhook (nullable nếu không resolve được)
	StoreID *uuid.UUID `gorm:"type:uuid;index" json:"store_id,omitempty"`

	// Channel kênh gửi webhook (facebook/zalo)
	Channel Channel `gorm:"size:50;not null" json:"channel"`

	// Payload raw JSON từ provider
	Payload RawPayload `gorm:"type:jsonb;default:'{}'" json:"payload"`

	// Status trạng thái xử lý
	Status WebhookStatus `gorm:"size:20;not null;default:'pending'" json:"status"`

	// ErrorLog chi tiết lỗi nếu xử lý thất bại
	ErrorLog *string `gorm:"type:text" json:"error_log,omitempty"`
}

// TableName trả về tên bảng
func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// MarkProcessed đánh dấu webhook đã xử lý xong
func (e *WebhookEvent) MarkProcessed() {
	e.Status = WebhookProcessed
}

// MarkFailed đánh dấu webhook xử lý thất bại kèm lý do
func (e *WebhookEvent) MarkFailed(reason string) {
	e.Status = WebhookFailed
	e.ErrorLog = &reason
}
