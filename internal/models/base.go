package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// Base models
// Hai loại record trong hệ thống:
// - BaseModel: các entity có thể sửa/xóa mềm (store, agent, customer...)
// - AppendOnlyModel: các record chỉ ghi thêm, không bao giờ xóa
//   (message, broadcast, webhook event)
// ===========================================================================

// BaseModel chứa các trường chung cho entity có vòng đời đầy đủ
type BaseModel struct {
	// ID là primary key dạng UUID, tự động generate nếu không có
	ID uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`

	// CreatedAt thời điểm tạo record
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`

	// UpdatedAt thời điểm cập nhật gần nhất
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`

	// DeletedAt dùng cho soft delete, nếu có giá trị = đã xóa
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// BeforeCreate generate UUID nếu chưa có
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// IsDeleted kiểm tra record đã bị soft delete chưa
func (b *BaseModel) IsDeleted() bool {
	return b.DeletedAt.Valid
}

// AppendOnlyModel cho record bất biến: message transcript, broadcast
// campaign, webhook audit. Không có DeletedAt - lịch sử không bị xóa
type AppendOnlyModel struct {
	ID uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`

	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

// BeforeCreate generate UUID nếu chưa có
func (b *AppendOnlyModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
