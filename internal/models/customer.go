package models

import (
	"time"

	"github.com/google/uuid"
)

// ===========================================================================
// Customer (Khách hàng)
// Đại diện cho một khách hàng chat với store
// Identify bằng (store, channel, external key) - không merge giữa các channel
// ===========================================================================

// Channel loại kênh giao tiếp
type Channel string

const (
	// ChannelWebsite widget nhúng trên website
	ChannelWebsite Channel = "website"

	// ChannelFacebook Facebook Page
	ChannelFacebook Channel = "facebook"

	// ChannelZalo Zalo Official Account
	ChannelZalo Channel = "zalo"
)

// PlaceholderName tên mặc định khi không biết tên khách
const PlaceholderName = "Khách hàng"

// Customer đại diện cho khách hàng của một store
type Customer struct {
	BaseModel

	// StoreID ID store sở hữu khách hàng
	StoreID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:uq_customer_channel_key" json:"store_id"`

	// Channel kênh mà khách hàng đến từ
	Channel Channel `gorm:"size:50;not null;uniqueIndex:uq_customer_channel_key" json:"channel"`

	// ExternalKey định danh khách trên channel (email, FB PSID, Zalo UID)
	ExternalKey string `gorm:"size:255;not null;uniqueIndex:uq_customer_channel_key" json:"external_key"`

	// Name tên khách hàng, mặc định là placeholder nếu chưa biết
	Name string `gorm:"size:255;not null" json:"name"`

	// Email email (nếu khách cung cấp)
	Email *string `gorm:"size:255" json:"email,omitempty"`

	// Phone số điện thoại (nếu khách cung cấp)
	Phone *string `gorm:"size:50" json:"phone,omitempty"`

	// AvatarURL URL avatar (lấy từ FB/Zalo profile)
	AvatarURL *string `gorm:"size:500" json:"avatar_url,omitempty"`

	// LastInteractionAt lần cuối cùng khách tương tác
	LastInteractionAt *time.Time `json:"last_interaction_at,omitempty"`

	// Relations
	Store         Store          `gorm:"foreignKey:StoreID" json:"store,omitempty"`
	Conversations []Conversation `gorm:"foreignKey:CustomerID" json:"conversations,omitempty"`
}

// TableName trả về tên bảng
func (Customer) TableName() string {
	return "customers"
}

// TouchInteraction cập nhật thời gian tương tác gần nhất
func (c *Customer) TouchInteraction() {
	now := time.Now()
	c.LastInteractionAt = &now
}

// HasRealName kiểm tra khách đã có tên thật chưa (không phải placeholder)
func (c *Customer) HasRealName() bool {
	return c.Name != "" && c.Name != PlaceholderName
}

// HasContactInfo kiểm tra khách có thông tin liên hệ không
func (c *Customer) HasContactInfo() bool {
	return (c.Email != nil && *c.Email != "") || (c.Phone != nil && *c.Phone != "")
}
