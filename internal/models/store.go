package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
)

// ===========================================================================
// Store (Cửa hàng)
// Đại diện cho một shop trong hệ thống multi-tenant
// Chứa persona AI, cấu hình widget và credentials của các channel
// ===========================================================================

// AiPersona các trường cấu hình tính cách AI của store
// PriorityInstructions có độ ưu tiên cao nhất khi ghép prompt
type AiPersona struct {
	// AiName tên nhân viên ảo (VD: "Lan")
	AiName string `json:"ai_name,omitempty"`

	// AiDescription mô tả ngắn về shop
	AiDescription string `json:"ai_description,omitempty"`

	// AiIdentity vai trò của AI (VD: "nhân viên tư vấn bán hàng")
	AiIdentity string `json:"ai_identity,omitempty"`

	// AiStyle giọng điệu trả lời
	AiStyle string `json:"ai_style,omitempty"`

	// AiRequirements các yêu cầu bắt buộc khi trả lời
	AiRequirements string `json:"ai_requirements,omitempty"`

	// AiExceptions các trường hợp AI không được trả lời
	AiExceptions string `json:"ai_exceptions,omitempty"`

	// AiPriorityInstructions chỉ dẫn ưu tiên cao nhất, override knowledge
	AiPriorityInstructions string `json:"ai_priority_instructions,omitempty"`
}

// Value implement driver.Valuer cho JSONB
func (p AiPersona) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implement sql.Scanner cho JSONB
func (p *AiPersona) Scan(value interface{}) error {
	if value == nil {
		*p = AiPersona{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, p)
}

// IsEmpty kiểm tra persona chưa được cấu hình
func (p *AiPersona) IsEmpty() bool {
	return strings.TrimSpace(p.AiName) == "" &&
		strings.TrimSpace(p.AiDescription) == "" &&
		strings.TrimSpace(p.AiIdentity) == "" &&
		strings.TrimSpace(p.AiPriorityInstructions) == ""
}

// ChannelCredentials per-channel secrets của store
// QUAN TRỌNG: Không bao giờ expose trong JSON response
// Zalo access token sống ngắn, chỉ refresh khi gặp lỗi auth (không refresh
// chủ động theo timer)
type ChannelCredentials struct {
	// Facebook credentials
	FbPageID          string `json:"fb_page_id,omitempty"`
	FbPageAccessToken string `json:"fb_page_access_token,omitempty"`
	FbAppSecret       string `json:"fb_app_secret,omitempty"`

	// Zalo OA credentials
	ZaloOAID         string `json:"zalo_oa_id,omitempty"`
	ZaloAccessToken  string `json:"zalo_access_token,omitempty"`
	ZaloRefreshToken string `json:"zalo_refresh_token,omitempty"`
	ZaloAppID        string `json:"zalo_app_id,omitempty"`
	ZaloSecretKey    string `json:"zalo_secret_key,omitempty"`
}

// Value implement driver.Valuer cho JSONB
func (c ChannelCredentials) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implement sql.Scanner cho JSONB
func (c *ChannelCredentials) Scan(value interface{}) error {
	if value == nil {
		*c = ChannelCredentials{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, c)
}

// WidgetSettings cấu hình widget nhúng trên website của store
type WidgetSettings struct {
	// WelcomeMessage tin nhắn chào khi khách mở widget
	WelcomeMessage string `json:"welcome_message,omitempty"`

	// PrimaryColor màu chủ đạo của widget
	PrimaryColor string `json:"primary_color,omitempty"`

	// Position vị trí widget (bottom-right, bottom-left)
	Position string `json:"position,omitempty"`
}

// Value implement driver.Valuer cho JSONB
func (s WidgetSettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implement sql.Scanner cho JSONB
func (s *WidgetSettings) Scan(value interface{}) error {
	if value == nil {
		*s = WidgetSettings{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, s)
}

// Store đại diện cho một cửa hàng
type Store struct {
	BaseModel

	// Name tên store (VD: "Shop Mỹ Phẩm ABC")
	Name string `gorm:"size:255;not null" json:"name"`

	// Slug URL-friendly identifier (VD: "shop-my-pham-abc")
	Slug string `gorm:"size:100;uniqueIndex;not null" json:"slug"`

	// Persona cấu hình AI persona (JSONB)
	Persona AiPersona `gorm:"type:jsonb;default:'{}'" json:"persona"`

	// Credentials secrets của các channel (KHÔNG expose trong JSON)
	Credentials ChannelCredentials `gorm:"type:jsonb;default:'{}'" json:"-"`

	// Widget cấu hình widget
	Widget WidgetSettings `gorm:"type:jsonb;default:'{}'" json:"widget"`

	// IsActive store có đang hoạt động không
	IsActive bool `gorm:"default:true" json:"is_active"`

	// Relations
	Agents        []Agent             `gorm:"foreignKey:StoreID" json:"agents,omitempty"`
	Customers     []Customer          `gorm:"foreignKey:StoreID" json:"customers,omitempty"`
	Conversations []Conversation      `gorm:"foreignKey:StoreID" json:"conversations,omitempty"`
	Documents     []KnowledgeDocument `gorm:"foreignKey:StoreID" json:"documents,omitempty"`
}

// TableName trả về tên bảng trong database
func (Store) TableName() string {
	return "stores"
}

// HasFacebook kiểm tra store đã kết nối Facebook Page chưa
func (s *Store) HasFacebook() bool {
	return s.Credentials.FbPageID != "" && s.Credentials.FbPageAccessToken != ""
}

// HasZalo kiểm tra store đã kết nối Zalo OA chưa
func (s *Store) HasZalo() bool {
	return s.Credentials.ZaloOAID != "" && s.Credentials.ZaloAccessToken != ""
}
