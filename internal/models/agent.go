package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ===========================================================================
// Agent (Nhân viên)
// Người dùng dashboard của store: trả lời khách, quản lý conversations
// ===========================================================================

// AgentRole vai trò của agent trong store
type AgentRole string

const (
	// RoleOwner chủ store, full quyền
	RoleOwner AgentRole = "owner"

	// RoleStaff nhân viên, trả lời khách và quản lý hội thoại
	RoleStaff AgentRole = "staff"
)

// Agent đại diện cho một nhân viên của store
type Agent struct {
	BaseModel

	// StoreID ID store mà agent thuộc về
	StoreID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:uq_agent_email" json:"store_id"`

	// Email dùng để đăng nhập, unique trong store
	Email string `gorm:"size:255;not null;uniqueIndex:uq_agent_email" json:"email"`

	// Name tên hiển thị
	Name string `gorm:"size:255;not null" json:"name"`

	// PasswordHash bcrypt hash (KHÔNG expose trong JSON)
	PasswordHash string `gorm:"size:255;not null" json:"-"`

	// Role vai trò: owner hoặc staff
	Role AgentRole `gorm:"size:20;not null;default:'staff'" json:"role"`

	// IsActive agent có được phép đăng nhập không
	IsActive bool `gorm:"default:true" json:"is_active"`

	// LastLoginAt lần đăng nhập gần nhất
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	// Relations
	Store Store `gorm:"foreignKey:StoreID" json:"store,omitempty"`
}

// TableName trả về tên bảng
func (Agent) TableName() string {
	return "agents"
}

// SetPassword hash password và lưu vào PasswordHash
func (a *Agent) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = string(hash)
	return nil
}

// CheckPassword so sánh password với hash đã lưu
func (a *Agent) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil
}

// TouchLogin cập nhật thời điểm đăng nhập
func (a *Agent) TouchLogin() {
	now := time.Now()
	a.LastLoginAt = &now
}

// IsOwner kiểm tra agent có phải chủ store không
func (a *Agent) IsOwner() bool { return a.Role == RoleOwner }
