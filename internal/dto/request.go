package dto

// ===========================================================================
// Request DTOs (Data Transfer Objects)
// Các struct dùng để validate và parse request body/query
// ===========================================================================

// PaginationRequest phân trang cho các API list
type PaginationRequest struct {
	// Page số trang hiện tại (bắt đầu từ 1)
	Page int `form:"page" binding:"min=0"`

	// Limit số record mỗi trang (tối đa 100)
	Limit int `form:"limit" binding:"min=0,max=100"`
}

// SetDefaults set giá trị mặc định cho pagination
func (p *PaginationRequest) SetDefaults() {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}
}

// Offset tính offset cho database query
func (p *PaginationRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// ===========================================================================
// Widget Requests
// ===========================================================================

// WidgetChatRequest một lượt chat từ widget
type WidgetChatRequest struct {
	// VisitorKey định danh khách do widget generate và giữ trong localStorage
	VisitorKey string `json:"visitor_key" binding:"required,max=255"`

	// Message nội dung khách gửi
	Message string `json:"message" binding:"required,min=1,max=5000"`

	// ConversationID id hội thoại từ lượt trước (null ở lượt đầu)
	ConversationID *string `json:"conversation_id"`
}

// LeadCaptureRequest contact form từ widget
type LeadCaptureRequest struct {
	VisitorKey string `json:"visitor_key" binding:"required,max=255"`
	Name       string `json:"name" binding:"required,max=255"`
	Email      string `json:"email" binding:"omitempty,email,max=255"`
	Phone      string `json:"phone" binding:"omitempty,max=50"`
	Message    string `json:"message" binding:"omitempty,max=5000"`
}

// ===========================================================================
// Conversation Requests
// ===========================================================================

// ListConversationsRequest request lấy danh sách hội thoại
type ListConversationsRequest struct {
	PaginationRequest

	// Status filter theo trạng thái
	Status string `form:"status" binding:"omitempty,oneof=OPEN CLOSED"`

	// AiSuspended filter theo chế độ AI/agent
	AiSuspended *bool `form:"ai_suspended"`
}

// UpdateConversationStatusRequest đổi trạng thái hội thoại
type UpdateConversationStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=OPEN CLOSED"`
}

// ToggleAiRequest bật/tắt AI cho hội thoại
type ToggleAiRequest struct {
	// Suspended true = agent tiếp quản, AI ngừng trả lời
	Suspended bool `json:"suspended"`
}

// UpdateTagsRequest cập nhật tag set của hội thoại
type UpdateTagsRequest struct {
	Tags []string `json:"tags" binding:"required,dive,min=1,max=50"`
}

// ===========================================================================
// Message Requests
// ===========================================================================

// AgentMessageRequest agent gửi tin nhắn vào hội thoại
type AgentMessageRequest struct {
	// Content nội dung text (bắt buộc, 1-5000 ký tự)
	Content string `json:"content" binding:"required,min=1,max=5000"`
}

// QualityReviewRequest đánh giá chất lượng câu trả lời AI
type QualityReviewRequest struct {
	// Rating điểm 1-5
	Rating *int `json:"rating" binding:"omitempty,min=1,max=5"`

	// Feedback nhận xét của agent
	Feedback string `json:"feedback" binding:"max=2000"`

	// CorrectedContent câu trả lời đúng (content gốc không bị sửa)
	CorrectedContent string `json:"corrected_content" binding:"max=5000"`
}

// ===========================================================================
// Broadcast Requests
// ===========================================================================

// CreateBroadcastRequest tạo chiến dịch fan-out
// Gọi hai lần sẽ gửi hai lần - FE phải dùng một confirm action duy nhất
type CreateBroadcastRequest struct {
	Name    string `json:"name" binding:"required,min=1,max=255"`
	Content string `json:"content" binding:"required,min=1,max=5000"`
}

// ===========================================================================
// Auth Requests
// ===========================================================================

// LoginRequest agent đăng nhập
type LoginRequest struct {
	StoreSlug string `json:"store_slug" binding:"required,max=100"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
}

// RefreshRequest đổi refresh token lấy access token mới
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}
