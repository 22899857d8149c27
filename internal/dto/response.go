package dto

import "math"

// ===========================================================================
// Response DTOs (Data Transfer Objects)
// Các struct chuẩn hóa response format
// ===========================================================================

// Response cấu trúc response chuẩn cho tất cả API
type Response struct {
	// Success request thành công hay không
	Success bool `json:"success"`

	// Data dữ liệu trả về (nếu thành công)
	Data interface{} `json:"data,omitempty"`

	// Error thông tin lỗi (nếu thất bại)
	Error *APIError `json:"error,omitempty"`

	// Meta thông tin phân trang (cho list API)
	Meta *Meta `json:"meta,omitempty"`
}

// APIError cấu trúc lỗi chuẩn
type APIError struct {
	// Code mã lỗi (VD: "NOT_FOUND", "INVALID_INPUT")
	Code string `json:"code"`

	// Message thông báo lỗi chi tiết
	Message string `json:"message"`
}

// Meta thông tin phân trang
type Meta struct {
	// Total tổng số records
	Total int64 `json:"total"`

	// Page trang hiện tại
	Page int `json:"page"`

	// Limit số records mỗi trang
	Limit int `json:"limit"`

	// TotalPages tổng số trang
	TotalPages int `json:"total_pages"`
}

// NewMeta tạo Meta từ thông tin phân trang
func NewMeta(page, limit int, total int64) *Meta {
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return &Meta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}
}

// ===========================================================================
// Response Builders
// ===========================================================================

// Success tạo response thành công
func Success(data interface{}) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// SuccessWithMeta tạo response thành công với thông tin phân trang
func SuccessWithMeta(data interface{}, meta *Meta) Response {
	return Response{
		Success: true,
		Data:    data,
		Meta:    meta,
	}
}

// Error tạo response lỗi
func Error(code, message string) Response {
	return Response{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
	}
}

// ===========================================================================
// Domain Responses
// ===========================================================================

// WidgetChatResponse trả về cho widget sau mỗi lượt chat
type WidgetChatResponse struct {
	// Content câu trả lời (AI hoặc fallback)
	Content string `json:"content"`

	// ConversationID id hội thoại - widget lưu lại cho các lượt sau
	ConversationID string `json:"conversation_id"`
}

// LeadCaptureResponse trả về sau khi khách gửi lead form
type LeadCaptureResponse struct {
	CustomerID     string `json:"customer_id"`
	ConversationID string `json:"conversation_id"`
}

// BroadcastResponse kết quả fan-out
type BroadcastResponse struct {
	// RecipientCount số conversation đã gửi thành công
	RecipientCount int `json:"recipient_count"`

	// BroadcastID id campaign record
	BroadcastID string `json:"broadcast_id"`
}
