package ai

import (
	"context"

	"storechat-gin/internal/models"
)

// ===========================================================================
// AI Responder
// Gọi generative text service bên ngoài để sinh câu trả lời
// ===========================================================================

// Responder sinh câu trả lời từ prompt + lịch sử hội thoại
//
// Mọi failure mode (transport error, timeout, model từ chối trả lời) đều
// trả về ErrAiUnavailable - KHÔNG tự bịa câu trả lời thay thế. Caller
// quyết định fallback text hiển thị cho khách.
//
// Responder KHÔNG retry - retry ở tầng conversation logic sẽ gây
// duplicate AI message được persist.
type Responder interface {
	// Reply sinh câu trả lời cho userMessage với systemPrompt và history
	Reply(ctx context.Context, systemPrompt string, history []models.Message, userMessage string) (string, error)
}
