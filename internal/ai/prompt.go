package ai

import (
	"strings"

	"storechat-gin/internal/models"
)

// ===========================================================================
// Prompt Builder
// Ghép system prompt từ persona của store và knowledge documents
// Kết quả phải deterministic: cùng input luôn cho cùng một prompt
// ===========================================================================

// PromptBuilder ghép system prompt cho AI responder
type PromptBuilder struct{}

// NewPromptBuilder tạo PromptBuilder mới
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// Build ghép prompt từ persona và danh sách knowledge documents.
// Priority instructions đặt ĐẦU TIÊN và đánh dấu độ ưu tiên cao nhất -
// nó được thiết kế để override knowledge mâu thuẫn.
// Chỉ tài liệu COMPLETED được đưa vào; PROCESSING/FAILED bị loại.
func (b *PromptBuilder) Build(store *models.Store, docs []models.KnowledgeDocument) string {
	var sb strings.Builder
	persona := store.Persona

	if strings.TrimSpace(persona.AiPriorityInstructions) != "" {
		sb.WriteString("## CHỈ DẪN ƯU TIÊN CAO NHẤT (luôn tuân theo, kể cả khi mâu thuẫn với thông tin bên dưới):\n")
		sb.WriteString(persona.AiPriorityInstructions)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## VAI TRÒ:\n")
	if persona.AiName != "" {
		sb.WriteString("Tên của bạn là " + persona.AiName + ". ")
	}
	if persona.AiIdentity != "" {
		sb.WriteString("Bạn là " + persona.AiIdentity + " của cửa hàng " + store.Name + ".")
	} else {
		sb.WriteString("Bạn là nhân viên tư vấn của cửa hàng " + store.Name + ".")
	}
	sb.WriteString("\n\n")

	if persona.AiDescription != "" {
		sb.WriteString("## VỀ CỬA HÀNG:\n")
		sb.WriteString(persona.AiDescription)
		sb.WriteString("\n\n")
	}

	if persona.AiStyle != "" {
		sb.WriteString("## GIỌNG ĐIỆU:\n")
		sb.WriteString(persona.AiStyle)
		sb.WriteString("\n\n")
	}

	if persona.AiRequirements != "" {
		sb.WriteString("## YÊU CẦU BẮT BUỘC:\n")
		sb.WriteString(persona.AiRequirements)
		sb.WriteString("\n\n")
	}

	if persona.AiExceptions != "" {
		sb.WriteString("## KHÔNG ĐƯỢC TRẢ LỜI VỀ:\n")
		sb.WriteString(persona.AiExceptions)
		sb.WriteString("\n\n")
	}

	// Knowledge documents: toàn bộ nội dung COMPLETED, không ranking
	hasDocs := false
	for _, doc := range docs {
		if !doc.IsCompleted() {
			continue
		}
		if !hasDocs {
			sb.WriteString("## KIẾN THỨC CỬA HÀNG:\n")
			hasDocs = true
		}
		if doc.Title != "" {
			sb.WriteString("### " + doc.Title + "\n")
		}
		sb.WriteString(doc.Content)
		sb.WriteString("\n\n")
	}

	return strings.TrimSpace(sb.String())
}
