package ai

import (
	"strings"
	"testing"

	"storechat-gin/internal/models"

	"github.com/stretchr/testify/assert"
)

func promptStore() *models.Store {
	return &models.Store{
		Name: "Shop Mỹ Phẩm ABC",
		Persona: models.AiPersona{
			AiName:                 "Lan",
			AiDescription:          "Shop mỹ phẩm chính hãng",
			AiIdentity:             "nhân viên tư vấn bán hàng",
			AiStyle:                "thân thiện",
			AiRequirements:         "Trả lời bằng tiếng Việt",
			AiExceptions:           "chính trị",
			AiPriorityInstructions: "Freeship đơn từ 500k",
		},
	}
}

func TestPromptBuild_PriorityInstructionsFirst(t *testing.T) {
	b := NewPromptBuilder()
	prompt := b.Build(promptStore(), nil)

	// Priority instructions phải đứng đầu prompt
	assert.True(t, strings.HasPrefix(prompt, "## CHỈ DẪN ƯU TIÊN CAO NHẤT"))
	assert.Contains(t, prompt, "Freeship đơn từ 500k")
	assert.Contains(t, prompt, "Tên của bạn là Lan")
	assert.Contains(t, prompt, "nhân viên tư vấn bán hàng")
	assert.Contains(t, prompt, "Shop Mỹ Phẩm ABC")
}

func TestPromptBuild_OnlyCompletedDocuments(t *testing.T) {
	b := NewPromptBuilder()
	store := promptStore()

	docs := []models.KnowledgeDocument{
		{Title: "Chính sách đổi trả", Content: "Đổi trả trong 7 ngày", Status: models.DocumentCompleted},
		{Title: "Tài liệu đang xử lý", Content: "nội dung chưa sẵn sàng", Status: models.DocumentProcessing},
		{Title: "Tài liệu lỗi", Content: "nội dung hỏng", Status: models.DocumentFailed},
	}

	prompt := b.Build(store, docs)

	assert.Contains(t, prompt, "Đổi trả trong 7 ngày")
	assert.NotContains(t, prompt, "nội dung chưa sẵn sàng")
	assert.NotContains(t, prompt, "nội dung hỏng")
}

func TestPromptBuild_AddingProcessingDocDoesNotChangePrompt(t *testing.T) {
	b := NewPromptBuilder()
	store := promptStore()

	completed := []models.KnowledgeDocument{
		{Title: "Bảng giá", Content: "Son 250k", Status: models.DocumentCompleted},
	}
	withProcessing := append(completed, models.KnowledgeDocument{
		Title: "Mới crawl", Content: "đang xử lý", Status: models.DocumentProcessing,
	})

	assert.Equal(t, b.Build(store, completed), b.Build(store, withProcessing))
}

func TestPromptBuild_Deterministic(t *testing.T) {
	b := NewPromptBuilder()
	store := promptStore()
	docs := []models.KnowledgeDocument{
		{Title: "A", Content: "một", Status: models.DocumentCompleted},
		{Title: "B", Content: "hai", Status: models.DocumentCompleted},
	}

	assert.Equal(t, b.Build(store, docs), b.Build(store, docs))
}

func TestPromptBuild_EmptyPersona(t *testing.T) {
	b := NewPromptBuilder()
	store := &models.Store{Name: "Shop Trống"}

	prompt := b.Build(store, nil)

	// Persona trống vẫn có vai trò mặc định gắn tên store
	assert.Contains(t, prompt, "nhân viên tư vấn của cửa hàng Shop Trống")
	assert.NotContains(t, prompt, "## CHỈ DẪN ƯU TIÊN CAO NHẤT")
	assert.NotContains(t, prompt, "## KIẾN THỨC CỬA HÀNG")
}
