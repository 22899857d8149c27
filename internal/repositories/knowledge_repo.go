package repositories

import (
	"context"

	"storechat-gin/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// Knowledge Repository GORM Implementation
// ===========================================================================

// knowledgeRepo triển khai KnowledgeRepository với GORM
type knowledgeRepo struct {
	db *gorm.DB
}

// NewKnowledgeRepository tạo instance mới của KnowledgeRepository
func NewKnowledgeRepository(db *gorm.DB) KnowledgeRepository {
	return &knowledgeRepo{db: db}
}

// FindCompletedByStore lấy các tài liệu đã xử lý xong của store.
// Tài liệu PROCESSING hoặc FAILED không bao giờ vào prompt.
func (r *knowledgeRepo) FindCompletedByStore(ctx context.Context, storeID uuid.UUID) ([]models.KnowledgeDocument, error) {
	var docs []models.KnowledgeDocument
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND status = ?", storeID, models.DocumentCompleted).
		Order("created_at asc").
		Find(&docs).Error
	return docs, err
}
