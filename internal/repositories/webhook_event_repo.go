package repositories

import (
	"context"

	"storechat-gin/internal/models"

	"gorm.io/gorm"
)

// ===========================================================================
// WebhookEvent Repository GORM Implementation
// ===========================================================================

// webhookEventRepo triển khai WebhookEventRepository với GORM
type webhookEventRepo struct {
	db *gorm.DB
}

// NewWebhookEventRepository tạo instance mới của WebhookEventRepository
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepo{db: db}
}

// Create lưu webhook event mới
func (r *webhookEventRepo) Create(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// Update cập nhật trạng thái xử lý
func (r *webhookEventRepo) Update(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Save(event).Error
}
