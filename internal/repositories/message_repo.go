package repositories

import (
	"context"

	"storechat-gin/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// Message Repository GORM Implementation
// ===========================================================================

// messageRepo triển khai MessageRepository với GORM
type messageRepo struct {
	db *gorm.DB
}

// NewMessageRepository tạo instance mới của MessageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepo{db: db}
}

// FindByID tìm message theo ID
func (r *messageRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// FindByConversation lấy messages theo thứ tự thời gian tạo
func (r *messageRepo) FindByConversation(ctx context.Context, conversationID uuid.UUID, opts FindOptions) ([]models.Message, int64, error) {
	opts.SetDefaults()

	var messages []models.Message
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ?", conversationID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Messages luôn đọc theo thứ tự thời gian
	if opts.OrderBy == "created_at" && opts.OrderDir == "desc" {
		opts.OrderDir = "asc"
	}

	err := query.
		Order(opts.GetOrderClause()).
		Offset(opts.Offset).
		Limit(opts.Limit).
		Find(&messages).Error

	return messages, total, err
}

// FindRecentByConversation lấy N message mới nhất theo thứ tự thời gian
// Query desc + limit rồi đảo lại trong memory
func (r *messageRepo) FindRecentByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Create append message mới
func (r *messageRepo) Create(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// UpdateQualityReview chỉ ghi các QC side fields, giữ nguyên Content gốc
func (r *messageRepo) UpdateQualityReview(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", msg.ID).
		Updates(map[string]interface{}{
			"rating":            msg.Rating,
			"feedback":          msg.Feedback,
			"corrected_content": msg.CorrectedContent,
		}).Error
}
