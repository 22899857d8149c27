package repositories

import (
	"context"
	"time"

	"storechat-gin/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// Conversation Repository GORM Implementation
// ===========================================================================

// conversationRepo triển khai ConversationRepository với GORM
type conversationRepo struct {
	db *gorm.DB
}

// NewConversationRepository tạo instance mới của ConversationRepository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepo{db: db}
}

// FindByID tìm conversation theo ID
func (r *conversationRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.WithContext(ctx).
		Preload("Customer").
		First(&conv, id).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindOpenByCustomer tìm conversation OPEN của customer
func (r *conversationRepo) FindOpenByCustomer(ctx context.Context, storeID, customerID uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND customer_id = ? AND status = ?", storeID, customerID, models.StatusOpen).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindOrCreateOpen tìm conversation OPEN hoặc tạo mới
// Hai inbound event đồng thời cho cùng customer có thể cùng đi vào nhánh
// create; unique partial index uq_open_conversation làm một bên fail với
// duplicated key - bên đó tìm lại và dùng conversation của bên thắng
func (r *conversationRepo) FindOrCreateOpen(ctx context.Context, storeID, customerID uuid.UUID) (*models.Conversation, bool, error) {
	return findOrCreateRace(
		func() (*models.Conversation, error) {
			return r.FindOpenByCustomer(ctx, storeID, customerID)
		},
		func() (*models.Conversation, error) {
			conv := &models.Conversation{
				StoreID:       storeID,
				CustomerID:    customerID,
				Status:        models.StatusOpen,
				IsAiSuspended: false,
			}
			if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
				return nil, err
			}
			return conv, nil
		},
	)
}

// FindByStore lấy danh sách conversations của store cho agent inbox
func (r *conversationRepo) FindByStore(ctx context.Context, storeID uuid.UUID, opts FindOptions) ([]models.Conversation, int64, error) {
	opts.SetDefaults()

	var conversations []models.Conversation
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("store_id = ?", storeID)

	// Apply filters
	if opts.Filters != nil {
		if status, ok := opts.Filters["status"]; ok {
			query = query.Where("status = ?", status)
		}
		if suspended, ok := opts.Filters["is_ai_suspended"]; ok {
			query = query.Where("is_ai_suspended = ?", suspended)
		}
	}

	// Count total
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Get records
	err := query.
		Preload("Customer").
		Order(opts.GetOrderClause()).
		Offset(opts.Offset).
		Limit(opts.Limit).
		Find(&conversations).Error

	return conversations, total, err
}

// FindAllByStore lấy toàn bộ conversations của store cho broadcast
// Không filter theo status hay AI mode - broadcast là store-wide
func (r *conversationRepo) FindAllByStore(ctx context.Context, storeID uuid.UUID) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("created_at ASC").
		Find(&conversations).Error
	return conversations, err
}

// Create tạo conversation mới
func (r *conversationRepo) Create(ctx context.Context, conv *models.Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

// Update cập nhật conversation
func (r *conversationRepo) Update(ctx context.Context, conv *models.Conversation) error {
	return r.db.WithContext(ctx).Save(conv).Error
}

// UpdateLastMessage ghi cursor bằng targeted update, không đụng các cột khác
func (r *conversationRepo) UpdateLastMessage(ctx context.Context, id uuid.UUID, content string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"last_message":    models.LastMessagePreview(content),
			"last_message_at": at,
			"updated_at":      time.Now(),
		}).Error
}
