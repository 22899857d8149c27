package repositories

import (
	"context"

	"storechat-gin/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// Broadcast Repository GORM Implementation
// ===========================================================================

// broadcastRepo triển khai BroadcastRepository với GORM
type broadcastRepo struct {
	db *gorm.DB
}

// NewBroadcastRepository tạo instance mới của BroadcastRepository
func NewBroadcastRepository(db *gorm.DB) BroadcastRepository {
	return &broadcastRepo{db: db}
}

// Create ghi lại chiến dịch sau khi fan-out hoàn tất
func (r *broadcastRepo) Create(ctx context.Context, broadcast *models.Broadcast) error {
	return r.db.WithContext(ctx).Create(broadcast).Error
}

// FindByStore lấy lịch sử broadcast của store
func (r *broadcastRepo) FindByStore(ctx context.Context, storeID uuid.UUID, opts FindOptions) ([]models.Broadcast, int64, error) {
	opts.SetDefaults()

	var broadcasts []models.Broadcast
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.Broadcast{}).
		Where("store_id = ?", storeID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order(opts.GetOrderClause()).
		Offset(opts.Offset).
		Limit(opts.Limit).
		Find(&broadcasts).Error

	return broadcasts, total, err
}
