package repositories

import (
	"context"

	"storechat-gin/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// Store Repository GORM Implementation
// ===========================================================================

// storeRepo triển khai StoreRepository với GORM
type storeRepo struct {
	db *gorm.DB
}

// NewStoreRepository tạo instance mới của StoreRepository
func NewStoreRepository(db *gorm.DB) StoreRepository {
	return &storeRepo{db: db}
}

// FindByID tìm store theo ID
func (r *storeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	var store models.Store
	if err := r.db.WithContext(ctx).First(&store, id).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

// FindBySlug tìm store theo slug
func (r *storeRepo) FindBySlug(ctx context.Context, slug string) (*models.Store, error) {
	var store models.Store
	err := r.db.WithContext(ctx).
		Where("slug = ?", slug).
		First(&store).Error
	if err != nil {
		return nil, err
	}
	return &store, nil
}

// FindByFbPageID tìm store theo Facebook Page ID trong credentials JSONB
func (r *storeRepo) FindByFbPageID(ctx context.Context, pageID string) (*models.Store, error) {
	var store models.Store
	err := r.db.WithContext(ctx).
		Where("credentials->>'fb_page_id' = ?", pageID).
		First(&store).Error
	if err != nil {
		return nil, err
	}
	return &store, nil
}

// FindByZaloOAID tìm store theo Zalo OA ID trong credentials JSONB
func (r *storeRepo) FindByZaloOAID(ctx context.Context, oaID string) (*models.Store, error) {
	var store models.Store
	err := r.db.WithContext(ctx).
		Where("credentials->>'zalo_oa_id' = ?", oaID).
		First(&store).Error
	if err != nil {
		return nil, err
	}
	return &store, nil
}

// Create tạo store mới
func (r *storeRepo) Create(ctx context.Context, store *models.Store) error {
	return r.db.WithContext(ctx).Create(store).Error
}

// Update cập nhật store
func (r *storeRepo) Update(ctx context.Context, store *models.Store) error {
	return r.db.WithContext(ctx).Save(store).Error
}

// UpdateCredentials chỉ ghi lại cột credentials của store.
// Scoped update để token refresh writeback không ghi đè các field khác
// đang được sửa ở request khác.
func (r *storeRepo) UpdateCredentials(ctx context.Context, id uuid.UUID, creds models.ChannelCredentials) error {
	return r.db.WithContext(ctx).
		Model(&models.Store{}).
		Where("id = ?", id).
		Update("credentials", creds).Error
}
