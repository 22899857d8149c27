package repositories

import (
	"context"

	"storechat-gin/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// Customer Repository GORM Implementation
// ===========================================================================

// customerRepo triển khai CustomerRepository với GORM
type customerRepo struct {
	db *gorm.DB
}

// NewCustomerRepository tạo instance mới của CustomerRepository
func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepo{db: db}
}

// FindByID tìm customer theo ID
func (r *customerRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindByExternalKey tìm customer theo (store, channel, external key)
func (r *customerRepo) FindByExternalKey(ctx context.Context, storeID uuid.UUID, channel models.Channel, externalKey string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND channel = ? AND external_key = ?", storeID, channel, externalKey).
		First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindOrCreate tìm hoặc tạo mới customer
// Unique index (store, channel, external_key) chặn duplicate khi hai
// inbound event cùng tạo customer - bên thua tìm lại record của bên thắng
func (r *customerRepo) FindOrCreate(ctx context.Context, customer *models.Customer) (*models.Customer, bool, error) {
	return findOrCreateRace(
		func() (*models.Customer, error) {
			return r.FindByExternalKey(ctx, customer.StoreID, customer.Channel, customer.ExternalKey)
		},
		func() (*models.Customer, error) {
			if customer.Name == "" {
				customer.Name = models.PlaceholderName
			}
			if err := r.db.WithContext(ctx).Create(customer).Error; err != nil {
				return nil, err
			}
			return customer, nil
		},
	)
}

// Update cập nhật customer
func (r *customerRepo) Update(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Save(customer).Error
}
