package repositories

import (
	"context"

	"storechat-gin/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// Agent Repository GORM Implementation
// ===========================================================================

// agentRepo triển khai AgentRepository với GORM
type agentRepo struct {
	db *gorm.DB
}

// NewAgentRepository tạo instance mới của AgentRepository
func NewAgentRepository(db *gorm.DB) AgentRepository {
	return &agentRepo{db: db}
}

// FindByID tìm agent theo ID
func (r *agentRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	if err := r.db.WithContext(ctx).First(&agent, id).Error; err != nil {
		return nil, err
	}
	return &agent, nil
}

// FindByEmail tìm agent theo email trong store
func (r *agentRepo) FindByEmail(ctx context.Context, storeID uuid.UUID, email string) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND email = ?", storeID, email).
		First(&agent).Error
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// Create tạo agent mới
func (r *agentRepo) Create(ctx context.Context, agent *models.Agent) error {
	return r.db.WithContext(ctx).Create(agent).Error
}

// Update cập nhật agent
func (r *agentRepo) Update(ctx context.Context, agent *models.Agent) error {
	return r.db.WithContext(ctx).Save(agent).Error
}
