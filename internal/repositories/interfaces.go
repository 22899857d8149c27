package repositories

import (
	"context"
	"time"

	"storechat-gin/internal/models"

	"github.com/google/uuid"
)

// ===========================================================================
// Store Repository Interface
// ===========================================================================

// StoreRepository interface cho store data access
type StoreRepository interface {
	// FindByID tìm store theo ID
	FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error)

	// FindBySlug tìm store theo slug
	FindBySlug(ctx context.Context, slug string) (*models.Store, error)

	// FindByFbPageID tìm store theo Facebook Page ID trong credentials
	FindByFbPageID(ctx context.Context, pageID string) (*models.Store, error)

	// FindByZaloOAID tìm store theo Zalo OA ID trong credentials
	FindByZaloOAID(ctx context.Context, oaID string) (*models.Store, error)

	// Create tạo store mới
	Create(ctx context.Context, store *models.Store) error

	// Update cập nhật store
	Update(ctx context.Context, store *models.Store) error

	// UpdateCredentials ghi lại channel credentials của store
	// Dùng cho Zalo token refresh writeback
	UpdateCredentials(ctx context.Context, id uuid.UUID, creds models.ChannelCredentials) error
}

// ===========================================================================
// Agent Repository Interface
// ===========================================================================

// AgentRepository interface cho agent data access
type AgentRepository interface {
	// FindByID tìm agent theo ID
	FindByID(ctx context.Context, id uuid.UUID) (*models.Agent, error)

	// FindByEmail tìm agent theo email trong store
	FindByEmail(ctx context.Context, storeID uuid.UUID, email string) (*models.Agent, error)

	// Create tạo agent mới
	Create(ctx context.Context, agent *models.Agent) error

	// Update cập nhật agent
	Update(ctx context.Context, agent *models.Agent) error
}

// ===========================================================================
// Customer Repository Interface
// ===========================================================================

// CustomerRepository interface cho customer data access
type CustomerRepository interface {
	// FindByID tìm customer theo ID
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)

	// FindByExternalKey tìm customer theo (store, channel, external key)
	FindByExternalKey(ctx context.Context, storeID uuid.UUID, channel models.Channel, externalKey string) (*models.Customer, error)

	// FindOrCreate tìm hoặc tạo customer - idempotent theo unique key
	// Trả về (customer, created, error)
	FindOrCreate(ctx context.Context, customer *models.Customer) (*models.Customer, bool, error)

	// Update cập nhật customer
	Update(ctx context.Context, customer *models.Customer) error
}

// ===========================================================================
// Conversation Repository Interface
// ===========================================================================

// ConversationRepository interface cho conversation data access
type ConversationRepository interface {
	// FindByID tìm conversation theo ID
	FindByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)

	// FindOpenByCustomer tìm conversation OPEN của customer
	FindOpenByCustomer(ctx context.Context, storeID, customerID uuid.UUID) (*models.Conversation, error)

	// FindOrCreateOpen tìm conversation OPEN hoặc tạo mới
	// Unique partial index đảm bảo không bao giờ tạo hai conversation OPEN
	// cho cùng (store, customer) dù hai event đến đồng thời
	// Trả về (conversation, created, error)
	FindOrCreateOpen(ctx context.Context, storeID, customerID uuid.UUID) (*models.Conversation, bool, error)

	// FindByStore lấy danh sách conversations của store (cho agent inbox)
	FindByStore(ctx context.Context, storeID uuid.UUID, opts FindOptions) ([]models.Conversation, int64, error)

	// FindAllByStore lấy TOÀN BỘ conversations của store, bất kể trạng thái
	// Dùng cho broadcast fan-out
	FindAllByStore(ctx context.Context, storeID uuid.UUID) ([]models.Conversation, error)

	// Create tạo conversation mới
	Create(ctx context.Context, conv *models.Conversation) error

	// Update cập nhật conversation
	Update(ctx context.Context, conv *models.Conversation) error

	// UpdateLastMessage chỉ ghi các cột cursor (last_message,
	// last_message_at). Không Save cả row - agent có thể vừa đổi
	// is_ai_suspended/status trong lúc pipeline đang chạy, Save từ struct
	// cũ sẽ ghi đè mất thay đổi đó
	UpdateLastMessage(ctx context.Context, id uuid.UUID, content string, at time.Time) error
}

// ===========================================================================
// Message Repository Interface
// ===========================================================================

// MessageRepository interface cho message data access
type MessageRepository interface {
	// FindByID tìm message theo ID
	FindByID(ctx context.Context, id uuid.UUID) (*models.Message, error)

	// FindByConversation lấy messages theo thứ tự thời gian tạo
	FindByConversation(ctx context.Context, conversationID uuid.UUID, opts FindOptions) ([]models.Message, int64, error)

	// FindRecentByConversation lấy N message MỚI NHẤT, trả về theo thứ tự
	// thời gian tăng dần. Đọc tăng dần với limit sẽ lấy nhầm N message CŨ
	// nhất khi hội thoại dài hơn window - AI history và widget polling
	// cần các lượt gần nhất
	FindRecentByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error)

	// Create append message mới - messages là append-only
	Create(ctx context.Context, msg *models.Message) error

	// UpdateQualityReview ghi rating/feedback/corrected content
	// Không bao giờ sửa Content gốc
	UpdateQualityReview(ctx context.Context, msg *models.Message) error
}

// ===========================================================================
// Broadcast Repository Interface
// ===========================================================================

// BroadcastRepository interface cho broadcast data access
type BroadcastRepository interface {
	// Create ghi lại chiến dịch sau khi fan-out hoàn tất
	Create(ctx context.Context, broadcast *models.Broadcast) error

	// FindByStore lấy lịch sử broadcast của store
	FindByStore(ctx context.Context, storeID uuid.UUID, opts FindOptions) ([]models.Broadcast, int64, error)
}

// ===========================================================================
// KnowledgeDocument Repository Interface
// ===========================================================================

// KnowledgeRepository interface cho knowledge document data access
// Engine chỉ đọc các tài liệu COMPLETED
type KnowledgeRepository interface {
	// FindCompletedByStore lấy các tài liệu đã xử lý xong của store
	FindCompletedByStore(ctx context.Context, storeID uuid.UUID) ([]models.KnowledgeDocument, error)
}

// ===========================================================================
// WebhookEvent Repository Interface
// ===========================================================================

// WebhookEventRepository interface cho webhook audit trail
type WebhookEventRepository interface {
	// Create lưu webhook event mới
	Create(ctx context.Context, event *models.WebhookEvent) error

	// Update cập nhật trạng thái xử lý
	Update(ctx context.Context, event *models.WebhookEvent) error
}
