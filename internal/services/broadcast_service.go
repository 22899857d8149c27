package services

import (
	"context"
	"time"

	apperrors "storechat-gin/internal/errors"
	"storechat-gin/internal/models"
	"storechat-gin/internal/realtime"
	"storechat-gin/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Broadcast Service
// Fan-out một tin nhắn AGENT đến TOÀN BỘ conversations của store
// (bất kể OPEN/CLOSED/AI state - broadcast là store-wide)
//
// Không idempotent: gọi hai lần gửi hai lần. FE phải dùng một confirm
// action duy nhất
// ===========================================================================

// BroadcastService interface cho broadcast fan-out
type BroadcastService interface {
	// Send fan-out content đến mọi conversation của store
	// Lỗi từng conversation không dừng batch - count chỉ tính thành công
	// Trả về ErrNoRecipients khi store chưa có conversation nào
	Send(ctx context.Context, storeID uuid.UUID, name, content string) (*models.Broadcast, error)

	// History lấy lịch sử broadcast của store
	History(ctx context.Context, storeID uuid.UUID, opts repositories.FindOptions) ([]models.Broadcast, int64, error)
}

// broadcastService triển khai BroadcastService
type broadcastService struct {
	conversationRepo repositories.ConversationRepository
	messageRepo      repositories.MessageRepository
	broadcastRepo    repositories.BroadcastRepository
	publisher        realtime.Publisher
	logger           *zap.Logger
}

// NewBroadcastService tạo instance mới của BroadcastService
func NewBroadcastService(
	conversationRepo repositories.ConversationRepository,
	messageRepo repositories.MessageRepository,
	broadcastRepo repositories.BroadcastRepository,
	publisher realtime.Publisher,
	logger *zap.Logger,
) BroadcastService {
	return &broadcastService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		broadcastRepo:    broadcastRepo,
		publisher:        publisher,
		logger:           logger,
	}
}

// Send thực hiện fan-out
func (s *broadcastService) Send(ctx context.Context, storeID uuid.UUID, name, content string) (*models.Broadcast, error) {
	conversations, err := s.conversationRepo.FindAllByStore(ctx, storeID)
	if err != nil {
		return nil, err
	}

	if len(conversations) == 0 {
		return nil, apperrors.New(apperrors.ErrNoRecipients, "store chưa có cuộc hội thoại nào để broadcast")
	}

	now := time.Now()
	successCount := 0

	// Mỗi conversation là một append độc lập - partial completion là
	// bình thường, không phải atomic batch
	for i := range conversations {
		conv := &conversations[i]

		msg := &models.Message{
			ConversationID: conv.ID,
			Role:           models.RoleAgent,
			Content:        content,
		}
		if err := s.messageRepo.Create(ctx, msg); err != nil {
			s.logger.Warn("broadcast: append failed, continuing",
				zap.String("conversation_id", conv.ID.String()),
				zap.Error(err),
			)
			continue
		}

		// Targeted cursor update - struct đọc lúc enumerate có thể đã cũ
		// so với thao tác agent đang diễn ra
		if err := s.conversationRepo.UpdateLastMessage(ctx, conv.ID, content, now); err != nil {
			s.logger.Warn("broadcast: cursor update failed",
				zap.String("conversation_id", conv.ID.String()),
				zap.Error(err),
			)
			// Message đã append thành công - vẫn tính
		}

		successCount++
	}

	broadcast := &models.Broadcast{
		StoreID:        storeID,
		Name:           name,
		Content:        content,
		RecipientCount: successCount,
		SentAt:         now,
	}
	if err := s.broadcastRepo.Create(ctx, broadcast); err != nil {
		s.logger.Error("broadcast: failed to record campaign", zap.Error(err))
		return nil, err
	}

	if s.publisher != nil {
		go func() {
			event := &realtime.ConversationEvent{Type: "broadcast_sent"}
			if err := s.publisher.PublishConversationUpdate(storeID, event); err != nil {
				s.logger.Warn("broadcast: failed to publish event", zap.Error(err))
			}
		}()
	}

	s.logger.Info("broadcast completed",
		zap.String("store_id", storeID.String()),
		zap.Int("total", len(conversations)),
		zap.Int("success", successCount),
	)

	return broadcast, nil
}

// History lấy lịch sử broadcast
func (s *broadcastService) History(ctx context.Context, storeID uuid.UUID, opts repositories.FindOptions) ([]models.Broadcast, int64, error) {
	return s.broadcastRepo.FindByStore(ctx, storeID, opts)
}
