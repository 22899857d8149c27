package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "storechat-gin/internal/errors"
	"storechat-gin/internal/models"
	"storechat-gin/internal/realtime"
	"storechat-gin/internal/repositories"
	"storechat-gin/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroadcastRepo struct {
	mu         sync.Mutex
	broadcasts []*models.Broadcast
}

func (r *fakeBroadcastRepo) Create(ctx context.Context, broadcast *models.Broadcast) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	broadcast.ID = uuid.New()
	broadcast.CreatedAt = time.Now()
	r.broadcasts = append(r.broadcasts, broadcast)
	return nil
}

func (r *fakeBroadcastRepo) FindByStore(ctx context.Context, storeID uuid.UUID, opts repositories.FindOptions) ([]models.Broadcast, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Broadcast
	for _, b := range r.broadcasts {
		if b.StoreID == storeID {
			out = append(out, *b)
		}
	}
	return out, int64(len(out)), nil
}

// seedConversations tạo N conversation cho store, trả về ids
func seedConversations(t *testing.T, convRepo *fakeConversationRepo, storeID uuid.UUID, n int, status models.ConversationStatus) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		conv := &models.Conversation{
			StoreID:    storeID,
			CustomerID: uuid.New(),
			Status:     status,
		}
		require.NoError(t, convRepo.Create(context.Background(), conv))
		ids = append(ids, conv.ID)
	}
	return ids
}

func newBroadcastFixture() (*fakeConversationRepo, *fakeMessageRepo, *fakeBroadcastRepo, BroadcastService) {
	convRepo := newFakeConversationRepo()
	messageRepo := newFakeMessageRepo()
	broadcastRepo := &fakeBroadcastRepo{}
	svc := NewBroadcastService(convRepo, messageRepo, broadcastRepo, realtime.NewNoopPublisher(), logger.NewNop())
	return convRepo, messageRepo, broadcastRepo, svc
}

func TestBroadcast_FanOutToAllConversations(t *testing.T) {
	convRepo, messageRepo, broadcastRepo, svc := newBroadcastFixture()
	storeID := uuid.New()

	// Broadcast là store-wide: cả OPEN lẫn CLOSED đều nhận
	openIDs := seedConversations(t, convRepo, storeID, 2, models.StatusOpen)
	closedIDs := seedConversations(t, convRepo, storeID, 1, models.StatusClosed)

	broadcast, err := svc.Send(context.Background(), storeID, "Khuyến mãi 8/3", "Giảm 20% toàn bộ son")
	require.NoError(t, err)

	assert.Equal(t, 3, broadcast.RecipientCount)
	assert.Equal(t, "Khuyến mãi 8/3", broadcast.Name)

	for _, id := range append(openIDs, closedIDs...) {
		msgs := messageRepo.byConversation(id)
		require.Len(t, msgs, 1)
		assert.Equal(t, models.RoleAgent, msgs[0].Role)
		assert.Equal(t, "Giảm 20% toàn bộ son", msgs[0].Content)
	}

	// Campaign record ghi sau khi fan-out hoàn tất
	require.Len(t, broadcastRepo.broadcasts, 1)
}

func TestBroadcast_PartialFailure_ContinuesAndCounts(t *testing.T) {
	convRepo, messageRepo, _, svc := newBroadcastFixture()
	storeID := uuid.New()

	ids := seedConversations(t, convRepo, storeID, 5, models.StatusOpen)

	// Một conversation fail khi append - batch không được dừng
	messageRepo.failOn[ids[2]] = true

	broadcast, err := svc.Send(context.Background(), storeID, "Test", "nội dung")
	require.NoError(t, err)

	// N-1 thành công
	assert.Equal(t, 4, broadcast.RecipientCount)

	// Các conversation còn lại vẫn nhận đủ
	for i, id := range ids {
		msgs := messageRepo.byConversation(id)
		if i == 2 {
			assert.Empty(t, msgs)
		} else {
			assert.Len(t, msgs, 1)
		}
	}
}

func TestBroadcast_NoRecipients(t *testing.T) {
	_, _, broadcastRepo, svc := newBroadcastFixture()

	_, err := svc.Send(context.Background(), uuid.New(), "Trống", "không ai nhận")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNoRecipients))

	// Không ghi campaign record khi không có recipient
	assert.Empty(t, broadcastRepo.broadcasts)
}

func TestBroadcast_NotIdempotent(t *testing.T) {
	convRepo, messageRepo, _, svc := newBroadcastFixture()
	storeID := uuid.New()

	ids := seedConversations(t, convRepo, storeID, 1, models.StatusOpen)

	_, err := svc.Send(context.Background(), storeID, "Lần 1", "cùng nội dung")
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), storeID, "Lần 2", "cùng nội dung")
	require.NoError(t, err)

	// Gửi hai lần là hai message - không dedupe
	assert.Len(t, messageRepo.byConversation(ids[0]), 2)
}

func TestBroadcast_History(t *testing.T) {
	convRepo, _, _, svc := newBroadcastFixture()
	storeID := uuid.New()
	seedConversations(t, convRepo, storeID, 1, models.StatusOpen)

	_, err := svc.Send(context.Background(), storeID, "Chiến dịch A", "nội dung")
	require.NoError(t, err)

	history, total, err := svc.History(context.Background(), storeID, repositories.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, history, 1)
	assert.Equal(t, "Chiến dịch A", history[0].Name)
}
