package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"storechat-gin/internal/ai"
	"storechat-gin/internal/channel"
	apperrors "storechat-gin/internal/errors"
	"storechat-gin/internal/models"
	"storechat-gin/internal/realtime"
	"storechat-gin/internal/repositories"
	"storechat-gin/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ===========================================================================
// In-memory fakes
// ===========================================================================

type fakeCustomerRepo struct {
	mu        sync.Mutex
	customers map[uuid.UUID]*models.Customer
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{customers: make(map[uuid.UUID]*models.Customer)}
}

func (r *fakeCustomerRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.customers[id]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeCustomerRepo) FindByExternalKey(ctx context.Context, storeID uuid.UUID, ch models.Channel, externalKey string) (*models.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.customers {
		if c.StoreID == storeID && c.Channel == ch && c.ExternalKey == externalKey {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeCustomerRepo) FindOrCreate(ctx context.Context, customer *models.Customer) (*models.Customer, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.customers {
		if c.StoreID == customer.StoreID && c.Channel == customer.Channel && c.ExternalKey == customer.ExternalKey {
			return c, false, nil
		}
	}
	if customer.Name == "" {
		customer.Name = models.PlaceholderName
	}
	customer.ID = uuid.New()
	customer.CreatedAt = time.Now()
	r.customers[customer.ID] = customer
	return customer, true, nil
}

func (r *fakeCustomerRepo) Update(ctx context.Context, customer *models.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customers[customer.ID] = customer
	return nil
}

type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*models.Conversation
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{conversations: make(map[uuid.UUID]*models.Conversation)}
}

func (r *fakeConversationRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conversations[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeConversationRepo) FindOpenByCustomer(ctx context.Context, storeID, customerID uuid.UUID) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conversations {
		if c.StoreID == storeID && c.CustomerID == customerID && c.Status == models.StatusOpen {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeConversationRepo) FindOrCreateOpen(ctx context.Context, storeID, customerID uuid.UUID) (*models.Conversation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conversations {
		if c.StoreID == storeID && c.CustomerID == customerID && c.Status == models.StatusOpen {
			return c, false, nil
		}
	}
	conv := &models.Conversation{
		StoreID:    storeID,
		CustomerID: customerID,
		Status:     models.StatusOpen,
	}
	conv.ID = uuid.New()
	conv.CreatedAt = time.Now()
	r.conversations[conv.ID] = conv
	return conv, true, nil
}

func (r *fakeConversationRepo) FindByStore(ctx context.Context, storeID uuid.UUID, opts repositories.FindOptions) ([]models.Conversation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Conversation
	for _, c := range r.conversations {
		if c.StoreID == storeID {
			out = append(out, *c)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeConversationRepo) FindAllByStore(ctx context.Context, storeID uuid.UUID) ([]models.Conversation, error) {
	out, _, err := r.FindByStore(ctx, storeID, repositories.FindOptions{})
	return out, err
}

func (r *fakeConversationRepo) Create(ctx context.Context, conv *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	r.conversations[conv.ID] = conv
	return nil
}

func (r *fakeConversationRepo) Update(ctx context.Context, conv *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *conv
	r.conversations[conv.ID] = &copied
	return nil
}

func (r *fakeConversationRepo) UpdateLastMessage(ctx context.Context, id uuid.UUID, content string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	// Chỉ cursor - các cột khác giữ nguyên như targeted update thật
	preview := models.LastMessagePreview(content)
	c.LastMessage = &preview
	c.LastMessageAt = &at
	return nil
}

// suspendFirst set cờ suspend trực tiếp trong store - mô phỏng agent
// toggle chạy song song với pipeline
func (r *fakeConversationRepo) suspendFirst() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.conversations {
		c.IsAiSuspended = true
		return id
	}
	return uuid.Nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []*models.Message

	// failOn chặn Create cho conversation cụ thể (test broadcast partial fail)
	failOn map[uuid.UUID]bool
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{failOn: make(map[uuid.UUID]bool)}
}

func (r *fakeMessageRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeMessageRepo) FindByConversation(ctx context.Context, conversationID uuid.UUID, opts repositories.FindOptions) ([]models.Message, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeMessageRepo) FindRecentByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn[msg.ConversationID] {
		return fmt.Errorf("simulated append failure")
	}
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *fakeMessageRepo) UpdateQualityReview(ctx context.Context, msg *models.Message) error {
	return nil
}

// byConversation trả về messages của một conversation theo thứ tự append
func (r *fakeMessageRepo) byConversation(conversationID uuid.UUID) []*models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out
}

type fakeKnowledgeRepo struct {
	docs []models.KnowledgeDocument
}

func (r *fakeKnowledgeRepo) FindCompletedByStore(ctx context.Context, storeID uuid.UUID) ([]models.KnowledgeDocument, error) {
	var out []models.KnowledgeDocument
	for _, d := range r.docs {
		if d.StoreID == storeID && d.IsCompleted() {
			out = append(out, d)
		}
	}
	return out, nil
}

// fakeResponder triển khai ai.Responder với kịch bản cố định
type fakeResponder struct {
	reply string
	err   error
	delay time.Duration

	// onReply chạy trong lúc AI call - mô phỏng thao tác xảy ra song song
	onReply func()

	mu         sync.Mutex
	gotHistory []models.Message
}

func (f *fakeResponder) Reply(ctx context.Context, systemPrompt string, history []models.Message, userMessage string) (string, error) {
	f.mu.Lock()
	f.gotHistory = append([]models.Message(nil), history...)
	f.mu.Unlock()

	if f.onReply != nil {
		f.onReply()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", fmt.Errorf("ai call timed out: %w", apperrors.ErrAiUnavailable)
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// history trả về bản sao history của lần Reply gần nhất
func (f *fakeResponder) history() []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Message(nil), f.gotHistory...)
}

var _ ai.Responder = (*fakeResponder)(nil)

// ===========================================================================
// Test fixture
// ===========================================================================

type serviceFixture struct {
	store        *models.Store
	customerRepo *fakeCustomerRepo
	convRepo     *fakeConversationRepo
	messageRepo  *fakeMessageRepo
	service      MessageService
}

func newServiceFixture(t *testing.T, responder ai.Responder) *serviceFixture {
	t.Helper()

	store := &models.Store{
		Name:     "Shop Test",
		Slug:     "shop-test",
		IsActive: true,
	}
	store.ID = uuid.New()

	registry := channel.NewRegistry()
	registry.Register(channel.NewWebsiteChannel(logger.NewNop()))

	customerRepo := newFakeCustomerRepo()
	convRepo := newFakeConversationRepo()
	messageRepo := newFakeMessageRepo()

	svc := NewMessageService(
		customerRepo,
		convRepo,
		messageRepo,
		&fakeKnowledgeRepo{},
		registry,
		ai.NewPromptBuilder(),
		responder,
		realtime.NewNoopPublisher(),
		100*time.Millisecond,
		"Xin lỗi, hệ thống đang bận.",
		logger.NewNop(),
	)

	return &serviceFixture{
		store:        store,
		customerRepo: customerRepo,
		convRepo:     convRepo,
		messageRepo:  messageRepo,
		service:      svc,
	}
}

func widgetInbound(storeID uuid.UUID, visitorKey, content string) *channel.InboundEvent {
	return &channel.InboundEvent{
		StoreID:     storeID,
		Channel:     models.ChannelWebsite,
		ExternalKey: visitorKey,
		Content:     content,
		Timestamp:   time.Now(),
	}
}

// ===========================================================================
// Tests
// ===========================================================================

func TestProcessInbound_NewVisitorRoundTrip(t *testing.T) {
	f := newServiceFixture(t, &fakeResponder{reply: "Dạ em chào anh ạ"})

	result, err := f.service.ProcessInbound(context.Background(), f.store, widgetInbound(f.store.ID, "visitor-1", "hi"))
	require.NoError(t, err)

	assert.True(t, result.CustomerCreated)
	assert.True(t, result.ConversationCreated)
	assert.NotEqual(t, uuid.Nil, result.ConversationID)
	assert.True(t, result.AiReplied)
	assert.False(t, result.UsedFallback)
	assert.Equal(t, "Dạ em chào anh ạ", result.ReplyContent)

	// Transcript: USER rồi đến AI, đúng thứ tự tạo
	msgs := f.messageRepo.byConversation(result.ConversationID)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, models.RoleAi, msgs[1].Role)

	// Customer mới chưa có tên thật thì mang placeholder
	customer, err := f.customerRepo.FindByID(context.Background(), result.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, models.PlaceholderName, customer.Name)
}

func TestProcessInbound_SecondMessageReusesConversation(t *testing.T) {
	f := newServiceFixture(t, &fakeResponder{reply: "ok"})
	ctx := context.Background()

	first, err := f.service.ProcessInbound(ctx, f.store, widgetInbound(f.store.ID, "visitor-1", "hi"))
	require.NoError(t, err)

	second, err := f.service.ProcessInbound(ctx, f.store, widgetInbound(f.store.ID, "visitor-1", "còn đó không"))
	require.NoError(t, err)

	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.False(t, second.CustomerCreated)
	assert.False(t, second.ConversationCreated)
}

func TestProcessInbound_ClosedConversationOpensNew(t *testing.T) {
	f := newServiceFixture(t, &fakeResponder{reply: "ok"})
	ctx := context.Background()

	first, err := f.service.ProcessInbound(ctx, f.store, widgetInbound(f.store.ID, "visitor-1", "hi"))
	require.NoError(t, err)

	// Agent đóng hội thoại - terminal
	conv, err := f.convRepo.FindByID(ctx, first.ConversationID)
	require.NoError(t, err)
	conv.Close()
	require.NoError(t, f.convRepo.Update(ctx, conv))

	second, err := f.service.ProcessInbound(ctx, f.store, widgetInbound(f.store.ID, "visitor-1", "em quay lại"))
	require.NoError(t, err)

	assert.NotEqual(t, first.ConversationID, second.ConversationID)
	assert.True(t, second.ConversationCreated)
}

func TestProcessInbound_AiSuspended_NoAiReply(t *testing.T) {
	f := newServiceFixture(t, &fakeResponder{reply: "không được xuất hiện"})
	ctx := context.Background()

	// Tạo hội thoại trước rồi cho agent tiếp quản
	first, err := f.service.ProcessInbound(ctx, f.store, widgetInbound(f.store.ID, "visitor-1", "hi"))
	require.NoError(t, err)

	conv, err := f.convRepo.FindByID(ctx, first.ConversationID)
	require.NoError(t, err)
	conv.SuspendAi()
	require.NoError(t, f.convRepo.Update(ctx, conv))

	before := len(f.messageRepo.byConversation(first.ConversationID))

	result, err := f.service.ProcessInbound(ctx, f.store, widgetInbound(f.store.ID, "visitor-1", "tư vấn giúp em"))
	require.NoError(t, err)

	assert.False(t, result.AiReplied)
	assert.Empty(t, result.ReplyContent)

	// Chỉ thêm đúng 1 message USER, không có AI message nào
	msgs := f.messageRepo.byConversation(first.ConversationID)
	require.Len(t, msgs, before+1)
	assert.Equal(t, models.RoleUser, msgs[len(msgs)-1].Role)
}

func TestProcessInbound_AgentSuspendsDuringAiCall(t *testing.T) {
	// Agent toggle suspend TRONG LÚC AI call đang chạy - cursor update sau
	// AI call không được ghi đè mất cờ suspend
	responder := &fakeResponder{reply: "Dạ em trả lời đây ạ"}
	f := newServiceFixture(t, responder)
	ctx := context.Background()

	var convID uuid.UUID
	responder.onReply = func() {
		convID = f.convRepo.suspendFirst()
	}

	result, err := f.service.ProcessInbound(ctx, f.store, widgetInbound(f.store.ID, "visitor-1", "hi"))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, convID)
	// Gate đã pass trước khi agent toggle nên lượt này vẫn có AI reply
	assert.True(t, result.AiReplied)

	stored, err := f.convRepo.FindByID(ctx, convID)
	require.NoError(t, err)
	assert.True(t, stored.IsAiSuspended, "cursor update không được revert cờ suspend của agent")

	// Lượt tiếp theo phải bị gate chặn
	responder.onReply = nil
	before := len(f.messageRepo.byConversation(convID))
	second, err := f.service.ProcessInbound(ctx, f.store, widgetInbound(f.store.ID, "visitor-1", "còn đó không"))
	require.NoError(t, err)
	assert.False(t, second.AiReplied)

	msgs := f.messageRepo.byConversation(convID)
	require.Len(t, msgs, before+1)
	assert.Equal(t, models.RoleUser, msgs[len(msgs)-1].Role)
}

func TestProcessInbound_LongConversationUsesRecentHistory(t *testing.T) {
	responder := &fakeResponder{reply: "ok"}
	f := newServiceFixture(t, responder)
	ctx := context.Background()

	first, err := f.service.ProcessInbound(ctx, f.store, widgetInbound(f.store.ID, "visitor-1", "mở đầu"))
	require.NoError(t, err)

	// Độn transcript vượt window 50 lượt
	for i := 0; i < 80; i++ {
		msg := &models.Message{
			ConversationID: first.ConversationID,
			Role:           models.RoleUser,
			Content:        fmt.Sprintf("turn-%d", i),
		}
		require.NoError(t, f.messageRepo.Create(ctx, msg))
	}

	_, err = f.service.ProcessInbound(ctx, f.store, widgetInbound(f.store.ID, "visitor-1", "lượt mới nhất"))
	require.NoError(t, err)

	history := responder.history()
	require.NotEmpty(t, history)
	assert.LessOrEqual(t, len(history), 50)

	contents := make([]string, 0, len(history))
	for _, m := range history {
		contents = append(contents, m.Content)
	}
	// Window phải chứa các lượt cuối, không phải các lượt đầu
	assert.Contains(t, contents, "turn-79")
	assert.NotContains(t, contents, "turn-0")
	assert.NotContains(t, contents, "mở đầu")
}

func TestProcessInbound_AiFailure_PersistsFallback(t *testing.T) {
	f := newServiceFixture(t, &fakeResponder{err: fmt.Errorf("boom: %w", apperrors.ErrAiUnavailable)})

	result, err := f.service.ProcessInbound(context.Background(), f.store, widgetInbound(f.store.ID, "visitor-1", "hi"))
	// Lỗi AI không propagate ra HTTP caller
	require.NoError(t, err)

	assert.True(t, result.AiReplied)
	assert.True(t, result.UsedFallback)
	assert.Equal(t, "Xin lỗi, hệ thống đang bận.", result.ReplyContent)

	msgs := f.messageRepo.byConversation(result.ConversationID)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleAi, msgs[1].Role)
	assert.Equal(t, "Xin lỗi, hệ thống đang bận.", msgs[1].Content)
}

func TestProcessInbound_AiTimeout_PersistsFallback(t *testing.T) {
	// Responder chậm hơn reply timeout (100ms) của fixture
	f := newServiceFixture(t, &fakeResponder{reply: "quá muộn", delay: 500 * time.Millisecond})

	result, err := f.service.ProcessInbound(context.Background(), f.store, widgetInbound(f.store.ID, "visitor-1", "hi"))
	require.NoError(t, err)

	assert.True(t, result.UsedFallback)
	assert.Equal(t, "Xin lỗi, hệ thống đang bận.", result.ReplyContent)
}

func TestResolveLead_CreatesCustomerAndConversation(t *testing.T) {
	f := newServiceFixture(t, &fakeResponder{reply: "không được gọi"})

	inbound := widgetInbound(f.store.ID, "lead-1", "em cần tư vấn da khô")
	inbound.DisplayName = "Chị Hoa"
	inbound.Email = "hoa@example.com"
	inbound.Phone = "0901234567"

	result, err := f.service.ResolveLead(context.Background(), f.store, inbound)
	require.NoError(t, err)

	assert.True(t, result.CustomerCreated)
	assert.True(t, result.ConversationCreated)

	customer, err := f.customerRepo.FindByID(context.Background(), result.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, "Chị Hoa", customer.Name)
	require.NotNil(t, customer.Email)
	assert.Equal(t, "hoa@example.com", *customer.Email)

	// Lead path không gọi AI
	msgs := f.messageRepo.byConversation(result.ConversationID)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
}

func TestSendAgentMessage(t *testing.T) {
	f := newServiceFixture(t, &fakeResponder{reply: "ok"})
	ctx := context.Background()

	first, err := f.service.ProcessInbound(ctx, f.store, widgetInbound(f.store.ID, "visitor-1", "hi"))
	require.NoError(t, err)

	msg, err := f.service.SendAgentMessage(ctx, f.store, first.ConversationID, "Chào anh, em hỗ trợ đây ạ")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAgent, msg.Role)

	msgs := f.messageRepo.byConversation(first.ConversationID)
	assert.Equal(t, models.RoleAgent, msgs[len(msgs)-1].Role)
}

func TestSendAgentMessage_WrongStore(t *testing.T) {
	f := newServiceFixture(t, &fakeResponder{reply: "ok"})
	ctx := context.Background()

	first, err := f.service.ProcessInbound(ctx, f.store, widgetInbound(f.store.ID, "visitor-1", "hi"))
	require.NoError(t, err)

	otherStore := &models.Store{Name: "Shop Khác", Slug: "shop-khac"}
	otherStore.ID = uuid.New()

	_, err = f.service.SendAgentMessage(ctx, otherStore, first.ConversationID, "xâm nhập")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

func TestSendAgentMessage_ConversationNotFound(t *testing.T) {
	f := newServiceFixture(t, &fakeResponder{reply: "ok"})

	_, err := f.service.SendAgentMessage(context.Background(), f.store, uuid.New(), "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
