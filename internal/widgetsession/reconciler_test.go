package widgetsession

import (
	"context"
	"sync"
	"testing"
	"time"

	"storechat-gin/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend mô phỏng server của widget
type fakeBackend struct {
	mu sync.Mutex

	// convID cấp bởi "server" ở lần gửi đầu tiên
	convID uuid.UUID

	// receivedConvIDs conversation id nhận được ở mỗi lần SendMessage
	receivedConvIDs []uuid.UUID

	// history transcript phía server
	history []Entry

	fetchCalls int
}

func (b *fakeBackend) SendMessage(ctx context.Context, conversationID uuid.UUID, message string) (Entry, uuid.UUID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.receivedConvIDs = append(b.receivedConvIDs, conversationID)
	if b.convID == uuid.Nil {
		b.convID = uuid.New()
	}

	reply := Entry{Role: "AI", Content: "reply to: " + message, CreatedAt: time.Now()}
	b.history = append(b.history,
		Entry{Role: "USER", Content: message, CreatedAt: time.Now()},
		reply,
	)
	return reply, b.convID, nil
}

func (b *fakeBackend) FetchHistory(ctx context.Context, conversationID uuid.UUID) ([]Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetchCalls++
	out := make([]Entry, len(b.history))
	copy(out, b.history)
	return out, nil
}

func newTestReconciler(welcome string) (*Session, *fakeBackend, *Reconciler) {
	session := NewSession(NewMemoryKV(), uuid.New())
	backend := &fakeBackend{}
	rec := NewReconciler(session, backend, welcome, time.Second, logger.NewNop())
	return session, backend, rec
}

func TestSend_PersistsServerConversationID(t *testing.T) {
	session, backend, rec := newTestReconciler("")

	_, hasID := session.ConversationID()
	assert.False(t, hasID)

	_, err := rec.Send(context.Background(), "hi")
	require.NoError(t, err)

	// Lần đầu gửi với uuid.Nil, server cấp id mới
	require.Len(t, backend.receivedConvIDs, 1)
	assert.Equal(t, uuid.Nil, backend.receivedConvIDs[0])

	got, hasID := session.ConversationID()
	require.True(t, hasID)
	assert.Equal(t, backend.convID, got)
}

func TestSend_ReadsFreshIdentityEachTime(t *testing.T) {
	session, backend, rec := newTestReconciler("")
	ctx := context.Background()

	_, err := rec.Send(ctx, "tin thứ nhất")
	require.NoError(t, err)

	// Lần gửi hai phải mang id server vừa cấp - không phải giá trị
	// capture từ trước lần gửi đầu
	_, err = rec.Send(ctx, "tin thứ hai")
	require.NoError(t, err)

	require.Len(t, backend.receivedConvIDs, 2)
	assert.Equal(t, uuid.Nil, backend.receivedConvIDs[0])
	assert.Equal(t, backend.convID, backend.receivedConvIDs[1])

	// Transcript local giữ đủ 2 lượt hỏi-đáp
	assert.Len(t, session.Transcript(), 4)
}

func TestReconcile_ReplacesOnlyWhenDifferent(t *testing.T) {
	session, backend, rec := newTestReconciler("")
	ctx := context.Background()

	changes := 0
	rec.OnChange = func(entries []Entry) { changes++ }

	_, err := rec.Send(ctx, "hi")
	require.NoError(t, err)
	changesAfterSend := changes

	// Local đã khớp server - tick không được thay transcript
	require.NoError(t, rec.Reconcile(ctx))
	assert.Equal(t, changesAfterSend, changes)

	// Server có thêm tin từ agent - tick phải thay transcript
	backend.mu.Lock()
	backend.history = append(backend.history, Entry{Role: "AGENT", Content: "em hỗ trợ đây ạ"})
	backend.mu.Unlock()

	require.NoError(t, rec.Reconcile(ctx))
	assert.Equal(t, changesAfterSend+1, changes)

	transcript := session.Transcript()
	assert.Equal(t, "em hỗ trợ đây ạ", transcript[len(transcript)-1].Content)
}

func TestReconcile_NoConversationYet(t *testing.T) {
	_, backend, rec := newTestReconciler("")

	// Chưa có conversation id thì tick không gọi server
	require.NoError(t, rec.Reconcile(context.Background()))
	assert.Equal(t, 0, backend.fetchCalls)
}

func TestWelcome_NotDoublePrepended(t *testing.T) {
	welcome := "Xin chào! Em giúp gì được ạ?"
	session, _, rec := newTestReconciler(welcome)
	ctx := context.Background()

	rec.EnsureWelcome()
	transcript := session.Transcript()
	require.Len(t, transcript, 1)
	assert.Equal(t, welcome, transcript[0].Content)

	// Gọi lại không chèn thêm
	rec.EnsureWelcome()
	assert.Len(t, session.Transcript(), 1)

	// Server chưa có welcome ở đầu - reconcile giữ welcome local
	_, err := rec.Send(ctx, "hi")
	require.NoError(t, err)
	require.NoError(t, rec.Reconcile(ctx))

	transcript = session.Transcript()
	assert.Equal(t, welcome, transcript[0].Content)
	// welcome + (USER, AI) từ server
	assert.Len(t, transcript, 3)

	// Reconcile lần nữa cũng không nhân đôi welcome
	require.NoError(t, rec.Reconcile(ctx))
	assert.Len(t, session.Transcript(), 3)
}

func TestSession_ScopedByStore(t *testing.T) {
	kv := NewMemoryKV()
	storeA := NewSession(kv, uuid.New())
	storeB := NewSession(kv, uuid.New())

	idA := uuid.New()
	storeA.SetConversationID(idA)

	// Store B không thấy conversation của store A
	_, hasID := storeB.ConversationID()
	assert.False(t, hasID)

	got, hasID := storeA.ConversationID()
	require.True(t, hasID)
	assert.Equal(t, idA, got)
}

func TestSession_CorruptConversationID(t *testing.T) {
	kv := NewMemoryKV()
	storeID := uuid.New()
	session := NewSession(kv, storeID)

	kv.Set("storechat:"+storeID.String()+":conversation_id", "not-a-uuid")

	// Giá trị hỏng bị xoá, coi như chưa có hội thoại
	_, hasID := session.ConversationID()
	assert.False(t, hasID)
	_, exists := kv.Get("storechat:" + storeID.String() + ":conversation_id")
	assert.False(t, exists)
}
