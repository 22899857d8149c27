package widgetsession

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Widget Reconciler
// Gửi tin + polling đồng bộ transcript local với server
// Transcript local chỉ bị thay khi server history THỰC SỰ khác,
// tránh re-render thừa mỗi tick
// ===========================================================================

// Backend giao tiếp với server của widget
type Backend interface {
	// SendMessage gửi tin nhắn, trả về reply và conversation id
	SendMessage(ctx context.Context, conversationID uuid.UUID, message string) (reply Entry, convID uuid.UUID, err error)

	// FetchHistory lấy transcript chuẩn từ server
	FetchHistory(ctx context.Context, conversationID uuid.UUID) ([]Entry, error)
}

// Reconciler giữ transcript local khớp với server
type Reconciler struct {
	session  *Session
	backend  Backend
	welcome  string
	interval time.Duration
	logger   *zap.Logger

	// OnChange gọi khi transcript local thay đổi (update UI)
	OnChange func(entries []Entry)
}

// NewReconciler tạo reconciler cho một session
func NewReconciler(session *Session, backend Backend, welcome string, interval time.Duration, logger *zap.Logger) *Reconciler {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Reconciler{
		session:  session,
		backend:  backend,
		welcome:  welcome,
		interval: interval,
		logger:   logger,
	}
}

// EnsureWelcome chèn welcome message local nếu transcript chưa bắt đầu
// bằng welcome text - tránh double-prepend qua các lần reconcile
func (r *Reconciler) EnsureWelcome() {
	if r.welcome == "" {
		return
	}
	transcript := r.session.Transcript()
	if len(transcript) > 0 && transcript[0].Role == "AI" && transcript[0].Content == r.welcome {
		return
	}
	entries := append([]Entry{{
		Role:      "AI",
		Content:   r.welcome,
		CreatedAt: time.Now(),
	}}, transcript...)
	r.session.SetTranscript(entries)
	r.notify(entries)
}

// Send gửi tin nhắn của visitor
// Conversation id đọc FRESH từ session ngay tại đây, không nhận qua
// tham số hay biến captured - id có thể đã được set bởi response trước
func (r *Reconciler) Send(ctx context.Context, message string) (Entry, error) {
	convID, _ := r.session.ConversationID()

	reply, newConvID, err := r.backend.SendMessage(ctx, convID, message)
	if err != nil {
		return Entry{}, err
	}

	if newConvID != uuid.Nil {
		r.session.SetConversationID(newConvID)
	}

	r.session.Append(
		Entry{Role: "USER", Content: message, CreatedAt: time.Now()},
		reply,
	)
	r.notify(r.session.Transcript())
	return reply, nil
}

// Reconcile một tick: lấy server history, thay transcript local khi khác
func (r *Reconciler) Reconcile(ctx context.Context) error {
	convID, ok := r.session.ConversationID()
	if !ok {
		// Chưa có hội thoại - không có gì để sync
		return nil
	}

	serverEntries, err := r.backend.FetchHistory(ctx, convID)
	if err != nil {
		return err
	}

	// Welcome local được giữ nếu server chưa có nó ở đầu
	if r.welcome != "" {
		if len(serverEntries) == 0 || serverEntries[0].Content != r.welcome {
			serverEntries = append([]Entry{{
				Role:      "AI",
				Content:   r.welcome,
				CreatedAt: time.Now(),
			}}, serverEntries...)
		}
	}

	local := r.session.Transcript()
	if transcriptsEqual(local, serverEntries) {
		return nil
	}

	r.session.SetTranscript(serverEntries)
	r.notify(serverEntries)
	return nil
}

// Run chạy polling loop đến khi context bị cancel
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Reconcile(ctx); err != nil {
				r.logger.Debug("widget reconcile tick failed", zap.Error(err))
			}
		}
	}
}

func (r *Reconciler) notify(entries []Entry) {
	if r.OnChange != nil {
		r.OnChange(entries)
	}
}

// transcriptsEqual so sánh cấu trúc hai transcript theo role + content
// CreatedAt bỏ qua vì local timestamp không khớp server timestamp
func transcriptsEqual(a, b []Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Role != b[i].Role || a[i].Content != b[i].Content {
			return false
		}
	}
	return true
}
