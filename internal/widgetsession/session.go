package widgetsession

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ===========================================================================
// Widget Session
// Phía client của widget: giữ conversation id + transcript local theo store,
// tương đương localStorage trên browser. Identity LUÔN đọc fresh từ KV
// ngay trước khi dùng - không giữ bản copy trong biến
// ===========================================================================

// KV key-value store persist phía client (localStorage, file, memory...)
type KV interface {
	// Get đọc giá trị theo key
	Get(key string) (string, bool)

	// Set ghi giá trị
	Set(key, value string)

	// Delete xoá key
	Delete(key string)
}

// MemoryKV triển khai KV in-memory, an toàn cho goroutine
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKV tạo KV store mới
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

// Get đọc giá trị theo key
func (s *MemoryKV) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Set ghi giá trị
func (s *MemoryKV) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Delete xoá key
func (s *MemoryKV) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Entry một dòng trong transcript local
type Entry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Session trạng thái widget của MỘT store
// Keys được scope theo store id để nhiều widget trên cùng client
// không giẫm lên nhau
type Session struct {
	kv      KV
	storeID uuid.UUID
}

// NewSession tạo session cho store
func NewSession(kv KV, storeID uuid.UUID) *Session {
	return &Session{kv: kv, storeID: storeID}
}

func (s *Session) conversationKey() string {
	return fmt.Sprintf("storechat:%s:conversation_id", s.storeID)
}

func (s *Session) transcriptKey() string {
	return fmt.Sprintf("storechat:%s:messages", s.storeID)
}

// ConversationID đọc conversation id HIỆN TẠI từ KV
// Gọi ngay trước mỗi lần dùng - không cache kết quả qua async callback
func (s *Session) ConversationID() (uuid.UUID, bool) {
	raw, ok := s.kv.Get(s.conversationKey())
	if !ok || raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		// Giá trị hỏng thì bỏ, để lần gửi sau mở conversation mới
		s.kv.Delete(s.conversationKey())
		return uuid.Nil, false
	}
	return id, true
}

// SetConversationID ghi lại conversation id server trả về
func (s *Session) SetConversationID(id uuid.UUID) {
	s.kv.Set(s.conversationKey(), id.String())
}

// Transcript đọc transcript local
func (s *Session) Transcript() []Entry {
	raw, ok := s.kv.Get(s.transcriptKey())
	if !ok || raw == "" {
		return nil
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil
	}
	return entries
}

// SetTranscript ghi đè transcript local
func (s *Session) SetTranscript(entries []Entry) {
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	s.kv.Set(s.transcriptKey(), string(raw))
}

// Append thêm entry vào cuối transcript
func (s *Session) Append(entries ...Entry) {
	s.SetTranscript(append(s.Transcript(), entries...))
}

// Reset xoá toàn bộ state của store (bắt đầu hội thoại mới)
func (s *Session) Reset() {
	s.kv.Delete(s.conversationKey())
	s.kv.Delete(s.transcriptKey())
}
