package widgetsession

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ===========================================================================
// HTTP Backend
// Backend thật gọi widget API của server
// ===========================================================================

// HTTPBackend triển khai Backend qua widget HTTP API
type HTTPBackend struct {
	baseURL    string
	storeSlug  string
	visitorKey string
	client     *http.Client
}

// NewHTTPBackend tạo backend cho một visitor của một store
func NewHTTPBackend(baseURL, storeSlug, visitorKey string) *HTTPBackend {
	return &HTTPBackend{
		baseURL:    baseURL,
		storeSlug:  storeSlug,
		visitorKey: visitorKey,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

type chatRequest struct {
	VisitorKey     string  `json:"visitor_key"`
	Message        string  `json:"message"`
	ConversationID *string `json:"conversation_id,omitempty"`
}

type chatResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Content        string `json:"content"`
		ConversationID string `json:"conversation_id"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type historyResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		Role      string    `json:"role"`
		Content   string    `json:"content"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"data"`
}

// SendMessage gửi tin nhắn, trả về reply và conversation id server cấp
func (b *HTTPBackend) SendMessage(ctx context.Context, conversationID uuid.UUID, message string) (Entry, uuid.UUID, error) {
	payload := chatRequest{
		VisitorKey: b.visitorKey,
		Message:    message,
	}
	if conversationID != uuid.Nil {
		id := conversationID.String()
		payload.ConversationID = &id
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, uuid.Nil, err
	}

	url := fmt.Sprintf("%s/api/v1/widget/%s/chat", b.baseURL, b.storeSlug)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Entry{}, uuid.Nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return Entry{}, uuid.Nil, err
	}
	defer resp.Body.Close()

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return Entry{}, uuid.Nil, err
	}
	if !chatResp.Success {
		msg := "unknown error"
		if chatResp.Error != nil {
			msg = chatResp.Error.Message
		}
		return Entry{}, uuid.Nil, fmt.Errorf("widget chat failed: %s", msg)
	}

	convID, err := uuid.Parse(chatResp.Data.ConversationID)
	if err != nil {
		return Entry{}, uuid.Nil, fmt.Errorf("invalid conversation id in response: %w", err)
	}

	reply := Entry{
		Role:      "AI",
		Content:   chatResp.Data.Content,
		CreatedAt: time.Now(),
	}
	return reply, convID, nil
}

// FetchHistory lấy transcript chuẩn từ server
func (b *HTTPBackend) FetchHistory(ctx context.Context, conversationID uuid.UUID) ([]Entry, error) {
	url := fmt.Sprintf("%s/api/v1/widget/%s/conversations/%s/messages", b.baseURL, b.storeSlug, conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch history: status %d", resp.StatusCode)
	}

	var histResp historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&histResp); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(histResp.Data))
	for _, m := range histResp.Data {
		entries = append(entries, Entry{
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return entries, nil
}
