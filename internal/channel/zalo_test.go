package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	apperrors "storechat-gin/internal/errors"
	"storechat-gin/internal/models"
	"storechat-gin/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCredWriter ghi nhớ credentials được write-back
type fakeCredWriter struct {
	mu    sync.Mutex
	calls int
	last  models.ChannelCredentials
}

func (w *fakeCredWriter) UpdateCredentials(ctx context.Context, id uuid.UUID, creds models.ChannelCredentials) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	w.last = creds
	return nil
}

func zaloCreds() models.ChannelCredentials {
	return models.ChannelCredentials{
		ZaloOAID:         "oa-1",
		ZaloAccessToken:  "old-token",
		ZaloRefreshToken: "refresh-1",
		ZaloAppID:        "app-1",
		ZaloSecretKey:    "secret-1",
	}
}

// zaloTestBackend mô phỏng Zalo message API + OAuth API với counter
type zaloTestBackend struct {
	mu           sync.Mutex
	sendCalls    int
	refreshCalls int

	// sendResponder quyết định response theo số thứ tự call (1-based)
	sendResponder func(call int, accessToken string) map[string]interface{}
}

func (b *zaloTestBackend) openAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.sendCalls++
		call := b.sendCalls
		b.mu.Unlock()

		resp := b.sendResponder(call, r.Header.Get("access_token"))
		w.Header().Set("Content-Type", "application/json")
		// Zalo luôn trả 200, lỗi nằm trong body
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}
}

func (b *zaloTestBackend) oauthHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.refreshCalls++
		b.mu.Unlock()

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostFormValue("grant_type"))
		assert.Equal(t, "app-1", r.PostFormValue("app_id"))
		assert.Equal(t, "secret-1", r.Header.Get("secret_key"))

		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "new-token",
			"refresh_token": "refresh-2",
		})
	}
}

func TestZaloSend_Success(t *testing.T) {
	backend := &zaloTestBackend{
		sendResponder: func(call int, token string) map[string]interface{} {
			return map[string]interface{}{
				"error": 0,
				"data":  map[string]string{"message_id": "mid-1"},
			}
		},
	}
	openAPI := httptest.NewServer(backend.openAPIHandler())
	defer openAPI.Close()

	ch := NewZaloChannel(openAPI.URL, "http://unused", nil, logger.NewNop())
	result, err := ch.Send(context.Background(), uuid.New(), zaloCreds(), &OutboundMessage{
		RecipientKey: "user-1",
		Content:      "xin chào",
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "mid-1", result.ChannelMessageID)
	assert.Equal(t, 1, backend.sendCalls)
}

func TestZaloSend_ExpiredToken_RefreshesOnceAndRetries(t *testing.T) {
	backend := &zaloTestBackend{
		sendResponder: func(call int, token string) map[string]interface{} {
			// Lần đầu với token cũ: -216. Lần hai với token mới: ok
			if token == "old-token" {
				return map[string]interface{}{"error": -216, "message": "token expired"}
			}
			return map[string]interface{}{
				"error": 0,
				"data":  map[string]string{"message_id": "mid-2"},
			}
		},
	}
	openAPI := httptest.NewServer(backend.openAPIHandler())
	defer openAPI.Close()
	oauth := httptest.NewServer(backend.oauthHandler(t))
	defer oauth.Close()

	writer := &fakeCredWriter{}
	storeID := uuid.New()

	ch := NewZaloChannel(openAPI.URL, oauth.URL, writer, logger.NewNop())
	result, err := ch.Send(context.Background(), storeID, zaloCreds(), &OutboundMessage{
		RecipientKey: "user-1",
		Content:      "xin chào",
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "mid-2", result.ChannelMessageID)

	// Đúng 1 refresh, đúng 2 lần gửi
	assert.Equal(t, 1, backend.refreshCalls)
	assert.Equal(t, 2, backend.sendCalls)

	// Token mới được write-back, refresh token đã rotate
	assert.Equal(t, 1, writer.calls)
	assert.Equal(t, "new-token", writer.last.ZaloAccessToken)
	assert.Equal(t, "refresh-2", writer.last.ZaloRefreshToken)
}

func TestZaloSend_ExpiredTwice_NoLoop(t *testing.T) {
	backend := &zaloTestBackend{
		sendResponder: func(call int, token string) map[string]interface{} {
			// -216 kể cả sau refresh
			return map[string]interface{}{"error": -216, "message": "token expired"}
		},
	}
	openAPI := httptest.NewServer(backend.openAPIHandler())
	defer openAPI.Close()
	oauth := httptest.NewServer(backend.oauthHandler(t))
	defer oauth.Close()

	ch := NewZaloChannel(openAPI.URL, oauth.URL, &fakeCredWriter{}, logger.NewNop())
	result, err := ch.Send(context.Background(), uuid.New(), zaloCreds(), &OutboundMessage{
		RecipientKey: "user-1",
		Content:      "xin chào",
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Error(t, result.Error)
	assert.ErrorIs(t, result.Error, apperrors.ErrChannelAuthExpired)

	// Dừng hẳn sau lần gửi thứ hai: 1 refresh, 2 send, không loop thêm
	assert.Equal(t, 1, backend.refreshCalls)
	assert.Equal(t, 2, backend.sendCalls)
}

func TestZaloSend_RefreshFails(t *testing.T) {
	backend := &zaloTestBackend{
		sendResponder: func(call int, token string) map[string]interface{} {
			return map[string]interface{}{"error": -216}
		},
	}
	openAPI := httptest.NewServer(backend.openAPIHandler())
	defer openAPI.Close()

	oauth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":      -14014,
			"error_name": "Invalid refresh token",
		})
	}))
	defer oauth.Close()

	writer := &fakeCredWriter{}
	ch := NewZaloChannel(openAPI.URL, oauth.URL, writer, logger.NewNop())
	result, err := ch.Send(context.Background(), uuid.New(), zaloCreds(), &OutboundMessage{
		RecipientKey: "user-1",
		Content:      "hi",
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Error, apperrors.ErrChannelAuthExpired)
	// Refresh fail thì không retry send và không write-back gì
	assert.Equal(t, 1, backend.sendCalls)
	assert.Equal(t, 0, writer.calls)
}

func TestZaloSend_NonAuthError_NoRefresh(t *testing.T) {
	backend := &zaloTestBackend{
		sendResponder: func(call int, token string) map[string]interface{} {
			return map[string]interface{}{"error": -201, "message": "invalid recipient"}
		},
	}
	openAPI := httptest.NewServer(backend.openAPIHandler())
	defer openAPI.Close()

	ch := NewZaloChannel(openAPI.URL, "http://unused", nil, logger.NewNop())
	result, err := ch.Send(context.Background(), uuid.New(), zaloCreds(), &OutboundMessage{
		RecipientKey: "user-x",
		Content:      "hi",
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotErrorIs(t, result.Error, apperrors.ErrChannelAuthExpired)
	assert.Equal(t, 1, backend.sendCalls)
}

func TestZaloSend_MissingToken(t *testing.T) {
	ch := NewZaloChannel("http://unused", "http://unused", nil, logger.NewNop())
	result, err := ch.Send(context.Background(), uuid.New(), models.ChannelCredentials{}, &OutboundMessage{
		RecipientKey: "user-1",
		Content:      "hi",
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Error(t, result.Error)
}

func TestZaloNormalize(t *testing.T) {
	store := &models.Store{}
	store.ID = uuid.New()

	ch := NewZaloChannel("http://unused", "http://unused", nil, logger.NewNop())

	payload := map[string]interface{}{
		"event_name": "user_send_text",
		"sender":     map[string]interface{}{"id": "zalo-user-9"},
		"recipient":  map[string]interface{}{"id": "oa-1"},
		"message":    map[string]interface{}{"msg_id": "m-1", "text": "shop còn hàng không"},
	}

	inbound, err := ch.Normalize(context.Background(), store, payload)
	require.NoError(t, err)
	assert.Equal(t, models.ChannelZalo, inbound.Channel)
	assert.Equal(t, "zalo-user-9", inbound.ExternalKey)
	assert.Equal(t, "shop còn hàng không", inbound.Content)
	assert.Equal(t, "m-1", inbound.ChannelMessageID)
}

func TestZaloNormalize_IgnoresNonTextEvents(t *testing.T) {
	store := &models.Store{}
	store.ID = uuid.New()

	ch := NewZaloChannel("http://unused", "http://unused", nil, logger.NewNop())

	_, err := ch.Normalize(context.Background(), store, map[string]interface{}{
		"event_name": "user_send_image",
		"sender":     map[string]interface{}{"id": "u"},
	})
	assert.Error(t, err)
}

func TestZaloVerify(t *testing.T) {
	ch := NewZaloChannel("http://unused", "http://unused", nil, logger.NewNop())

	assert.True(t, ch.Verify("secret-1", nil, "secret-1"))
	assert.False(t, ch.Verify("wrong", nil, "secret-1"))
	// Prefix trùng nhưng độ dài khác vẫn phải từ chối
	assert.False(t, ch.Verify("secret-1x", nil, "secret-1"))
	assert.False(t, ch.Verify("secret-", nil, "secret-1"))
	// Store chưa cấu hình secret thì từ chối hết
	assert.False(t, ch.Verify("", nil, ""))
}
