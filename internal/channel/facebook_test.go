package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "storechat-gin/internal/errors"
	"storechat-gin/internal/models"
	"storechat-gin/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fbStore() *models.Store {
	store := &models.Store{
		Credentials: models.ChannelCredentials{
			FbPageID:          "page-1",
			FbPageAccessToken: "page-token",
			FbAppSecret:       "app-secret",
		},
	}
	store.ID = uuid.New()
	return store
}

func fbMessagePayload(senderID, text string) map[string]interface{} {
	return map[string]interface{}{
		"object": "page",
		"entry": []interface{}{
			map[string]interface{}{
				"id":   "page-1",
				"time": 1700000000000,
				"messaging": []interface{}{
					map[string]interface{}{
						"sender":    map[string]interface{}{"id": senderID},
						"recipient": map[string]interface{}{"id": "page-1"},
						"timestamp": 1700000000000,
						"message":   map[string]interface{}{"mid": "mid-1", "text": text},
					},
				},
			},
		},
	}
}

func TestFacebookNormalize(t *testing.T) {
	ch := NewFacebookChannel("http://unused", logger.NewNop())
	store := fbStore()

	inbound, err := ch.Normalize(context.Background(), store, fbMessagePayload("psid-7", "tư vấn giúp em"))
	require.NoError(t, err)
	assert.Equal(t, models.ChannelFacebook, inbound.Channel)
	assert.Equal(t, "psid-7", inbound.ExternalKey)
	assert.Equal(t, "tư vấn giúp em", inbound.Content)
	assert.Equal(t, "mid-1", inbound.ChannelMessageID)
}

func TestFacebookNormalize_SkipsPageEcho(t *testing.T) {
	ch := NewFacebookChannel("http://unused", logger.NewNop())
	store := fbStore()

	// Sender là chính page (echo tin gửi đi) - phải bỏ qua
	_, err := ch.Normalize(context.Background(), store, fbMessagePayload("page-1", "reply của page"))
	assert.Error(t, err)
}

func TestFacebookSend_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req FBSendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "psid-7", req.Recipient.ID)
		assert.Equal(t, "RESPONSE", req.MessagingType)

		json.NewEncoder(w).Encode(map[string]string{"message_id": "fb-mid-1"})
	}))
	defer srv.Close()

	ch := NewFacebookChannel(srv.URL, logger.NewNop())
	result, err := ch.Send(context.Background(), uuid.New(), fbStore().Credentials, &OutboundMessage{
		RecipientKey: "psid-7",
		Content:      "dạ shop còn hàng ạ",
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "fb-mid-1", result.ChannelMessageID)
}

func TestFacebookSend_ExpiredToken_Terminal(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"message": "Error validating access token",
				"type":    "OAuthException",
				"code":    190,
			},
		})
	}))
	defer srv.Close()

	ch := NewFacebookChannel(srv.URL, logger.NewNop())
	result, err := ch.Send(context.Background(), uuid.New(), fbStore().Credentials, &OutboundMessage{
		RecipientKey: "psid-7",
		Content:      "hi",
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Error, apperrors.ErrChannelAuthExpired)
	// Terminal - không có refresh/retry cho Facebook
	assert.Equal(t, 1, calls)
}

func TestFacebookSend_MissingToken(t *testing.T) {
	ch := NewFacebookChannel("http://unused", logger.NewNop())
	result, err := ch.Send(context.Background(), uuid.New(), models.ChannelCredentials{}, &OutboundMessage{
		RecipientKey: "psid-7",
		Content:      "hi",
	})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Error(t, result.Error)
}

func TestFacebookVerify(t *testing.T) {
	ch := NewFacebookChannel("http://unused", logger.NewNop())
	body := []byte(`{"object":"page"}`)
	secret := "app-secret"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	signature := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	assert.True(t, ch.Verify(signature, body, secret))
	assert.False(t, ch.Verify(signature, []byte(`tampered`), secret))
	assert.False(t, ch.Verify("sha256=deadbeef", body, secret))
	// Thiếu prefix sha256= là fail luôn
	assert.False(t, ch.Verify(hex.EncodeToString(mac.Sum(nil)), body, secret))
}
