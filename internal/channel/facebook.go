package channel

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "storechat-gin/internal/errors"
	"storechat-gin/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Facebook Channel
// Adapter để nhận và gửi tin nhắn qua Facebook Messenger
// Token hết hạn là terminal failure - không có refresh logic cho FB,
// operator phải kết nối lại page
// ===========================================================================

// FacebookChannel implements Channel interface cho Facebook Messenger
type FacebookChannel struct {
	logger *zap.Logger

	// graphURL base URL của Graph API (configurable để test)
	graphURL string

	client *http.Client
}

// NewFacebookChannel tạo Facebook channel mới
func NewFacebookChannel(graphURL string, logger *zap.Logger) *FacebookChannel {
	return &FacebookChannel{
		logger:   logger,
		graphURL: strings.TrimRight(graphURL, "/"),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Type trả về loại channel
func (c *FacebookChannel) Type() models.Channel {
	return models.ChannelFacebook
}

// ===========================================================================
// Webhook Payload Structures
// ===========================================================================

// FBWebhookPayload cấu trúc webhook từ Facebook
type FBWebhookPayload struct {
	Object string           `json:"object"`
	Entry  []FBWebhookEntry `json:"entry"`
}

// FBWebhookEntry một entry trong webhook
type FBWebhookEntry struct {
	ID        string             `json:"id"`
	Time      int64              `json:"time"`
	Messaging []FBMessagingEvent `json:"messaging"`
}

// FBMessagingEvent một sự kiện messaging
type FBMessagingEvent struct {
	Sender    FBUser     `json:"sender"`
	Recipient FBUser     `json:"recipient"`
	Timestamp int64      `json:"timestamp"`
	Message   *FBMessage `json:"message,omitempty"`
}

// FBUser thông tin user
type FBUser struct {
	ID string `json:"id"`
}

// FBMessage tin nhắn từ user
type FBMessage struct {
	MID  string `json:"mid"`
	Text string `json:"text"`
}

// FBUserProfile thông tin profile user từ Graph API
type FBUserProfile struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ProfilePic string `json:"profile_pic"`
}

// FBErrorResponse body lỗi từ Graph API
type FBErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// ===========================================================================
// GetUserProfile - Lấy thông tin user từ Facebook Graph API
// ===========================================================================

// GetUserProfile gọi Facebook Graph API để lấy name và avatar của user
// Dùng để enrich customer đang mang placeholder name
func (c *FacebookChannel) GetUserProfile(ctx context.Context, userID, accessToken string) (*FBUserProfile, error) {
	url := fmt.Sprintf(
		"%s/%s?fields=name,profile_pic&access_token=%s",
		c.graphURL, userID, accessToken,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("fb profile api error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, fmt.Errorf("fb api error: status %d", resp.StatusCode)
	}

	var profile FBUserProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}

	c.logger.Debug("fb profile fetched",
		zap.String("user_id", userID),
		zap.String("name", profile.Name),
	)

	return &profile, nil
}

// ===========================================================================
// Normalize - Parse webhook payload
// ===========================================================================

// Normalize chuyển đổi FB webhook payload thành InboundEvent chuẩn
func (c *FacebookChannel) Normalize(ctx context.Context, store *models.Store, payload map[string]interface{}) (*InboundEvent, error) {
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var fbPayload FBWebhookPayload
	if err := json.Unmarshal(jsonBytes, &fbPayload); err != nil {
		return nil, fmt.Errorf("unmarshal fb payload: %w", err)
	}

	if fbPayload.Object != "page" {
		return nil, fmt.Errorf("invalid object type: %s", fbPayload.Object)
	}

	if len(fbPayload.Entry) == 0 || len(fbPayload.Entry[0].Messaging) == 0 {
		return nil, fmt.Errorf("no messaging events")
	}

	event := fbPayload.Entry[0].Messaging[0]

	if event.Message == nil || event.Message.Text == "" {
		return nil, fmt.Errorf("no text message in event")
	}

	// Echo của chính page gửi đi - bỏ qua
	if event.Sender.ID == store.Credentials.FbPageID {
		return nil, fmt.Errorf("echo event from page itself")
	}

	inbound := &InboundEvent{
		StoreID:          store.ID,
		Channel:          models.ChannelFacebook,
		ExternalKey:      event.Sender.ID,
		ChannelMessageID: event.Message.MID,
		Content:          event.Message.Text,
		Timestamp:        time.UnixMilli(event.Timestamp),
		RawPayload:       payload,
	}

	c.logger.Info("normalized fb message",
		zap.String("store_id", store.ID.String()),
		zap.String("sender_id", inbound.ExternalKey),
	)

	return inbound, nil
}

// ===========================================================================
// Send - Gửi tin nhắn qua FB Graph API
// ===========================================================================

// FBSendRequest request gửi tin nhắn
type FBSendRequest struct {
	Recipient     FBUser        `json:"recipient"`
	Message       FBSendMessage `json:"message"`
	MessagingType string        `json:"messaging_type"`
}

// FBSendMessage tin nhắn gửi đi
type FBSendMessage struct {
	Text string `json:"text"`
}

// Send gửi tin nhắn qua Facebook Messenger
// Token hết hạn (OAuth error code 190) trả về ErrChannelAuthExpired -
// KHÔNG retry, operator phải kết nối lại page
func (c *FacebookChannel) Send(
	ctx context.Context,
	storeID uuid.UUID,
	creds models.ChannelCredentials,
	msg *OutboundMessage,
) (*SendResult, error) {
	if creds.FbPageAccessToken == "" {
		return &SendResult{Success: false, Error: fmt.Errorf("store chưa kết nối Facebook Page")}, nil
	}

	fbReq := FBSendRequest{
		Recipient:     FBUser{ID: msg.RecipientKey},
		Message:       FBSendMessage{Text: msg.Content},
		MessagingType: "RESPONSE",
	}

	url := fmt.Sprintf("%s/me/messages?access_token=%s", c.graphURL, creds.FbPageAccessToken)

	jsonBody, _ := json.Marshal(fbReq)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return &SendResult{Success: false, Error: err}, nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &SendResult{Success: false, Error: err}, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		var fbErr FBErrorResponse
		json.Unmarshal(body, &fbErr)

		c.logger.Error("fb send failed",
			zap.Int("status", resp.StatusCode),
			zap.Int("fb_code", fbErr.Error.Code),
			zap.String("body", string(body)),
		)

		// OAuthException code 190: token hết hạn/không hợp lệ
		if fbErr.Error.Code == 190 || fbErr.Error.Type == "OAuthException" {
			return &SendResult{
				Success: false,
				Error:   fmt.Errorf("fb token expired: %w", apperrors.ErrChannelAuthExpired),
			}, nil
		}

		return &SendResult{Success: false, Error: fmt.Errorf("fb api error: %s", string(body))}, nil
	}

	var fbResp struct {
		MessageID string `json:"message_id"`
	}
	json.Unmarshal(body, &fbResp)

	c.logger.Info("fb message sent",
		zap.String("recipient", msg.RecipientKey),
		zap.String("message_id", fbResp.MessageID),
	)

	return &SendResult{
		Success:          true,
		ChannelMessageID: fbResp.MessageID,
	}, nil
}

// ===========================================================================
// Verify - Xác thực webhook signature
// ===========================================================================

// Verify kiểm tra X-Hub-Signature-256 header
func (c *FacebookChannel) Verify(signature string, body []byte, secret string) bool {
	if !strings.HasPrefix(signature, "sha256=") {
		return false
	}

	expectedSig := signature[7:]

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	actualSig := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expectedSig), []byte(actualSig))
}
