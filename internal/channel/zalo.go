package channel

import (
	"bytes"
	"context"
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "storechat-gin/internal/errors"
	"storechat-gin/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Zalo Channel
// Adapter để nhận và gửi tin nhắn qua Zalo Official Account
//
// ĐẶC THÙ Zalo API: luôn trả HTTP 200, lỗi nằm trong trường `error` của
// body - PHẢI đọc error code, không được tin HTTP status
//
// Token lifecycle: access token sống ngắn. Khi gặp error -216 (token hết
// hạn) refresh ĐÚNG MỘT LẦN bằng refresh token + app id + secret key, rồi
// retry send ĐÚNG MỘT LẦN. Refresh fail hoặc lần gửi thứ hai fail thì báo
// lỗi luôn - không loop để tránh hot loop khi auth đã hỏng hẳn
// ===========================================================================

// ZaloErrTokenExpired error code Zalo trả về khi access token hết hạn
const ZaloErrTokenExpired = -216

// CredentialsWriter ghi lại credentials sau khi refresh token
// StoreRepository implement interface này
type CredentialsWriter interface {
	UpdateCredentials(ctx context.Context, id uuid.UUID, creds models.ChannelCredentials) error
}

// ZaloChannel implements Channel interface cho Zalo OA
type ZaloChannel struct {
	logger *zap.Logger

	// openAPIURL base URL của Zalo Open API (configurable để test)
	openAPIURL string

	// oauthURL base URL của Zalo OAuth API (configurable để test)
	oauthURL string

	// credWriter persist token mới sau khi refresh
	credWriter CredentialsWriter

	client *http.Client
}

// NewZaloChannel tạo Zalo channel mới
func NewZaloChannel(openAPIURL, oauthURL string, credWriter CredentialsWriter, logger *zap.Logger) *ZaloChannel {
	return &ZaloChannel{
		logger:     logger,
		openAPIURL: strings.TrimRight(openAPIURL, "/"),
		oauthURL:   strings.TrimRight(oauthURL, "/"),
		credWriter: credWriter,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Type trả về loại channel
func (c *ZaloChannel) Type() models.Channel {
	return models.ChannelZalo
}

// ===========================================================================
// Webhook Payload Structures
// ===========================================================================

// ZaloWebhookPayload cấu trúc webhook từ Zalo OA
type ZaloWebhookPayload struct {
	EventName string      `json:"event_name"`
	Sender    ZaloUser    `json:"sender"`
	Recipient ZaloUser    `json:"recipient"`
	Message   ZaloMessage `json:"message"`
	Timestamp string      `json:"timestamp"`
}

// ZaloUser thông tin user/OA
type ZaloUser struct {
	ID string `json:"id"`
}

// ZaloMessage tin nhắn từ user
type ZaloMessage struct {
	MsgID string `json:"msg_id"`
	Text  string `json:"text"`
}

// ===========================================================================
// Normalize - Parse webhook payload
// ===========================================================================

// Normalize chuyển đổi Zalo webhook payload thành InboundEvent chuẩn
func (c *ZaloChannel) Normalize(ctx context.Context, store *models.Store, payload map[string]interface{}) (*InboundEvent, error) {
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var zaloPayload ZaloWebhookPayload
	if err := json.Unmarshal(jsonBytes, &zaloPayload); err != nil {
		return nil, fmt.Errorf("unmarshal zalo payload: %w", err)
	}

	// Chỉ xử lý tin nhắn text từ user
	if zaloPayload.EventName != "user_send_text" {
		return nil, fmt.Errorf("unsupported event: %s", zaloPayload.EventName)
	}

	if zaloPayload.Sender.ID == "" || zaloPayload.Message.Text == "" {
		return nil, fmt.Errorf("zalo payload thiếu sender hoặc text")
	}

	inbound := &InboundEvent{
		StoreID:          store.ID,
		Channel:          models.ChannelZalo,
		ExternalKey:      zaloPayload.Sender.ID,
		ChannelMessageID: zaloPayload.Message.MsgID,
		Content:          zaloPayload.Message.Text,
		Timestamp:        time.Now(),
		RawPayload:       payload,
	}

	c.logger.Info("normalized zalo message",
		zap.String("store_id", store.ID.String()),
		zap.String("sender_id", inbound.ExternalKey),
	)

	return inbound, nil
}

// ===========================================================================
// Send - Gửi tin nhắn qua Zalo OA API với refresh-retry một lần
// ===========================================================================

// zaloSendResponse body trả về từ Zalo message API
// HTTP status luôn là 200, phải đọc Error
type zaloSendResponse struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
	Data    struct {
		MessageID string `json:"message_id"`
	} `json:"data"`
}

// zaloRefreshResponse body trả về từ Zalo OAuth refresh
type zaloRefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	Error        int    `json:"error"`
	ErrorName    string `json:"error_name"`
}

// Send gửi tin nhắn qua Zalo OA
// Bounded retry: tối đa 2 lần gửi (lần đầu + 1 lần sau refresh token).
// Viết dạng vòng lặp với attempt counter để giới hạn là hiển nhiên
func (c *ZaloChannel) Send(
	ctx context.Context,
	storeID uuid.UUID,
	creds models.ChannelCredentials,
	msg *OutboundMessage,
) (*SendResult, error) {
	if creds.ZaloAccessToken == "" {
		return &SendResult{Success: false, Error: fmt.Errorf("store chưa kết nối Zalo OA")}, nil
	}

	accessToken := creds.ZaloAccessToken
	refreshed := false

	for attempt := 0; attempt <= 1; attempt++ {
		result, errCode, err := c.sendOnce(ctx, accessToken, msg)
		if err != nil {
			// Transport error - không phải auth, không refresh
			return &SendResult{Success: false, Error: err}, nil
		}

		if errCode == 0 {
			return result, nil
		}

		if errCode != ZaloErrTokenExpired {
			return &SendResult{
				Success: false,
				Error:   fmt.Errorf("zalo api error %d", errCode),
			}, nil
		}

		// Token hết hạn - refresh đúng một lần
		if refreshed {
			// -216 lần thứ hai sau khi đã refresh: dừng, không loop
			return &SendResult{
				Success: false,
				Error:   fmt.Errorf("zalo token vẫn hết hạn sau refresh: %w", apperrors.ErrChannelAuthExpired),
			}, nil
		}

		newCreds, err := c.refreshToken(ctx, creds)
		if err != nil {
			return &SendResult{
				Success: false,
				Error:   fmt.Errorf("zalo refresh token failed: %w", apperrors.ErrChannelAuthExpired),
			}, nil
		}

		// Write-back token mới vào store record
		if c.credWriter != nil {
			if err := c.credWriter.UpdateCredentials(ctx, storeID, *newCreds); err != nil {
				c.logger.Error("zalo token write-back failed",
					zap.String("store_id", storeID.String()),
					zap.Error(err),
				)
				// Token mới vẫn dùng được cho lần retry này
			}
		}

		accessToken = newCreds.ZaloAccessToken
		refreshed = true
	}

	// Không bao giờ đến đây - vòng lặp return ở mọi nhánh
	return &SendResult{Success: false, Error: apperrors.ErrChannelAuthExpired}, nil
}

// sendOnce thực hiện một lần POST đến Zalo message API
// Trả về (result, zaloErrorCode, transportError)
func (c *ZaloChannel) sendOnce(ctx context.Context, accessToken string, msg *OutboundMessage) (*SendResult, int, error) {
	payload := map[string]interface{}{
		"recipient": map[string]string{"user_id": msg.RecipientKey},
		"message":   map[string]string{"text": msg.Content},
	}

	jsonBody, _ := json.Marshal(payload)
	sendURL := c.openAPIURL + "/v3.0/oa/message/cs"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	// Zalo trả HTTP 200 kể cả khi lỗi - đọc error code trong body
	var zaloResp zaloSendResponse
	if err := json.Unmarshal(body, &zaloResp); err != nil {
		return nil, 0, fmt.Errorf("unmarshal zalo response: %w", err)
	}

	if zaloResp.Error != 0 {
		c.logger.Warn("zalo send error",
			zap.Int("error_code", zaloResp.Error),
			zap.String("message", zaloResp.Message),
		)
		return nil, zaloResp.Error, nil
	}

	c.logger.Info("zalo message sent",
		zap.String("recipient", msg.RecipientKey),
		zap.String("message_id", zaloResp.Data.MessageID),
	)

	return &SendResult{
		Success:          true,
		ChannelMessageID: zaloResp.Data.MessageID,
	}, 0, nil
}

// refreshToken đổi refresh token lấy access token mới
// Trả về credentials đã cập nhật cả access token và refresh token mới
func (c *ZaloChannel) refreshToken(ctx context.Context, creds models.ChannelCredentials) (*models.ChannelCredentials, error) {
	if creds.ZaloRefreshToken == "" || creds.ZaloAppID == "" || creds.ZaloSecretKey == "" {
		return nil, fmt.Errorf("thiếu refresh token / app id / secret key")
	}

	form := url.Values{}
	form.Set("app_id", creds.ZaloAppID)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", creds.ZaloRefreshToken)

	refreshURL := c.oauthURL + "/v4/oa/access_token"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, refreshURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("secret_key", creds.ZaloSecretKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var refreshResp zaloRefreshResponse
	if err := json.Unmarshal(body, &refreshResp); err != nil {
		return nil, fmt.Errorf("unmarshal refresh response: %w", err)
	}

	if refreshResp.AccessToken == "" {
		return nil, fmt.Errorf("refresh rejected: error %d %s", refreshResp.Error, refreshResp.ErrorName)
	}

	c.logger.Info("zalo token refreshed",
		zap.String("app_id", creds.ZaloAppID),
	)

	// Zalo rotate cả refresh token mỗi lần refresh
	newCreds := creds
	newCreds.ZaloAccessToken = refreshResp.AccessToken
	if refreshResp.RefreshToken != "" {
		newCreds.ZaloRefreshToken = refreshResp.RefreshToken
	}

	return &newCreds, nil
}

// ===========================================================================
// Verify - Xác thực webhook
// ===========================================================================

// Verify so sánh secret trong header với secret key của store
// Zalo không ký HMAC body như FB, chỉ gửi kèm app secret
func (c *ZaloChannel) Verify(signature string, body []byte, secret string) bool {
	if secret == "" {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(secret))
}
