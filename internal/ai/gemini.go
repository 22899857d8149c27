package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storechat-gin/internal/config"
	apperrors "storechat-gin/internal/errors"
	"storechat-gin/internal/models"

	"go.uber.org/zap"
)

// ===========================================================================
// Gemini Responder
// Implementation của Responder dùng Google Generative Language API
// ===========================================================================

// geminiResponder triển khai Responder với Gemini REST API
type geminiResponder struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewGeminiResponder tạo Responder dùng Gemini
func NewGeminiResponder(cfg config.AIConfig, logger *zap.Logger) Responder {
	return &geminiResponder{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// ===========================================================================
// Request/Response structures theo Generative Language API
// ===========================================================================

// geminiContent một lượt hội thoại
type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

// geminiPart một phần nội dung
type geminiPart struct {
	Text string `json:"text"`
}

// geminiRequest request body
type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

// geminiResponse response body
type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// Reply gọi Gemini generateContent và trả về text đầu tiên.
// Role mapping: USER -> "user", AI và AGENT -> "model" (với model bên
// ngoài, mọi câu trả lời từ phía shop đều là lượt "model")
func (g *geminiResponder) Reply(ctx context.Context, systemPrompt string, history []models.Message, userMessage string) (string, error) {
	reqBody := geminiRequest{
		Contents: make([]geminiContent, 0, len(history)+1),
	}

	if systemPrompt != "" {
		reqBody.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: systemPrompt}},
		}
	}

	for _, m := range history {
		role := "model"
		if m.Role == models.RoleUser {
			role = "user"
		}
		reqBody.Contents = append(reqBody.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}

	reqBody.Contents = append(reqBody.Contents, geminiContent{
		Role:  "user",
		Parts: []geminiPart{{Text: userMessage}},
	})

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		// Transport error hoặc timeout (client timeout / ctx cancel)
		g.logger.Warn("ai transport error",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)),
		)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("ai call timed out: %w", apperrors.ErrAiUnavailable)
		}
		return "", fmt.Errorf("ai transport: %w", apperrors.ErrAiUnavailable)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		g.logger.Warn("ai api error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return "", fmt.Errorf("ai api status %d: %w", resp.StatusCode, apperrors.ErrAiUnavailable)
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", fmt.Errorf("unmarshal ai response: %w", apperrors.ErrAiUnavailable)
	}

	// Model từ chối trả lời (safety block, empty candidates)
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		g.logger.Warn("ai returned no candidates")
		return "", fmt.Errorf("ai refused to respond: %w", apperrors.ErrAiUnavailable)
	}

	reply := strings.TrimSpace(geminiResp.Candidates[0].Content.Parts[0].Text)
	if reply == "" {
		return "", fmt.Errorf("ai returned empty text: %w", apperrors.ErrAiUnavailable)
	}

	g.logger.Debug("ai reply generated",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("history_len", len(history)),
	)

	return reply, nil
}
