package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storechat-gin/internal/config"
	apperrors "storechat-gin/internal/errors"
	"storechat-gin/internal/models"
	"storechat-gin/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geminiConfig(baseURL string, timeout time.Duration) config.AIConfig {
	return config.AIConfig{
		BaseURL: baseURL,
		Model:   "gemini-test",
		APIKey:  "test-key",
		Timeout: timeout,
	}
}

func geminiOKResponse(text string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"content": map[string]interface{}{
					"role":  "model",
					"parts": []interface{}{map[string]interface{}{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
	}
}

func TestGeminiReply_Success(t *testing.T) {
	var captured geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(geminiOKResponse("Dạ shop còn hàng ạ"))
	}))
	defer srv.Close()

	responder := NewGeminiResponder(geminiConfig(srv.URL, 5*time.Second), logger.NewNop())

	history := []models.Message{
		{Role: models.RoleUser, Content: "shop ơi"},
		{Role: models.RoleAi, Content: "dạ em nghe ạ"},
		{Role: models.RoleAgent, Content: "chào anh"},
	}

	reply, err := responder.Reply(context.Background(), "system prompt", history, "còn son đỏ không")
	require.NoError(t, err)
	assert.Equal(t, "Dạ shop còn hàng ạ", reply)

	// System prompt đi riêng, không nằm trong contents
	require.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "system prompt", captured.SystemInstruction.Parts[0].Text)

	// History + tin nhắn mới, role map USER->user, AI/AGENT->model
	require.Len(t, captured.Contents, 4)
	assert.Equal(t, "user", captured.Contents[0].Role)
	assert.Equal(t, "model", captured.Contents[1].Role)
	assert.Equal(t, "model", captured.Contents[2].Role)
	assert.Equal(t, "user", captured.Contents[3].Role)
	assert.Equal(t, "còn son đỏ không", captured.Contents[3].Parts[0].Text)
}

func TestGeminiReply_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(geminiOKResponse("quá muộn"))
	}))
	defer srv.Close()

	responder := NewGeminiResponder(geminiConfig(srv.URL, 5*time.Second), logger.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := responder.Reply(ctx, "", nil, "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAiUnavailable)
}

func TestGeminiReply_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	responder := NewGeminiResponder(geminiConfig(srv.URL, 5*time.Second), logger.NewNop())

	_, err := responder.Reply(context.Background(), "", nil, "hi")
	assert.ErrorIs(t, err, apperrors.ErrAiUnavailable)
}

func TestGeminiReply_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Safety block: 200 nhưng không có candidates
		json.NewEncoder(w).Encode(map[string]interface{}{"candidates": []interface{}{}})
	}))
	defer srv.Close()

	responder := NewGeminiResponder(geminiConfig(srv.URL, 5*time.Second), logger.NewNop())

	_, err := responder.Reply(context.Background(), "", nil, "hi")
	assert.ErrorIs(t, err, apperrors.ErrAiUnavailable)
}

func TestGeminiReply_TransportError(t *testing.T) {
	// Server đóng ngay - connection refused
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	responder := NewGeminiResponder(geminiConfig(srv.URL, time.Second), logger.NewNop())

	_, err := responder.Reply(context.Background(), "", nil, "hi")
	assert.ErrorIs(t, err, apperrors.ErrAiUnavailable)
}
