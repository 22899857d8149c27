package handlers

import (
	"net/http"
	"time"

	"storechat-gin/internal/dto"
	apperrors "storechat-gin/internal/errors"
	"storechat-gin/internal/middleware"
	"storechat-gin/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ===========================================================================
// Auth Handler
// Handle authentication endpoints: login, refresh, me, logout
// Agent đăng nhập theo store slug - email chỉ unique trong store
// ===========================================================================

// AuthHandler xử lý các endpoint auth
type AuthHandler struct {
	authService services.AuthService
	logger      *zap.Logger
}

// NewAuthHandler tạo auth handler mới
func NewAuthHandler(
	authService services.AuthService,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// AgentResponse agent data (không có password hash)
type AgentResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	StoreID     string     `json:"store_id"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func agentResponse(result *services.LoginResult) *AgentResponse {
	return &AgentResponse{
		ID:          result.Agent.ID.String(),
		Email:       result.Agent.Email,
		Name:        result.Agent.Name,
		Role:        string(result.Agent.Role),
		StoreID:     result.Agent.StoreID.String(),
		LastLoginAt: result.Agent.LastLoginAt,
	}
}

// setAuthCookies ghi token pair vào httpOnly cookies + CSRF cookie cho JS
func (h *AuthHandler) setAuthCookies(c *gin.Context, result *services.LoginResult) {
	maxAge := int(time.Until(result.Tokens.ExpiresAt).Seconds())

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("access_token", result.Tokens.AccessToken, maxAge, "/", "", false, true)
	c.SetCookie("refresh_token", result.Tokens.RefreshToken, 604800, "/", "", false, true)

	csrfToken, err := middleware.GenerateCSRFToken()
	if err != nil {
		h.logger.Error("generate csrf token failed", zap.Error(err))
	} else {
		middleware.SetCSRFCookie(c, csrfToken)
	}
}

// Login đăng nhập agent
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("INVALID_INPUT", err.Error()))
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.StoreSlug, req.Email, req.Password)
	if err != nil {
		if err == apperrors.ErrInvalidCredentials {
			c.JSON(http.StatusUnauthorized, dto.Error("INVALID_CREDENTIALS", "Email hoặc mật khẩu không đúng"))
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	h.setAuthCookies(c, result)
	c.JSON(http.StatusOK, dto.Success(agentResponse(result)))
}

// Refresh làm mới tokens
// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	// Ưu tiên cookie, fallback body cho API clients
	refreshToken, err := c.Cookie("refresh_token")
	if err != nil || refreshToken == "" {
		var req dto.RefreshRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			c.JSON(http.StatusUnauthorized, dto.Error("NO_TOKEN", "Refresh token không tồn tại"))
			return
		}
		refreshToken = req.RefreshToken
	}

	result, err := h.authService.RefreshTokens(c.Request.Context(), refreshToken)
	if err != nil {
		if err == apperrors.ErrTokenExpired {
			c.SetCookie("access_token", "", -1, "/", "", false, true)
			c.SetCookie("refresh_token", "", -1, "/", "", false, true)
			c.JSON(http.StatusUnauthorized, dto.Error("TOKEN_EXPIRED", "Refresh token đã hết hạn"))
			return
		}
		if err == apperrors.ErrInvalidToken {
			c.JSON(http.StatusUnauthorized, dto.Error("INVALID_TOKEN", "Refresh token không hợp lệ"))
			return
		}
		h.logger.Error("refresh failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.Error("INTERNAL_ERROR", "Đã có lỗi xảy ra"))
		return
	}

	h.setAuthCookies(c, result)
	c.JSON(http.StatusOK, dto.Success(agentResponse(result)))
}

// Me lấy thông tin agent hiện tại
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	agentID, ok := middleware.GetAgentID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Chưa đăng nhập"))
		return
	}

	agent, err := h.authService.GetAgentByID(c.Request.Context(), agentID)
	if err != nil {
		c.JSON(http.StatusNotFound, dto.Error("NOT_FOUND", "Agent không tồn tại"))
		return
	}

	c.JSON(http.StatusOK, dto.Success(agentResponse(&services.LoginResult{Agent: agent})))
}

// Logout đăng xuất - clear cookies
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetCookie("access_token", "", -1, "/", "", false, true)
	c.SetCookie("refresh_token", "", -1, "/", "", false, true)
	c.SetCookie("csrf_token", "", -1, "/", "", false, false)

	c.JSON(http.StatusOK, dto.Success(gin.H{"message": "Đăng xuất thành công"}))
}

// ===========================================================================
// Route Registration
// ===========================================================================

// RegisterRoutes đăng ký routes cho auth
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	auth := rg.Group("/auth")
	{
		// Public routes (không cần auth)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)

		// Protected routes (cần auth)
		auth.GET("/me", authMiddleware, h.Me)
		auth.POST("/logout", authMiddleware, h.Logout)
	}
}
