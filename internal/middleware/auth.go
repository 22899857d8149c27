package middleware

import (
	"net/http"
	"strings"

	"storechat-gin/internal/auth"
	"storechat-gin/internal/dto"
	"storechat-gin/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ===========================================================================
// Auth Middleware
// Protect agent-facing routes với JWT authentication
// Webhook/widget routes KHÔNG đi qua middleware này - chúng authenticate
// channel (verify token, signature) chứ không phải end customer
// ===========================================================================

// Context keys cho auth data
const (
	ContextKeyAgentID   = "agent_id"
	ContextKeyStoreID   = "store_id"
	ContextKeyAgentRole = "agent_role"
	ContextKeyClaims    = "claims"
)

// AuthMiddleware tạo middleware để verify JWT from cookie or header
func AuthMiddleware(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		// 1. First try to get token from cookie (httpOnly)
		if cookie, err := c.Cookie("access_token"); err == nil && cookie != "" {
			tokenString = cookie
		}

		// 2. Fallback to Authorization header (for API clients)
		if tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader != "" {
				parts := strings.Split(authHeader, " ")
				if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
					tokenString = parts[1]
				}
			}
		}

		// 3. No token found
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Authentication required"))
			c.Abort()
			return
		}

		// 4. Validate token
		claims, err := jwtService.ValidateAccessToken(tokenString)
		if err != nil {
			if err == auth.ErrExpiredToken {
				c.JSON(http.StatusUnauthorized, dto.Error("TOKEN_EXPIRED", "Token has expired"))
			} else {
				c.JSON(http.StatusUnauthorized, dto.Error("INVALID_TOKEN", "Invalid token"))
			}
			c.Abort()
			return
		}

		// 5. Set agent info in context
		c.Set(ContextKeyAgentID, claims.AgentID)
		c.Set(ContextKeyStoreID, claims.StoreID)
		c.Set(ContextKeyAgentRole, claims.Role)
		c.Set(ContextKeyClaims, claims)

		c.Next()
	}
}

// RequireRole middleware yêu cầu role cụ thể
func RequireRole(roles ...models.AgentRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextKeyAgentRole)
		if !exists {
			c.JSON(http.StatusForbidden, dto.Error("FORBIDDEN", "Access denied"))
			c.Abort()
			return
		}

		agentRole := role.(models.AgentRole)
		for _, r := range roles {
			if agentRole == r {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, dto.Error("FORBIDDEN", "Insufficient permissions"))
		c.Abort()
	}
}

// RequireOwner yêu cầu owner role
func RequireOwner() gin.HandlerFunc {
	return RequireRole(models.RoleOwner)
}

// ===========================================================================
// Helper functions để lấy data từ context
// ===========================================================================

// GetAgentID lấy agent ID từ context
func GetAgentID(c *gin.Context) (uuid.UUID, bool) {
	id, exists := c.Get(ContextKeyAgentID)
	if !exists {
		return uuid.Nil, false
	}
	return id.(uuid.UUID), true
}

// GetStoreID lấy store ID từ context
func GetStoreID(c *gin.Context) (uuid.UUID, bool) {
	id, exists := c.Get(ContextKeyStoreID)
	if !exists {
		return uuid.Nil, false
	}
	return id.(uuid.UUID), true
}

// GetClaims lấy toàn bộ claims từ context
func GetClaims(c *gin.Context) (*auth.Claims, bool) {
	claims, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil, false
	}
	return claims.(*auth.Claims), true
}
