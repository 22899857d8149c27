package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"storechat-gin/internal/dto"

	"github.com/gin-gonic/gin"
)

// ===========================================================================
// CSRF Middleware
// Double Submit Cookie pattern cho CSRF protection
// Token được set trong cookie (readable) và phải match với header
//
// Webhook và widget endpoints được exempt: Facebook/Zalo không gửi CSRF
// token, còn widget chạy cross-origin trên website của store
// ===========================================================================

const (
	CSRFCookieName  = "csrf_token"
	CSRFHeaderName  = "X-CSRF-Token"
	CSRFTokenLength = 32
)

// GenerateCSRFToken tạo random CSRF token
func GenerateCSRFToken() (string, error) {
	bytes := make([]byte, CSRFTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// SetCSRFCookie set CSRF token cookie (readable bởi JS)
func SetCSRFCookie(c *gin.Context, token string) {
	// Non-httpOnly để FE có thể đọc và gửi trong header
	c.SetCookie(
		CSRFCookieName,
		token,
		86400*7, // 7 days
		"/",
		"",    // domain empty cho localhost
		false, // secure (production nên true)
		false, // httpOnly = false để JS đọc được
	)
}

// CSRF validates CSRF token cho state-changing requests
// Skip: GET/HEAD/OPTIONS và các path trong exemptPaths
func CSRF(exemptPaths []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method == "GET" || method == "HEAD" || method == "OPTIONS" {
			c.Next()
			return
		}

		path := c.Request.URL.Path
		for _, exempt := range exemptPaths {
			if strings.HasPrefix(path, exempt) {
				c.Next()
				return
			}
		}

		cookieToken, err := c.Cookie(CSRFCookieName)
		if err != nil || cookieToken == "" {
			c.JSON(http.StatusForbidden, dto.Error("CSRF_MISSING", "CSRF token required"))
			c.Abort()
			return
		}

		headerToken := c.GetHeader(CSRFHeaderName)
		if headerToken == "" {
			c.JSON(http.StatusForbidden, dto.Error("CSRF_MISSING", "CSRF token header required"))
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) != 1 {
			c.JSON(http.StatusForbidden, dto.Error("CSRF_INVALID", "CSRF token mismatch"))
			c.Abort()
			return
		}

		c.Next()
	}
}
