package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	userdomain "github.com/yungbote/bonusfinder-backend/internal/domain/user"
	"github.com/yungbote/bonusfinder-backend/internal/http/response"
	"github.com/yungbote/bonusfinder-backend/internal/platform/ctxutil"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
	"github.com/yungbote/bonusfinder-backend/internal/services"
)

const HeaderScrapeToken = "X-Scrape-Token"

type AuthMiddleware struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), authService: authService}
}

// OptionalAuth attaches the caller when a valid token is present. A missing
// or bad token leaves the request anonymous.
func (am *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := extractToken(c); tokenString != "" {
			if err := am.attach(c, tokenString); err != nil {
				am.log.Debug("Ignoring invalid token on optional route", "path", c.FullPath(), "error", err)
			}
		}
		c.Next()
	}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			response.AbortError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}
		if err := am.attach(c, tokenString); err != nil {
			response.AbortError(c, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func (am *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		if rd == nil || rd.Role != userdomain.RoleAdmin {
			response.AbortError(c, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		c.Next()
	}
}

func (am *AuthMiddleware) attach(c *gin.Context, tokenString string) error {
	u, err := am.authService.ParseToken(dbctx.Context{Ctx: c.Request.Context()}, tokenString)
	if err != nil {
		return err
	}
	ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
	})
	c.Request = c.Request.WithContext(ctx)
	return nil
}

// RequireScrapeToken guards the remote ingestion endpoint with a shared
// secret. An empty configured token disables the endpoint.
func RequireScrapeToken(token string) gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(token))
	return func(c *gin.Context) {
		if len(expected) == 0 {
			response.AbortError(c, http.StatusForbidden, "forbidden", "scrape endpoint disabled")
			return
		}
		got := []byte(strings.TrimSpace(c.GetHeader(HeaderScrapeToken)))
		if subtle.ConstantTimeCompare(got, expected) != 1 {
			response.AbortError(c, http.StatusUnauthorized, "unauthorized", "invalid scrape token")
			return
		}
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	if cookie, err := c.Cookie("access_token"); err == nil {
		return cookie
	}
	return ""
}
