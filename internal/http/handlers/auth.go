package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bonusfinder-backend/internal/http/response"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
	"github.com/yungbote/bonusfinder-backend/internal/services"
)

type AuthHandler struct {
	log         *logger.Logger
	authService services.AuthService
	// allowRegister gates open self-registration.
	allowRegister bool
}

func NewAuthHandler(log *logger.Logger, authService services.AuthService, allowRegister bool) *AuthHandler {
	return &AuthHandler{log: log.With("handler", "AuthHandler"), authService: authService, allowRegister: allowRegister}
}

// POST /api/register
func (ah *AuthHandler) Register(c *gin.Context) {
	if !ah.allowRegister {
		response.RespondError(c, http.StatusForbidden, "registration_closed", nil)
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	// Self-registration always yields the default role.
	u, err := ah.authService.Register(requestDBC(c), req.Username, req.Password, "")
	if err != nil {
		response.RespondServiceError(c, ah.log, "registration_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"user": u})
}

// POST /api/login
func (ah *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
	}
	if err := c.ShouldBind(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := ah.authService.Login(requestDBC(c), req.Username, req.Password)
	if err != nil {
		response.RespondServiceError(c, ah.log, "login_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"access_token": res.AccessToken,
		"expires_in":   int(ah.authService.AccessTTL().Seconds()),
		"expires_at":   res.ExpiresAt,
		"user":         res.User,
	})
}
