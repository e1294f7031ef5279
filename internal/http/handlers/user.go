package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/bonusfinder-backend/internal/http/response"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
	"github.com/yungbote/bonusfinder-backend/internal/services"
)

type UserHandler struct {
	log         *logger.Logger
	userService services.UserService
}

func NewUserHandler(log *logger.Logger, userService services.UserService) *UserHandler {
	return &UserHandler{log: log.With("handler", "UserHandler"), userService: userService}
}

// GET /api/user/status
func (uh *UserHandler) Status(c *gin.Context) {
	st, err := uh.userService.Status(requestDBC(c), requestUserID(c))
	if err != nil {
		response.RespondServiceError(c, uh.log, "user_status_failed", err)
		return
	}
	response.RespondOK(c, st)
}

// POST /api/user/favorites/:program_id
func (uh *UserHandler) AddFavorite(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	programID, ok := uuidParam(c, "program_id")
	if !ok {
		return
	}
	if err := uh.userService.AddFavorite(requestDBC(c), userID, programID); err != nil {
		response.RespondServiceError(c, uh.log, "add_favorite_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// DELETE /api/user/favorites/:program_id
func (uh *UserHandler) RemoveFavorite(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	programID, ok := uuidParam(c, "program_id")
	if !ok {
		return
	}
	if err := uh.userService.RemoveFavorite(requestDBC(c), userID, programID); err != nil {
		response.RespondServiceError(c, uh.log, "remove_favorite_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
