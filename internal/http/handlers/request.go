package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/bonusfinder-backend/internal/http/response"
	"github.com/yungbote/bonusfinder-backend/internal/platform/ctxutil"
	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
)

func requestDBC(c *gin.Context) dbctx.Context {
	return dbctx.Context{Ctx: c.Request.Context()}
}

// requestUserID is nil for anonymous callers.
func requestUserID(c *gin.Context) *uuid.UUID {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		return nil
	}
	id := rd.UserID
	return &id
}

// mustUserID is for routes behind RequireAuth.
func mustUserID(c *gin.Context) (uuid.UUID, bool) {
	id := requestUserID(c)
	if id == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return uuid.Nil, false
	}
	return *id, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_"+name, err)
		return uuid.Nil, false
	}
	return id, true
}

func isXHR(c *gin.Context) bool {
	return strings.EqualFold(c.GetHeader("X-Requested-With"), "XMLHttpRequest")
}
