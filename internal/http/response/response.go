// Package response writes JSON bodies and the shared error envelope.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bonusfinder-backend/internal/platform/apierr"
	"github.com/yungbote/bonusfinder-backend/internal/platform/ctxutil"
	"github.com/yungbote/bonusfinder-backend/internal/platform/logger"
)

// internalMessage replaces the text of 5xx errors, which may carry SQL or
// driver details.
const internalMessage = "internal error"

type APIError struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func envelope(c *gin.Context, code, msg string) ErrorEnvelope {
	e := APIError{Message: msg, Code: code}
	if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
		e.RequestID = td.RequestID
	}
	return ErrorEnvelope{Error: e}
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	if status >= http.StatusInternalServerError {
		msg = internalMessage
	}
	c.JSON(status, envelope(c, code, msg))
}

// AbortError writes the envelope and stops the handler chain.
func AbortError(c *gin.Context, status int, code string, msg string) {
	c.AbortWithStatusJSON(status, envelope(c, code, msg))
}

// RespondServiceError maps a service error onto its HTTP status. Only
// server-side failures are logged.
func RespondServiceError(c *gin.Context, log *logger.Logger, fallbackCode string, err error) {
	ae := apierr.FromError(err, fallbackCode)
	if ae.Status >= http.StatusInternalServerError && log != nil {
		log.Error("Request failed", append([]interface{}{"route", c.FullPath(), "code", ae.Code, "error", err},
			ctxutil.LogFields(c.Request.Context())...)...)
		_ = c.Error(err)
	}
	RespondError(c, ae.Status, ae.Code, ae.Err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}
