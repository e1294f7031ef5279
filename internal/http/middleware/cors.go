package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
}

// CORS allows the configured origins, falling back to local dev servers. The
// browser extension posts URL proposals cross-origin with a bearer token.
func CORS(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		origins = defaultOrigins
	}
	return cors.New(cors.Config{
		AllowOrigins:           origins,
		AllowMethods:           []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:           []string{"Authorization", "Content-Type", "X-Requested-With", HeaderScrapeToken, HeaderRequestID},
		ExposeHeaders:          []string{HeaderTraceID, HeaderRequestID},
		AllowCredentials:       true,
		AllowBrowserExtensions: true,
	})
}
