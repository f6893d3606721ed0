package http

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/layer-3/questproof/service"
)

const sessionKey = "session"

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if len(auth) < 8 || !strings.EqualFold(auth[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}

// SessionMiddleware resolves the bearer token into a session
func SessionMiddleware(authService *service.AuthService, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			badRequest(c, "missing bearer token")
			return
		}

		session, err := authService.Session(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, logger, err)
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

// RequestLogger logs one line per request
func RequestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("Request handled")
		case c.Writer.Status() >= 400:
			entry.Info("Request handled")
		default:
			entry.Debug("Request handled")
		}
	}
}
