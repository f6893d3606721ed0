package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/layer-3/questproof/core"
)

var errorKinds = []struct {
	kind  error
	label string
}{
	{core.ErrValidation, "validation"},
	{core.ErrConflict, "conflict"},
	{core.ErrNotFound, "not_found"},
	{core.ErrExpired, "expired"},
	{core.ErrMismatch, "mismatch"},
	{core.ErrInvalidSignature, "invalid_signature"},
	{core.ErrInvalidSession, "invalid_session"},
	{core.ErrAnswerLength, "answer_length"},
	{core.ErrRateLimited, "rate_limited"},
}

func errorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			return k.label
		}
	}
	return "internal"
}

// abortWithError writes {message} for err. Domain errors map to 400,
// rate limiting to 429 with Retry-After, anything else to 500.
func abortWithError(c *gin.Context, logger logrus.FieldLogger, err error) {
	var rateErr *core.RateLimitError
	if errors.As(err, &rateErr) {
		c.Header("Retry-After", strconv.Itoa(rateErr.Seconds()))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": rateErr.Error()})
		return
	}

	var domainErr *core.Error
	if errors.As(err, &domainErr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": domainErr.Message})
		return
	}

	logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": message})
}
