package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"civicsync-engine/engine"

	"github.com/gin-gonic/gin"
)

var kindStatus = map[engine.Kind]int{
	engine.KindNotFound:            http.StatusNotFound,
	engine.KindValidation:          http.StatusBadRequest,
	engine.KindNotEligible:         http.StatusForbidden,
	engine.KindSelfUpvoteForbidden: http.StatusForbidden,
	engine.KindInvalidTransition:   http.StatusConflict,
	engine.KindAlreadyAssigned:     http.StatusConflict,
	engine.KindAlreadyUpvoted:      http.StatusConflict,
	engine.KindConflict:            http.StatusConflict,
	engine.KindUnavailable:         http.StatusServiceUnavailable,
}

// respondError writes an engine error as JSON, keeping the kind and the
// retry hint so clients can tell a lost race from a rule violation.
func respondError(c *gin.Context, err error) {
	kind := engine.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		slog.Error("unhandled error", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong", "kind": kind, "retryable": false})
		return
	}

	body := gin.H{
		"error":     err.Error(),
		"kind":      kind,
		"retryable": engine.Retryable(err),
	}
	var te *engine.TransitionError
	if errors.As(err, &te) {
		body["current"] = te.From
		body["requested"] = te.To
	}
	if status == http.StatusServiceUnavailable {
		slog.Warn("store unavailable", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": engine.KindValidation, "retryable": false})
}
