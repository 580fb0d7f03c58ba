package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"classroom-poll-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func statusFor(err error) int {
	switch {
	case services.IsValidation(err):
		return http.StatusBadRequest
	case services.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInactivePoll),
		errors.Is(err, services.ErrExpiredPoll),
		errors.Is(err, services.ErrDuplicateVote):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides storage failures from clients.
func publicMessage(err error) string {
	if statusFor(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.Error(err)
	}
	c.JSON(status, ErrorResponse{Error: publicMessage(err)})
}
