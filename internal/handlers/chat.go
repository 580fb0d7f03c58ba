package handlers

import (
	"net/http"

	"classroom-poll-backend/internal/classroom"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	room *classroom.Room
}

func NewChatHandler(room *classroom.Room) *ChatHandler {
	return &ChatHandler{room: room}
}

type ChatRequest struct {
	User string `json:"user" binding:"required"`
	Text string `json:"text" binding:"required"`
}

// History godoc
// @Summary      Get recent chat messages, oldest first
// @Tags         chat
// @Produce      json
// @Success      200 {array} models.ChatMessage
// @Router       /api/chat [get]
func (h *ChatHandler) History(c *gin.Context) {
	msgs, err := h.room.Chat().History(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// Post godoc
// @Summary      Post a chat message
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        request body ChatRequest true "Message"
// @Success      201 {object} models.ChatMessage
// @Failure      400 {object} ErrorResponse
// @Router       /api/chat [post]
func (h *ChatHandler) Post(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	msg, err := h.room.SendMessage(c.Request.Context(), req.User, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
