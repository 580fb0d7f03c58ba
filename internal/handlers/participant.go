package handlers

import (
	"net/http"

	"classroom-poll-backend/internal/classroom"
	"classroom-poll-backend/internal/models"
	"classroom-poll-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type ParticipantHandler struct {
	room        *classroom.Room
	authService *services.AuthService
}

func NewParticipantHandler(room *classroom.Room, authService *services.AuthService) *ParticipantHandler {
	return &ParticipantHandler{room: room, authService: authService}
}

type JoinRequest struct {
	Name string `json:"name" binding:"required,max=100"`
	Role string `json:"role" binding:"required,oneof=teacher student"`
}

type JoinResponse struct {
	Participant models.Participant `json:"participant"`
	Token       string             `json:"token"`
}

// HeartbeatRequest carries the participant id when the caller has one; without
// it the participant is keyed by role and name.
type HeartbeatRequest struct {
	ID   string `json:"id"`
	Name string `json:"name" binding:"required,max=100"`
	Role string `json:"role" binding:"required,oneof=teacher student"`
}

// Join godoc
// @Summary      Join the room
// @Description  Registers a participant by name and role and returns a signed token
// @Tags         participants
// @Accept       json
// @Produce      json
// @Param        request body JoinRequest true "Name and role"
// @Success      200 {object} JoinResponse
// @Failure      400 {object} ErrorResponse
// @Router       /api/join [post]
func (h *ParticipantHandler) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	res, err := h.room.Join(c.Request.Context(), "", req.Name, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.authService.GenerateToken(res.Participant)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, JoinResponse{Participant: res.Participant, Token: token})
}

// List godoc
// @Summary      List current participants
// @Tags         participants
// @Produce      json
// @Success      200 {array} models.Participant
// @Router       /api/participants [get]
func (h *ParticipantHandler) List(c *gin.Context) {
	list, err := h.room.Participants(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Heartbeat godoc
// @Summary      Refresh a participant's last-seen time
// @Tags         participants
// @Accept       json
// @Produce      json
// @Param        request body HeartbeatRequest true "Participant"
// @Success      200 {object} models.Participant
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/heartbeat [post]
func (h *ParticipantHandler) Heartbeat(c *gin.Context) {
	var req HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	p, err := h.room.Heartbeat(c.Request.Context(), req.ID, req.Name, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Kick godoc
// @Summary      Remove a participant and close its connections
// @Tags         participants
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Participant ID"
// @Success      200 {object} models.Participant
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/participants/{id}/kick [post]
func (h *ParticipantHandler) Kick(c *gin.Context) {
	p, err := h.room.Kick(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
