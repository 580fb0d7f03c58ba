package handlers

import (
	"net/http"

	"classroom-poll-backend/internal/classroom"
	"classroom-poll-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type PollHandler struct {
	room *classroom.Room
}

func NewPollHandler(room *classroom.Room) *PollHandler {
	return &PollHandler{room: room}
}

type VoteRequest struct {
	PollID      string `json:"pollId" binding:"required"`
	StudentName string `json:"studentName" binding:"required,max=100"`
	OptionID    string `json:"optionId" binding:"required"`
}

// ActivePoll godoc
// @Summary      Get the active poll
// @Description  Returns the running poll with its tally and the seconds left, or null
// @Tags         polls
// @Produce      json
// @Success      200 {object} models.EnrichedPoll
// @Failure      500 {object} ErrorResponse
// @Router       /api/active-poll [get]
func (h *PollHandler) ActivePoll(c *gin.Context) {
	state, err := h.room.Polls().ActivePollState(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// History godoc
// @Summary      List every poll, newest first, with tallies
// @Tags         polls
// @Produce      json
// @Success      200 {array} models.EnrichedPoll
// @Router       /api/history [get]
func (h *PollHandler) History(c *gin.Context) {
	history, err := h.room.Polls().GetPollHistory(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// CreatePoll godoc
// @Summary      Start a poll
// @Description  Deactivates the running poll and starts a new countdown
// @Tags         polls
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body services.CreatePollInput true "Poll"
// @Success      201 {object} models.EnrichedPoll
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Router       /api/polls [post]
func (h *PollHandler) CreatePoll(c *gin.Context) {
	var req services.CreatePollInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	poll, err := h.room.CreatePoll(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, poll)
}

// Vote godoc
// @Summary      Cast a vote
// @Tags         polls
// @Accept       json
// @Produce      json
// @Param        request body VoteRequest true "Vote"
// @Success      201 {object} models.EnrichedPoll
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /api/vote [post]
func (h *PollHandler) Vote(c *gin.Context) {
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	poll, err := h.room.SubmitVote(c.Request.Context(), "", req.PollID, req.StudentName, req.OptionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, poll)
}
