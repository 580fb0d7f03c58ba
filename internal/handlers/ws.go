package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"classroom-poll-backend/internal/classroom"
	"classroom-poll-backend/internal/models"
	"classroom-poll-backend/internal/services"
	"classroom-poll-backend/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const eventTimeout = 10 * time.Second

type WSHandler struct {
	room *classroom.Room
}

func NewWSHandler(room *classroom.Room) *WSHandler {
	return &WSHandler{room: room}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type joinPayload struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type messagePayload struct {
	Text string `json:"text"`
}

type votePayload struct {
	PollID      string `json:"pollId"`
	StudentName string `json:"studentName"`
	OptionID    string `json:"optionId"`
}

type kickPayload struct {
	ID string `json:"id"`
}

func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade error", "error", err)
		return
	}

	client := ws.NewClient(uuid.NewString(), conn)
	hub := h.room.Hub()
	hub.Register(client)
	go client.WritePump()

	client.ReadPump(
		func(env ws.Envelope) { h.dispatch(client, env) },
		func() { h.touch(client) },
	)

	hub.Unregister(client)
	if key, _, _, ok := client.Identity(); ok {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		if err := h.room.Leave(ctx, key); err != nil {
			slog.Error("leave", "client", client.ID, "error", err)
		}
	}
}

func (h *WSHandler) touch(client *ws.Client) {
	key, _, _, ok := client.Identity()
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	if err := h.room.Presence().Touch(ctx, key); err != nil {
		slog.Warn("presence touch", "client", client.ID, "error", err)
	}
}

func (h *WSHandler) dispatch(client *ws.Client, env ws.Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	var err error
	switch env.Type {
	case ws.TypeJoin:
		err = h.join(ctx, client, env.Data)
	case ws.TypeSendMessage:
		err = h.sendMessage(ctx, client, env.Data)
	case ws.TypeCreatePoll:
		err = h.createPoll(ctx, client, env.Data)
	case ws.TypeSubmitVote:
		err = h.submitVote(ctx, client, env.Data)
	case ws.TypeKickParticipant:
		err = h.kick(ctx, client, env.Data)
	default:
		client.Send(ws.ErrorEvent{Message: "unknown event type: " + env.Type})
		return
	}

	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			slog.Error("ws event failed", "client", client.ID, "type", env.Type, "error", err)
		}
		client.Send(ws.ErrorEvent{Message: publicMessage(err)})
	}
}

func (h *WSHandler) join(ctx context.Context, client *ws.Client, data json.RawMessage) error {
	var p joinPayload
	if err := decode(data, &p); err != nil {
		return err
	}

	prevKey, _, _, joined := client.Identity()
	res, err := h.room.Join(ctx, client.ID, p.Name, p.Role)
	if err != nil {
		return err
	}
	key := res.Participant.ConnectionID
	client.SetIdentity(key, res.Participant.Name, res.Participant.Role)

	// rejoining under a new name in stateless mode leaves the old key behind
	if joined && prevKey != key {
		if err := h.room.Leave(ctx, prevKey); err != nil {
			return err
		}
	}
	return h.room.Sync(ctx, client)
}

func (h *WSHandler) sendMessage(ctx context.Context, client *ws.Client, data json.RawMessage) error {
	_, name, _, ok := client.Identity()
	if !ok {
		return errNotJoined
	}
	var p messagePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err := h.room.SendMessage(ctx, name, p.Text)
	return err
}

func (h *WSHandler) createPoll(ctx context.Context, client *ws.Client, data json.RawMessage) error {
	if err := requireRole(client, models.RoleTeacher); err != nil {
		return err
	}
	var in services.CreatePollInput
	if err := decode(data, &in); err != nil {
		return err
	}
	_, err := h.room.CreatePoll(ctx, in)
	return err
}

func (h *WSHandler) submitVote(ctx context.Context, client *ws.Client, data json.RawMessage) error {
	if err := requireRole(client, models.RoleStudent); err != nil {
		return err
	}
	var p votePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if strings.TrimSpace(p.StudentName) == "" {
		_, p.StudentName, _, _ = client.Identity()
	}
	_, err := h.room.SubmitVote(ctx, client.ID, p.PollID, p.StudentName, p.OptionID)
	return err
}

func (h *WSHandler) kick(ctx context.Context, client *ws.Client, data json.RawMessage) error {
	if err := requireRole(client, models.RoleTeacher); err != nil {
		return err
	}
	var p kickPayload
	if err := decode(data, &p); err != nil {
		// a bare id string is accepted too
		if jerr := json.Unmarshal(data, &p.ID); jerr != nil {
			return err
		}
	}
	if p.ID == "" {
		return &services.ValidationError{Field: "id", Message: "must not be empty"}
	}
	_, err := h.room.Kick(ctx, p.ID)
	return err
}

var errNotJoined = &services.ValidationError{Message: "join the room first"}

func requireRole(client *ws.Client, role string) error {
	_, _, r, ok := client.Identity()
	if !ok {
		return errNotJoined
	}
	if r != role {
		return &services.ValidationError{Message: "only a " + role + " may do this"}
	}
	return nil
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return &services.ValidationError{Message: "missing payload"}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &services.ValidationError{Message: "malformed payload"}
	}
	return nil
}
