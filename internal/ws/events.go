package ws

import (
	"encoding/json"

	"classroom-poll-backend/internal/models"
)

// Event names on the wire.
const (
	TypeJoin               = "join"
	TypeParticipantsUpdate = "participants_update"
	TypeChatHistory        = "chat_history"
	TypeSendMessage        = "send_message"
	TypeNewMessage         = "new_message"
	TypeCreatePoll         = "create_poll"
	TypeNewPoll            = "new_poll"
	TypeTimerTick          = "timer_tick"
	TypeSubmitVote         = "submit_vote"
	TypeVoteAck            = "vote_ack"
	TypeVoteUpdate         = "vote_update"
	TypePollEnded          = "poll_ended"
	TypeKickParticipant    = "kick_participant"
	TypeKicked             = "kicked"
	TypeError              = "error"
)

// Event is a server-to-client message. Each event type has its own payload
// type; the envelope's type tag comes from EventType.
type Event interface {
	EventType() string
}

type ParticipantsUpdate []models.Participant

type ChatHistory []models.ChatMessage

type NewMessage models.ChatMessage

type NewPoll models.EnrichedPoll

type VoteUpdate models.EnrichedPoll

type TimerTick struct {
	Remaining int `json:"remaining"`
}

type VoteAck struct {
	PollID   string `json:"pollId"`
	OptionID string `json:"optionId"`
}

type PollEnded struct{}

type Kicked struct{}

type ErrorEvent struct {
	Message string `json:"message"`
}

func (ParticipantsUpdate) EventType() string { return TypeParticipantsUpdate }
func (ChatHistory) EventType() string        { return TypeChatHistory }
func (NewMessage) EventType() string         { return TypeNewMessage }
func (NewPoll) EventType() string            { return TypeNewPoll }
func (VoteUpdate) EventType() string         { return TypeVoteUpdate }
func (TimerTick) EventType() string          { return TypeTimerTick }
func (VoteAck) EventType() string            { return TypeVoteAck }
func (PollEnded) EventType() string          { return TypePollEnded }
func (Kicked) EventType() string             { return TypeKicked }
func (ErrorEvent) EventType() string         { return TypeError }

// Envelope is the frame format in both directions. Inbound frames keep Data
// raw until the dispatcher knows which payload to decode.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

func Encode(evt Event) ([]byte, error) {
	msg := outbound{Type: evt.EventType()}
	switch evt.(type) {
	case PollEnded, Kicked:
		// signal-only events carry no payload
	default:
		msg.Data = evt
	}
	return json.Marshal(msg)
}
