// Package classroom wires the poll, presence and chat services to the
// websocket hub. A Room is the single process-wide session registry: every
// state change goes through one of its methods, which persist first and then
// broadcast.
package classroom

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"classroom-poll-backend/internal/models"
	"classroom-poll-backend/internal/services"
	"classroom-poll-backend/internal/ws"

	"gorm.io/gorm"
)

const displacedMessage = "Another teacher session has started. You have been disconnected."

type Options struct {
	Clock            services.Clock
	TickInterval     time.Duration
	PresenceTTL      time.Duration
	Stateless        bool
	ChatHistoryLimit int
}

type Room struct {
	hub       *ws.Hub
	polls     *services.PollService
	presence  *services.PresenceService
	chat      *services.ChatService
	countdown *services.Countdown

	// serializes cancel, create and start so two creates never leave two timers
	createMu sync.Mutex
}

func New(db *gorm.DB, opts Options) *Room {
	r := &Room{
		hub:      ws.NewHub(),
		polls:    services.NewPollService(db, opts.Clock),
		presence: services.NewPresenceService(db, opts.Clock, opts.PresenceTTL, opts.Stateless),
		chat:     services.NewChatService(db, opts.Clock, opts.ChatHistoryLimit),
	}
	r.countdown = services.NewCountdown(opts.TickInterval, r.onTick, r.onEnd)
	return r
}

func (r *Room) Hub() *ws.Hub                        { return r.hub }
func (r *Room) Polls() *services.PollService        { return r.polls }
func (r *Room) Presence() *services.PresenceService { return r.presence }
func (r *Room) Chat() *services.ChatService         { return r.chat }
func (r *Room) Countdown() *services.Countdown      { return r.countdown }

// Close stops the countdown and disconnects every client.
func (r *Room) Close() {
	r.createMu.Lock()
	defer r.createMu.Unlock()

	r.countdown.Cancel()
	r.hub.Close()
	slog.Info("room closed")
}

// Resume restarts the countdown for a poll that is still active in storage,
// e.g. after a process restart.
func (r *Room) Resume(ctx context.Context) error {
	r.createMu.Lock()
	defer r.createMu.Unlock()
	return r.resume(ctx)
}

func (r *Room) resume(ctx context.Context) error {
	if r.countdown.Running() {
		return nil
	}
	state, err := r.polls.ActivePollState(ctx)
	if err != nil || state == nil || *state.Remaining <= 0 {
		return err
	}
	if err := r.countdown.Start(state.ID, *state.Remaining); err != nil {
		return err
	}
	slog.Info("countdown resumed", "poll_id", state.ID, "remaining", *state.Remaining)
	return nil
}

func (r *Room) onTick(_ string, remaining int) {
	r.hub.Broadcast(ws.TimerTick{Remaining: remaining})
}

func (r *Room) onEnd(pollID string) {
	r.hub.Broadcast(ws.PollEnded{})
	slog.Info("poll ended", "poll_id", pollID)
}

// Join registers a participant. connID is empty for callers without a live
// connection. Teachers displaced by this join get an error event and are
// disconnected.
func (r *Room) Join(ctx context.Context, connID, name, role string) (*services.JoinResult, error) {
	res, err := r.presence.Join(ctx, connID, name, role)
	if err != nil {
		return nil, err
	}

	for _, d := range res.Displaced {
		for _, c := range r.hub.FindByKey(d.ConnectionID) {
			c.Send(ws.ErrorEvent{Message: displacedMessage})
			r.hub.Disconnect(c.ID)
		}
	}

	r.broadcastParticipants(ctx)
	return res, nil
}

// Sync sends a freshly joined client the chat history and, when a poll is
// running, the poll with its tally and the seconds left.
func (r *Room) Sync(ctx context.Context, c *ws.Client) error {
	history, err := r.chat.History(ctx)
	if err != nil {
		return err
	}
	c.Send(ws.ChatHistory(history))

	state, err := r.polls.ActivePollState(ctx)
	if err != nil || state == nil {
		return err
	}
	c.Send(ws.NewPoll(*state))
	c.Send(ws.TimerTick{Remaining: *state.Remaining})
	return nil
}

// Leave drops a participant once no connection is left under its key.
func (r *Room) Leave(ctx context.Context, key string) error {
	if len(r.hub.FindByKey(key)) > 0 {
		return nil
	}
	if err := r.presence.Leave(ctx, key); err != nil {
		return err
	}
	r.broadcastParticipants(ctx)
	return nil
}

func (r *Room) Heartbeat(ctx context.Context, connID, name, role string) (*models.Participant, error) {
	return r.presence.Heartbeat(ctx, connID, name, role)
}

func (r *Room) Participants(ctx context.Context) ([]models.Participant, error) {
	return r.presence.List(ctx)
}

func (r *Room) SendMessage(ctx context.Context, user, text string) (*models.ChatMessage, error) {
	msg, err := r.chat.Post(ctx, user, text)
	if err != nil {
		return nil, err
	}
	r.hub.Broadcast(ws.NewMessage(*msg))
	return msg, nil
}

// CreatePoll replaces the running poll. The old countdown is cancelled before
// the new poll is written and resumed if the write fails.
func (r *Room) CreatePoll(ctx context.Context, in services.CreatePollInput) (*models.EnrichedPoll, error) {
	r.createMu.Lock()
	defer r.createMu.Unlock()

	r.countdown.Cancel()

	poll, err := r.polls.CreatePoll(ctx, in)
	if err != nil {
		if rerr := r.resume(ctx); rerr != nil {
			slog.Error("resume countdown", "error", rerr)
		}
		return nil, err
	}

	// the poll is live from here on; a failed tally must not leave it untimed
	enriched, err := r.polls.GetEnrichedPoll(ctx, poll)
	if err != nil {
		slog.Error("tally new poll", "poll_id", poll.ID, "error", err)
		fresh := services.Untallied(*poll)
		enriched = &fresh
	}
	r.hub.Broadcast(ws.NewPoll(*enriched))

	if err := r.countdown.Start(poll.ID, poll.Duration); err != nil {
		return nil, err
	}
	return enriched, nil
}

// SubmitVote records a vote, acknowledges it to the voter's connection and
// broadcasts the new tally.
func (r *Room) SubmitVote(ctx context.Context, connID, pollID, studentName, optionID string) (*models.EnrichedPoll, error) {
	vote, err := r.polls.SubmitVote(ctx, pollID, studentName, optionID)
	if err != nil {
		return nil, err
	}
	if connID != "" {
		r.hub.Send(connID, ws.VoteAck{PollID: vote.PollID, OptionID: vote.OptionID})
	}

	poll, err := r.polls.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	enriched, err := r.polls.GetEnrichedPoll(ctx, poll)
	if err != nil {
		return nil, err
	}
	r.hub.Broadcast(ws.VoteUpdate(*enriched))
	return enriched, nil
}

// Kick removes a participant and disconnects every connection it holds.
func (r *Room) Kick(ctx context.Context, key string) (*models.Participant, error) {
	p, err := r.presence.Kick(ctx, key)
	if err != nil {
		return nil, err
	}
	for _, c := range r.hub.FindByKey(key) {
		c.Send(ws.Kicked{})
		r.hub.Disconnect(c.ID)
	}
	r.broadcastParticipants(ctx)
	return p, nil
}

// Sweep evicts stale participants, trims the chat log and deactivates expired
// polls. The roster is rebroadcast only if someone was evicted.
func (r *Room) Sweep(ctx context.Context) error {
	evicted, err := r.presence.Sweep(ctx)
	if err != nil {
		return err
	}
	if evicted > 0 {
		r.broadcastParticipants(ctx)
	}
	if _, err := r.chat.Prune(ctx); err != nil {
		return err
	}
	_, err = r.polls.GetActivePoll(ctx)
	return err
}

func (r *Room) broadcastParticipants(ctx context.Context) {
	list, err := r.presence.List(ctx)
	if err != nil {
		slog.Error("list participants", "error", err)
		return
	}
	r.hub.Broadcast(ws.ParticipantsUpdate(list))
}
