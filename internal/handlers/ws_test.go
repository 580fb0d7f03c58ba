package handlers_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"classroom-poll-backend/internal/models"
	"classroom-poll-backend/internal/ws"

	"github.com/gorilla/websocket"
)

func TestWS_JoinSyncsLateJoiner(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	env.room.SendMessage(ctx, "Ms Smith", "welcome")
	// a long poll so the countdown is still running when the student joins
	in := twoPlusTwo(3600)
	poll, err := env.room.Polls().CreatePoll(ctx, in)
	if err != nil {
		t.Fatalf("CreatePoll failed: %v", err)
	}
	env.clock.Advance(100 * time.Second)

	student := env.dial(t)
	student.send("join", map[string]string{"name": "Alice", "role": "student"})

	f := student.expect(ws.TypeParticipantsUpdate)
	var roster []models.Participant
	json.Unmarshal(f.Data, &roster)
	if len(roster) != 1 || roster[0].Name != "Alice" {
		t.Errorf("Unexpected roster: %+v", roster)
	}

	f = student.expect(ws.TypeChatHistory)
	var history []models.ChatMessage
	json.Unmarshal(f.Data, &history)
	if len(history) != 1 || history[0].Text != "welcome" {
		t.Errorf("Unexpected chat history: %+v", history)
	}

	f = student.expect(ws.TypeNewPoll)
	var state models.EnrichedPoll
	json.Unmarshal(f.Data, &state)
	if state.ID != poll.ID {
		t.Errorf("Expected poll %s, got %s", poll.ID, state.ID)
	}

	f = student.expect(ws.TypeTimerTick)
	var tick ws.TimerTick
	json.Unmarshal(f.Data, &tick)
	if tick.Remaining != 3500 {
		t.Errorf("Expected 3500 seconds remaining, got %d", tick.Remaining)
	}
}

func TestWS_PollScenario(t *testing.T) {
	env := setupEnv(t)

	teacher := env.dial(t)
	teacher.join("Ms Smith", models.RoleTeacher)
	alice := env.dial(t)
	alice.join("Alice", models.RoleStudent)
	bob := env.dial(t)
	bob.join("Bob", models.RoleStudent)

	teacher.send("create_poll", twoPlusTwo(30))
	f := alice.expect(ws.TypeNewPoll)
	var poll models.EnrichedPoll
	json.Unmarshal(f.Data, &poll)

	vote := map[string]string{"pollId": poll.ID, "studentName": "Alice", "optionId": "2"}
	alice.send("submit_vote", vote)
	alice.expect(ws.TypeVoteAck)
	f = alice.expect(ws.TypeVoteUpdate)
	json.Unmarshal(f.Data, &poll)
	if got := tally(poll); got["1"] != 0 || got["2"] != 1 || poll.TotalVotes != 1 {
		t.Errorf("Unexpected tally after Alice: %v total=%d", got, poll.TotalVotes)
	}

	vote["optionId"] = "1"
	alice.send("submit_vote", vote)
	f = alice.expect(ws.TypeError)
	if !strings.Contains(string(f.Data), "already voted") {
		t.Errorf("Expected duplicate vote error, got %s", f.Data)
	}

	bob.send("submit_vote", map[string]string{"pollId": poll.ID, "studentName": "Bob", "optionId": "1"})
	bob.expect(ws.TypeVoteAck)
	f = bob.expect(ws.TypeVoteUpdate)
	json.Unmarshal(f.Data, &poll)
	if got := tally(poll); got["1"] != 1 || got["2"] != 1 || poll.TotalVotes != 2 {
		t.Errorf("Unexpected tally after Bob: %v total=%d", got, poll.TotalVotes)
	}

	// 30 ticks at 5ms each end the countdown well within the window below
	ended := 0
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f, err := teacher.read(time.Until(deadline))
		if err != nil {
			break
		}
		if f.Type == ws.TypePollEnded {
			ended++
			deadline = time.Now().Add(200 * time.Millisecond)
		}
	}
	if ended != 1 {
		t.Errorf("Expected exactly one poll_ended, got %d", ended)
	}

	env.clock.Advance(30 * time.Second)
	active, err := env.room.Polls().GetActivePoll(context.Background())
	if err != nil {
		t.Fatalf("GetActivePoll failed: %v", err)
	}
	if active != nil {
		t.Errorf("Expected no active poll after 30s, got %+v", active)
	}
}

func TestWS_SecondTeacherDisplacesFirst(t *testing.T) {
	env := setupEnv(t)

	first := env.dial(t)
	first.join("Ms Smith", models.RoleTeacher)
	second := env.dial(t)
	second.join("Mr Jones", models.RoleTeacher)

	f := first.expect(ws.TypeError)
	if !strings.Contains(string(f.Data), "Another teacher session has started") {
		t.Errorf("Unexpected displacement message: %s", f.Data)
	}
	for {
		if _, err := first.read(2 * time.Second); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Errorf("Expected the displaced connection to be closed, got %v", err)
			}
			break
		}
	}

	list, _ := env.room.Participants(context.Background())
	teachers := 0
	for _, p := range list {
		if p.Role == models.RoleTeacher {
			teachers++
			if p.Name != "Mr Jones" {
				t.Errorf("Expected Mr Jones to be the teacher, got %s", p.Name)
			}
		}
	}
	if teachers != 1 {
		t.Errorf("Expected exactly one teacher, got %d", teachers)
	}
}

func TestWS_Kick(t *testing.T) {
	env := setupEnv(t)

	teacher := env.dial(t)
	teacher.join("Ms Smith", models.RoleTeacher)
	alice := env.dial(t)
	alice.join("Alice", models.RoleStudent)

	id := participantID(t, env.room, "Alice")
	teacher.send("kick_participant", map[string]string{"id": id})

	alice.expect(ws.TypeKicked)
	if _, err := alice.read(2 * time.Second); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("Expected kicked connection to be closed, got %v", err)
	}

	waitForRoster(t, teacher, "Ms Smith")

	if list, _ := env.room.Participants(context.Background()); len(list) != 1 {
		t.Errorf("Kicked participant still stored: %+v", list)
	}
}

// waitForRoster reads participants_update frames until one lists exactly names.
func waitForRoster(t *testing.T, c *wsConn, names ...string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f := c.expect(ws.TypeParticipantsUpdate)
		var roster []models.Participant
		json.Unmarshal(f.Data, &roster)
		if len(roster) != len(names) {
			continue
		}
		match := true
		for i, p := range roster {
			if p.Name != names[i] {
				match = false
			}
		}
		if match {
			return
		}
	}
	t.Fatalf("Roster never became %v", names)
}

func TestWS_RoleChecks(t *testing.T) {
	env := setupEnv(t)

	anon := env.dial(t)
	anon.send("send_message", map[string]string{"text": "hi"})
	f := anon.expect(ws.TypeError)
	if !strings.Contains(string(f.Data), "join") {
		t.Errorf("Expected join-first error, got %s", f.Data)
	}

	student := env.dial(t)
	student.join("Alice", models.RoleStudent)
	student.send("create_poll", twoPlusTwo(30))
	f = student.expect(ws.TypeError)
	if !strings.Contains(string(f.Data), "teacher") {
		t.Errorf("Expected teacher-only error, got %s", f.Data)
	}
	student.send("kick_participant", "someone")
	student.expect(ws.TypeError)

	student.send("dance", nil)
	f = student.expect(ws.TypeError)
	if !strings.Contains(string(f.Data), "unknown event type") {
		t.Errorf("Expected unknown event error, got %s", f.Data)
	}

	if active, _ := env.room.Polls().GetActivePoll(context.Background()); active != nil {
		t.Error("A student must not be able to create a poll")
	}
}

func TestWS_Chat(t *testing.T) {
	env := setupEnv(t)

	alice := env.dial(t)
	alice.join("Alice", models.RoleStudent)
	bob := env.dial(t)
	bob.join("Bob", models.RoleStudent)

	alice.send("send_message", map[string]string{"text": "hello class"})

	f := bob.expect(ws.TypeNewMessage)
	var msg models.ChatMessage
	json.Unmarshal(f.Data, &msg)
	if msg.User != "Alice" || msg.Text != "hello class" {
		t.Errorf("Unexpected message: %+v", msg)
	}
}

func TestWS_DisconnectRemovesParticipant(t *testing.T) {
	env := setupEnv(t)

	teacher := env.dial(t)
	teacher.join("Ms Smith", models.RoleTeacher)
	alice := env.dial(t)
	alice.join("Alice", models.RoleStudent)

	waitForRoster(t, teacher, "Ms Smith", "Alice")
	alice.conn.Close()
	waitForRoster(t, teacher, "Ms Smith")
}
