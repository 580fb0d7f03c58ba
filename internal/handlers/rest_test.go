package handlers_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"classroom-poll-backend/internal/handlers"
	"classroom-poll-backend/internal/models"
	"classroom-poll-backend/internal/testutil"
)

func TestHealthz(t *testing.T) {
	env := setupEnv(t)
	w := env.do(testutil.MakeRequest("GET", "/healthz", nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
}

func TestJoin(t *testing.T) {
	env := setupEnv(t)

	w := env.do(testutil.MakeRequest("POST", "/api/join", map[string]string{"name": "Ms Smith", "role": "teacher"}, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp handlers.JoinResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Token == "" {
		t.Error("Expected a token")
	}
	if resp.Participant.ConnectionID != "teacher:Ms Smith" || resp.Participant.Role != models.RoleTeacher {
		t.Errorf("Unexpected participant: %+v", resp.Participant)
	}

	claims, err := env.auth.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("Token does not validate: %v", err)
	}
	if claims.Subject != resp.Participant.ConnectionID {
		t.Errorf("Expected token subject %s, got %s", resp.Participant.ConnectionID, claims.Subject)
	}
}

func TestJoin_Validation(t *testing.T) {
	env := setupEnv(t)

	for _, body := range []map[string]string{
		{"name": "", "role": "student"},
		{"name": "Alice", "role": "admin"},
		{"name": "Alice"},
	} {
		w := env.do(testutil.MakeRequest("POST", "/api/join", body, nil))
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	}
}

func TestCreatePoll_Authorization(t *testing.T) {
	env := setupEnv(t)
	studentToken := env.token(t, "Alice", models.RoleStudent)
	teacherToken := env.token(t, "Ms Smith", models.RoleTeacher)

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"no token", nil, http.StatusUnauthorized},
		{"malformed header", map[string]string{"Authorization": "Token abc"}, http.StatusUnauthorized},
		{"bad token", bearer("abc"), http.StatusUnauthorized},
		{"student", bearer(studentToken), http.StatusForbidden},
		{"teacher", bearer(teacherToken), http.StatusCreated},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(testutil.MakeRequest("POST", "/api/polls", twoPlusTwo(30), tc.headers))
			testutil.AssertStatus(t, w, tc.want)
		})
	}
}

func TestCreatePoll_Invalid(t *testing.T) {
	env := setupEnv(t)
	token := env.token(t, "Ms Smith", models.RoleTeacher)

	in := twoPlusTwo(30)
	in.Options[1].IsCorrect = false
	w := env.do(testutil.MakeRequest("POST", "/api/polls", in, bearer(token)))
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	var resp handlers.ErrorResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Error == "" {
		t.Error("Expected an error message")
	}
}

func TestVoteScenario(t *testing.T) {
	env := setupEnv(t)
	token := env.token(t, "Ms Smith", models.RoleTeacher)

	w := env.do(testutil.MakeRequest("POST", "/api/polls", twoPlusTwo(30), bearer(token)))
	testutil.AssertStatus(t, w, http.StatusCreated)
	var poll models.EnrichedPoll
	testutil.AssertJSON(t, w, &poll)

	vote := func(student, option string) *models.EnrichedPoll {
		t.Helper()
		w := env.do(testutil.MakeRequest("POST", "/api/vote", map[string]string{
			"pollId": poll.ID, "studentName": student, "optionId": option,
		}, nil))
		if w.Code != http.StatusCreated {
			t.Logf("vote by %s: %d %s", student, w.Code, w.Body.String())
			return nil
		}
		var p models.EnrichedPoll
		testutil.AssertJSON(t, w, &p)
		return &p
	}

	p := vote("Alice", "2")
	if p == nil || tally(*p)["1"] != 0 || tally(*p)["2"] != 1 || p.TotalVotes != 1 {
		t.Fatalf("Unexpected tally after Alice: %+v", p)
	}

	w = env.do(testutil.MakeRequest("POST", "/api/vote", map[string]string{
		"pollId": poll.ID, "studentName": "Alice", "optionId": "1",
	}, nil))
	testutil.AssertStatus(t, w, http.StatusConflict)

	p = vote("Bob", "1")
	if p == nil || tally(*p)["1"] != 1 || tally(*p)["2"] != 1 || p.TotalVotes != 2 {
		t.Fatalf("Unexpected tally after Bob: %+v", p)
	}

	w = env.do(testutil.MakeRequest("GET", "/api/active-poll", nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	var active models.EnrichedPoll
	testutil.AssertJSON(t, w, &active)
	if active.ID != poll.ID || active.TotalVotes != 2 || active.Remaining == nil || *active.Remaining != 30 {
		t.Errorf("Unexpected active poll: %+v", active)
	}

	env.clock.Advance(30 * time.Second)

	w = env.do(testutil.MakeRequest("GET", "/api/active-poll", nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	if body := w.Body.String(); body != "null" {
		t.Errorf("Expected null active poll, got %s", body)
	}

	w = env.do(testutil.MakeRequest("POST", "/api/vote", map[string]string{
		"pollId": poll.ID, "studentName": "Carol", "optionId": "2",
	}, nil))
	testutil.AssertStatus(t, w, http.StatusConflict)

	w = env.do(testutil.MakeRequest("GET", "/api/history", nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	var history []models.EnrichedPoll
	testutil.AssertJSON(t, w, &history)
	if len(history) != 1 || history[0].TotalVotes != 2 || history[0].Active {
		t.Errorf("Unexpected history: %+v", history)
	}
}

func TestVote_Errors(t *testing.T) {
	env := setupEnv(t)

	w := env.do(testutil.MakeRequest("POST", "/api/vote", map[string]string{"pollId": "p"}, nil))
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	w = env.do(testutil.MakeRequest("POST", "/api/vote", map[string]string{
		"pollId": "missing", "studentName": "Alice", "optionId": "1",
	}, nil))
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestChat(t *testing.T) {
	env := setupEnv(t)

	w := env.do(testutil.MakeRequest("POST", "/api/chat", map[string]string{"user": "Alice", "text": "hello"}, nil))
	testutil.AssertStatus(t, w, http.StatusCreated)

	w = env.do(testutil.MakeRequest("POST", "/api/chat", map[string]string{"user": "Alice"}, nil))
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	w = env.do(testutil.MakeRequest("GET", "/api/chat", nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	var msgs []models.ChatMessage
	testutil.AssertJSON(t, w, &msgs)
	if len(msgs) != 1 || msgs[0].Text != "hello" || msgs[0].User != "Alice" {
		t.Errorf("Unexpected chat history: %+v", msgs)
	}
}

func TestParticipants_HeartbeatAndStaleness(t *testing.T) {
	env := setupEnv(t)
	env.token(t, "Alice", models.RoleStudent)
	env.token(t, "Bob", models.RoleStudent)

	env.clock.Advance(20 * time.Second)
	w := env.do(testutil.MakeRequest("POST", "/api/heartbeat", map[string]string{
		"id": "student:Alice", "name": "Alice", "role": "student",
	}, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	env.clock.Advance(20 * time.Second)
	w = env.do(testutil.MakeRequest("GET", "/api/participants", nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	var list []models.Participant
	testutil.AssertJSON(t, w, &list)
	if len(list) != 1 || list[0].Name != "Alice" {
		t.Errorf("Expected only Alice to remain, got %+v", list)
	}
}

func TestHeartbeat_DisplacedTeacher(t *testing.T) {
	env := setupEnv(t)
	env.token(t, "Ms Smith", models.RoleTeacher)
	env.token(t, "Mr Jones", models.RoleTeacher)

	w := env.do(testutil.MakeRequest("POST", "/api/heartbeat", map[string]string{
		"name": "Ms Smith", "role": "teacher",
	}, nil))
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestHeartbeat_CannotTakeTeacherSeat(t *testing.T) {
	env := setupEnv(t)
	env.token(t, "Ms Smith", models.RoleTeacher)

	w := env.do(testutil.MakeRequest("POST", "/api/heartbeat", map[string]string{
		"id": "teacher:Ms Smith", "name": "Mallory", "role": "student",
	}, nil))
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	w = env.do(testutil.MakeRequest("POST", "/api/heartbeat", map[string]string{
		"name": "Ms Smith", "role": "teacher",
	}, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	list, _ := env.room.Participants(context.Background())
	if len(list) != 1 || list[0].Role != models.RoleTeacher || list[0].Name != "Ms Smith" {
		t.Errorf("Expected Ms Smith to remain the teacher, got %+v", list)
	}
}

func TestDisplacedTeacherLosesTeacherRoutes(t *testing.T) {
	env := setupEnv(t)
	oldToken := env.token(t, "Ms Smith", models.RoleTeacher)
	newToken := env.token(t, "Mr Jones", models.RoleTeacher)

	w := env.do(testutil.MakeRequest("POST", "/api/polls", twoPlusTwo(30), bearer(oldToken)))
	testutil.AssertStatus(t, w, http.StatusForbidden)

	w = env.do(testutil.MakeRequest("POST", "/api/participants/teacher:Mr%20Jones/kick", nil, bearer(oldToken)))
	testutil.AssertStatus(t, w, http.StatusForbidden)
	if _, err := env.room.Presence().Get(context.Background(), "teacher:Mr Jones"); err != nil {
		t.Errorf("Current teacher was removed: %v", err)
	}

	w = env.do(testutil.MakeRequest("POST", "/api/polls", twoPlusTwo(30), bearer(newToken)))
	testutil.AssertStatus(t, w, http.StatusCreated)
}

func TestKickedParticipantTokenRejected(t *testing.T) {
	env := setupEnv(t)
	token := env.token(t, "Ms Smith", models.RoleTeacher)
	if _, err := env.room.Kick(context.Background(), "teacher:Ms Smith"); err != nil {
		t.Fatalf("Kick failed: %v", err)
	}

	w := env.do(testutil.MakeRequest("POST", "/api/polls", twoPlusTwo(30), bearer(token)))
	testutil.AssertStatus(t, w, http.StatusForbidden)
}

func TestKick(t *testing.T) {
	env := setupEnv(t)
	token := env.token(t, "Ms Smith", models.RoleTeacher)
	env.token(t, "Alice", models.RoleStudent)

	w := env.do(testutil.MakeRequest("POST", "/api/participants/student:Alice/kick", nil, bearer(token)))
	testutil.AssertStatus(t, w, http.StatusOK)

	w = env.do(testutil.MakeRequest("POST", "/api/participants/student:Alice/kick", nil, bearer(token)))
	testutil.AssertStatus(t, w, http.StatusNotFound)
}
