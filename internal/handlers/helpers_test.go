package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"classroom-poll-backend/internal/classroom"
	"classroom-poll-backend/internal/models"
	"classroom-poll-backend/internal/router"
	"classroom-poll-backend/internal/services"
	"classroom-poll-backend/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type testEnv struct {
	router *gin.Engine
	room   *classroom.Room
	clock  *testutil.Clock
	auth   *services.AuthService
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	clock := testutil.NewClock()
	room := classroom.New(db, classroom.Options{
		Clock:        clock.Now,
		TickInterval: 5 * time.Millisecond,
		PresenceTTL:  30 * time.Second,
	})
	t.Cleanup(room.Close)

	auth := services.NewAuthService("test-secret", clock.Now)
	return &testEnv{
		router: router.New(db, room, auth, nil),
		room:   room,
		clock:  clock,
		auth:   auth,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) token(t *testing.T, name, role string) string {
	t.Helper()
	w := e.do(testutil.MakeRequest("POST", "/api/join", map[string]string{"name": name, "role": role}, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp struct {
		Token string `json:"token"`
	}
	testutil.AssertJSON(t, w, &resp)
	return resp.Token
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func twoPlusTwo(duration int) services.CreatePollInput {
	return services.CreatePollInput{
		Question: "2+2?",
		Options: []models.Option{
			{ID: "1", Text: "3", IsCorrect: false},
			{ID: "2", Text: "4", IsCorrect: true},
		},
		Duration: duration,
	}
}

func tally(p models.EnrichedPoll) map[string]int {
	out := make(map[string]int, len(p.Stats))
	for _, s := range p.Stats {
		out[s.ID] = s.Count
	}
	return out
}

// wsConn wraps a client connection to the test server's /ws endpoint.
type wsConn struct {
	t    *testing.T
	conn *websocket.Conn
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (e *testEnv) dial(t *testing.T) *wsConn {
	t.Helper()
	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &wsConn{t: t, conn: conn}
}

func (c *wsConn) send(eventType string, data interface{}) {
	c.t.Helper()
	if err := c.conn.WriteJSON(map[string]interface{}{"type": eventType, "data": data}); err != nil {
		c.t.Fatalf("Write failed: %v", err)
	}
}

func (c *wsConn) read(timeout time.Duration) (frame, error) {
	c.conn.SetReadDeadline(time.Now().Add(timeout))
	var f frame
	err := c.conn.ReadJSON(&f)
	return f, err
}

// expect skips frames until one of eventType arrives.
func (c *wsConn) expect(eventType string) frame {
	c.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		f, err := c.read(time.Until(deadline))
		if err != nil {
			c.t.Fatalf("Waiting for %s: %v", eventType, err)
		}
		if f.Type == eventType {
			return f
		}
	}
	c.t.Fatalf("Timed out waiting for %s", eventType)
	return frame{}
}

func (c *wsConn) join(name, role string) {
	c.t.Helper()
	c.send("join", map[string]string{"name": name, "role": role})
	c.expect("chat_history")
}

func participantID(t *testing.T, room *classroom.Room, name string) string {
	t.Helper()
	list, err := room.Participants(context.Background())
	if err != nil {
		t.Fatalf("Participants failed: %v", err)
	}
	for _, p := range list {
		if p.Name == name {
			return p.ConnectionID
		}
	}
	t.Fatalf("Participant %s not found in %+v", name, list)
	return ""
}
