package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"classroom-poll-backend/internal/models"
	"classroom-poll-backend/internal/services"

	"github.com/gin-gonic/gin"
)

func newAuthRouter(auth *services.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/any", ParticipantAuth(auth), func(c *gin.Context) {
		claims, _ := Claims(c)
		c.String(http.StatusOK, claims.Name)
	})
	r.GET("/teacher", ParticipantAuth(auth), RequireRole(models.RoleTeacher), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/unguarded", RequireRole(models.RoleTeacher), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestParticipantAuth(t *testing.T) {
	auth := services.NewAuthService("secret", nil)
	r := newAuthRouter(auth)

	student, _ := auth.GenerateToken(models.Participant{ConnectionID: "student:Alice", Name: "Alice", Role: models.RoleStudent})
	teacher, _ := auth.GenerateToken(models.Participant{ConnectionID: "teacher:Ms Smith", Name: "Ms Smith", Role: models.RoleTeacher})

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/any", "", http.StatusUnauthorized},
		{"wrong scheme", "/any", "Basic " + student, http.StatusUnauthorized},
		{"garbage token", "/any", "Bearer nope", http.StatusUnauthorized},
		{"student token", "/any", "Bearer " + student, http.StatusOK},
		{"student on teacher route", "/teacher", "Bearer " + student, http.StatusForbidden},
		{"teacher on teacher route", "/teacher", "Bearer " + teacher, http.StatusNoContent},
		{"role check without auth", "/unguarded", "Bearer " + teacher, http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.want {
				t.Errorf("Expected status %d, got %d. Body: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestClaimsExposedToHandler(t *testing.T) {
	auth := services.NewAuthService("secret", nil)
	r := newAuthRouter(auth)
	token, _ := auth.GenerateToken(models.Participant{ConnectionID: "student:Alice", Name: "Alice", Role: models.RoleStudent})

	req := httptest.NewRequest("GET", "/any", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Body.String() != "Alice" {
		t.Errorf("Expected handler to see claims for Alice, got %q", w.Body.String())
	}
}
