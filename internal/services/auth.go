package services

import (
	"errors"
	"time"

	"classroom-poll-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// ParticipantClaims is the signed result of the name+role handshake. Subject
// carries the participant key.
type ParticipantClaims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService struct {
	jwtSecret []byte
	ttl       time.Duration
	now       Clock
}

func NewAuthService(jwtSecret string, clock Clock) *AuthService {
	return &AuthService{jwtSecret: []byte(jwtSecret), ttl: 12 * time.Hour, now: orNow(clock)}
}

func (s *AuthService) GenerateToken(p models.Participant) (string, error) {
	now := s.now()
	claims := ParticipantClaims{
		Name: p.Name,
		Role: p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ConnectionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) ValidateToken(tokenString string) (*ParticipantClaims, error) {
	claims := &ParticipantClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if !models.ValidRole(claims.Role) || claims.Subject == "" {
		return nil, errors.New("invalid claims")
	}
	return claims, nil
}
