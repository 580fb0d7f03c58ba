package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"classroom-poll-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PresenceService struct {
	db        *gorm.DB
	now       Clock
	ttl       time.Duration
	stateless bool
}

func NewPresenceService(db *gorm.DB, clock Clock, ttl time.Duration, stateless bool) *PresenceService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PresenceService{db: db, now: orNow(clock), ttl: ttl, stateless: stateless}
}

type JoinResult struct {
	Participant models.Participant   `json:"participant"`
	Displaced   []models.Participant `json:"-"`
}

// Key is the identity a participant is stored under. Without server-side
// connection state the same person reconnects under a new connection id, so
// stateless deployments key on role and name instead.
func (s *PresenceService) Key(connID, name, role string) string {
	if s.stateless || connID == "" {
		return role + ":" + strings.TrimSpace(name)
	}
	return connID
}

func (s *PresenceService) Stateless() bool {
	return s.stateless
}

// Join registers or refreshes a participant. A joining teacher replaces every
// other teacher; the replaced rows are returned in Displaced so the caller can
// disconnect them.
func (s *PresenceService) Join(ctx context.Context, connID, name, role string) (*JoinResult, error) {
	name = strings.TrimSpace(name)
	if err := checkIdentity(name, role); err != nil {
		return nil, err
	}

	key := s.Key(connID, name, role)
	now := s.now()
	result := &JoinResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if role == models.RoleTeacher {
			if err := tx.Where("role = ? AND connection_id <> ?", models.RoleTeacher, key).
				Find(&result.Displaced).Error; err != nil {
				return err
			}
			if len(result.Displaced) > 0 {
				if err := tx.Where("role = ? AND connection_id <> ?", models.RoleTeacher, key).
					Delete(&models.Participant{}).Error; err != nil {
					return err
				}
			}
		}

		if err := upsertParticipant(tx, key, name, role, now); err != nil {
			return err
		}
		return tx.Where("connection_id = ?", key).First(&result.Participant).Error
	})
	if err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}

	for _, d := range result.Displaced {
		slog.Info("teacher displaced", "connection_id", d.ConnectionID, "name", d.Name, "by", name)
	}
	return result, nil
}

// Heartbeat refreshes a participant's last-seen time and nothing else. Students
// are re-created if they were evicted; a teacher must still hold the seat, so a
// teacher heartbeat never brings back a session that another teacher replaced.
// A key held under the other role is never touched.
func (s *PresenceService) Heartbeat(ctx context.Context, connID, name, role string) (*models.Participant, error) {
	name = strings.TrimSpace(name)
	if err := checkIdentity(name, role); err != nil {
		return nil, err
	}

	key := s.Key(connID, name, role)
	now := s.now()
	db := s.db.WithContext(ctx)

	res := db.Model(&models.Participant{}).
		Where("connection_id = ? AND role = ?", key, role).
		Update("last_seen", now)
	if res.Error != nil {
		return nil, fmt.Errorf("heartbeat: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		if role == models.RoleTeacher {
			return nil, &NotFoundError{Resource: "participant", ID: key}
		}
		p := models.Participant{ConnectionID: key, Name: name, Role: role, LastSeen: now, JoinedAt: now}
		ins := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&p)
		if ins.Error != nil {
			return nil, fmt.Errorf("heartbeat: %w", ins.Error)
		}
		if ins.RowsAffected == 0 {
			return nil, invalid("id", "belongs to another participant")
		}
	}

	return s.Get(ctx, key)
}

// Touch refreshes last-seen for an existing participant and is a no-op for
// unknown keys.
func (s *PresenceService) Touch(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Model(&models.Participant{}).
		Where("connection_id = ?", key).
		Update("last_seen", s.now()).Error
}

func (s *PresenceService) Leave(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("connection_id = ?", key).Delete(&models.Participant{}).Error
}

// List evicts stale participants and returns the rest in join order.
func (s *PresenceService) List(ctx context.Context) ([]models.Participant, error) {
	if _, err := s.Sweep(ctx); err != nil {
		return nil, err
	}

	var participants []models.Participant
	if err := s.db.WithContext(ctx).Order("joined_at ASC, id ASC").Find(&participants).Error; err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return participants, nil
}

// Sweep deletes participants not seen within the staleness window.
func (s *PresenceService) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.ttl)
	res := s.db.WithContext(ctx).Where("last_seen < ?", cutoff).Delete(&models.Participant{})
	if res.Error != nil {
		return 0, fmt.Errorf("evict stale participants: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		slog.Info("stale participants evicted", "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

func (s *PresenceService) Get(ctx context.Context, key string) (*models.Participant, error) {
	var p models.Participant
	err := s.db.WithContext(ctx).Where("connection_id = ?", key).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "participant", ID: key}
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Kick removes the target participant. Whether the caller may kick is decided
// at the boundary.
func (s *PresenceService) Kick(ctx context.Context, key string) (*models.Participant, error) {
	p, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := s.Leave(ctx, key); err != nil {
		return nil, fmt.Errorf("kick: %w", err)
	}
	slog.Info("participant kicked", "connection_id", key, "name", p.Name)
	return p, nil
}

func upsertParticipant(tx *gorm.DB, key, name, role string, now time.Time) error {
	p := models.Participant{
		ConnectionID: key,
		Name:         name,
		Role:         role,
		LastSeen:     now,
		JoinedAt:     now,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "connection_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "role", "last_seen"}),
	}).Create(&p).Error
}

func checkIdentity(name, role string) error {
	if name == "" {
		return invalid("name", "must not be empty")
	}
	if len(name) > 100 {
		return invalid("name", "must be at most 100 characters")
	}
	if !models.ValidRole(role) {
		return invalid("role", "must be teacher or student")
	}
	return nil
}
