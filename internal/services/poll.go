package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"classroom-poll-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Clock returns the current time. Services take one so tests can move time.
type Clock func() time.Time

func orNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

// createAttempts bounds retries when a concurrent creator wins the
// single-active index between our deactivate and insert.
const createAttempts = 3

type PollService struct {
	db  *gorm.DB
	now Clock
}

func NewPollService(db *gorm.DB, clock Clock) *PollService {
	return &PollService{db: db, now: orNow(clock)}
}

// CreatePoll deactivates every active poll and inserts the new one as active
// within a single transaction.
func (s *PollService) CreatePoll(ctx context.Context, in CreatePollInput) (*models.Poll, error) {
	if err := validatePollInput(&in); err != nil {
		return nil, err
	}

	var poll models.Poll
	var err error
	for attempt := 1; attempt <= createAttempts; attempt++ {
		start := s.now()
		end := start.Add(time.Duration(in.Duration) * time.Second)
		poll = models.Poll{
			ID:        uuid.NewString(),
			Question:  in.Question,
			Options:   in.Options,
			Duration:  in.Duration,
			Active:    true,
			StartTime: &start,
			EndTime:   &end,
			CreatedAt: start,
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.Poll{}).
				Where("active = ?", true).
				Update("active", false).Error; err != nil {
				return err
			}
			return tx.Create(&poll).Error
		})
		if err == nil || !isUniqueViolation(err) {
			break
		}
		slog.Warn("concurrent poll creation, retrying", "attempt", attempt)
	}
	if err != nil {
		return nil, fmt.Errorf("create poll: %w", err)
	}

	slog.Info("poll created", "poll_id", poll.ID, "duration", poll.Duration, "options", len(poll.Options))
	return &poll, nil
}

// GetActivePoll returns the poll currently accepting votes, or nil. Polls whose
// end time has passed are marked inactive on the way.
func (s *PollService) GetActivePoll(ctx context.Context) (*models.Poll, error) {
	now := s.now()
	db := s.db.WithContext(ctx)

	res := db.Model(&models.Poll{}).
		Where("active = ? AND end_time <= ?", true, now).
		Update("active", false)
	if res.Error != nil {
		return nil, fmt.Errorf("expire polls: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		slog.Info("expired polls deactivated", "count", res.RowsAffected)
	}

	var poll models.Poll
	err := db.Where("active = ? AND end_time > ?", true, now).First(&poll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active poll: %w", err)
	}
	return &poll, nil
}

func (s *PollService) GetPoll(ctx context.Context, pollID string) (*models.Poll, error) {
	var poll models.Poll
	err := s.db.WithContext(ctx).Where("id = ?", pollID).First(&poll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "poll", ID: pollID}
	}
	if err != nil {
		return nil, err
	}
	return &poll, nil
}

// SubmitVote records studentName's choice. The ledger's unique index decides
// races between concurrent submissions from the same student.
func (s *PollService) SubmitVote(ctx context.Context, pollID, studentName, optionID string) (*models.Vote, error) {
	studentName = strings.TrimSpace(studentName)
	if pollID == "" {
		return nil, invalid("pollId", "must not be empty")
	}
	if studentName == "" {
		return nil, invalid("studentName", "must not be empty")
	}
	if optionID == "" {
		return nil, invalid("optionId", "must not be empty")
	}

	now := s.now()
	vote := models.Vote{
		ID:          uuid.NewString(),
		PollID:      pollID,
		StudentName: studentName,
		OptionID:    optionID,
		CreatedAt:   now,
	}

	// The poll row stays share-locked until the vote is written, so a
	// concurrent CreatePoll cannot deactivate it in between.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var poll models.Poll
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).Where("id = ?", pollID).First(&poll).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "poll", ID: pollID}
		}
		if err != nil {
			return err
		}
		if !poll.Active {
			return ErrInactivePoll
		}
		if poll.Expired(now) {
			return ErrExpiredPoll
		}
		if !poll.HasOption(optionID) {
			return invalid("optionId", "not an option of this poll")
		}

		if err := tx.Create(&vote).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateVote
			}
			return fmt.Errorf("record vote: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("vote recorded", "poll_id", pollID, "student", studentName, "option_id", optionID)
	return &vote, nil
}

type optionCount struct {
	PollID   string
	OptionID string
	Count    int
}

// GetEnrichedPoll tallies the poll's votes per option.
func (s *PollService) GetEnrichedPoll(ctx context.Context, poll *models.Poll) (*models.EnrichedPoll, error) {
	counts, err := s.countVotes(ctx, []string{poll.ID})
	if err != nil {
		return nil, err
	}
	enriched := enrich(*poll, counts[poll.ID])
	return &enriched, nil
}

// GetPollHistory returns every poll, newest first, each with its tally.
func (s *PollService) GetPollHistory(ctx context.Context) ([]models.EnrichedPoll, error) {
	var polls []models.Poll
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&polls).Error; err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}

	ids := make([]string, len(polls))
	for i, p := range polls {
		ids[i] = p.ID
	}
	counts, err := s.countVotes(ctx, ids)
	if err != nil {
		return nil, err
	}

	history := make([]models.EnrichedPoll, len(polls))
	for i, p := range polls {
		history[i] = enrich(p, counts[p.ID])
	}
	return history, nil
}

// ActivePollState is the active poll with its tally and the seconds left,
// recomputed from the stored end time. It is what late joiners sync from.
func (s *PollService) ActivePollState(ctx context.Context) (*models.EnrichedPoll, error) {
	poll, err := s.GetActivePoll(ctx)
	if err != nil || poll == nil {
		return nil, err
	}
	enriched, err := s.GetEnrichedPoll(ctx, poll)
	if err != nil {
		return nil, err
	}
	remaining := poll.RemainingSeconds(s.now())
	enriched.Remaining = &remaining
	return enriched, nil
}

func (s *PollService) countVotes(ctx context.Context, pollIDs []string) (map[string]map[string]int, error) {
	out := make(map[string]map[string]int, len(pollIDs))
	if len(pollIDs) == 0 {
		return out, nil
	}

	var rows []optionCount
	err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Select("poll_id, option_id, COUNT(*) AS count").
		Where("poll_id IN ?", pollIDs).
		Group("poll_id, option_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count votes: %w", err)
	}

	for _, r := range rows {
		if out[r.PollID] == nil {
			out[r.PollID] = make(map[string]int)
		}
		out[r.PollID][r.OptionID] = r.Count
	}
	return out, nil
}

// Untallied is poll with every option at zero votes.
func Untallied(poll models.Poll) models.EnrichedPoll {
	return enrich(poll, nil)
}

func enrich(poll models.Poll, counts map[string]int) models.EnrichedPoll {
	stats := make([]models.OptionStat, len(poll.Options))
	total := 0
	for _, c := range counts {
		total += c
	}
	for i, o := range poll.Options {
		stats[i] = models.OptionStat{
			ID:        o.ID,
			Text:      o.Text,
			IsCorrect: o.IsCorrect,
			Count:     counts[o.ID],
		}
	}
	return models.EnrichedPoll{Poll: poll, Stats: stats, TotalVotes: total}
}
