package models

import (
	"time"

	"gorm.io/datatypes"
)

type Poll struct {
	ID        string                      `gorm:"primaryKey;size:36" json:"id"`
	Question  string                      `gorm:"type:text;not null" json:"question"`
	Options   datatypes.JSONSlice[Option] `gorm:"not null" json:"options"`
	Duration  int                         `gorm:"not null" json:"duration"`
	Active    bool                        `gorm:"not null;default:false;index" json:"isActive"`
	StartTime *time.Time                  `json:"startTime"`
	EndTime   *time.Time                  `gorm:"index" json:"endTime"`
	CreatedAt time.Time                   `gorm:"index" json:"createdAt"`
}

// HasOption reports whether optionID belongs to the poll.
func (p *Poll) HasOption(optionID string) bool {
	for _, o := range p.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// Expired reports whether the poll's window has closed at now. A poll without
// an end time never expires.
func (p *Poll) Expired(now time.Time) bool {
	return p.EndTime != nil && !now.Before(*p.EndTime)
}

// RemainingSeconds is the whole number of seconds left before EndTime, never negative.
func (p *Poll) RemainingSeconds(now time.Time) int {
	if p.EndTime == nil {
		return 0
	}
	left := p.EndTime.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

// OptionStat is one row of a tally.
type OptionStat struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
	Count     int    `json:"count"`
}

// EnrichedPoll is a poll together with its current tally.
type EnrichedPoll struct {
	Poll
	Stats      []OptionStat `json:"stats"`
	TotalVotes int          `json:"totalVotes"`
	Remaining  *int         `json:"remaining,omitempty"`
}
