package models

import "time"

type Vote struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	PollID      string    `gorm:"size:36;not null;uniqueIndex:idx_vote_poll_student" json:"pollId"`
	StudentName string    `gorm:"size:100;not null;uniqueIndex:idx_vote_poll_student" json:"studentName"`
	OptionID    string    `gorm:"size:100;not null" json:"optionId"`
	CreatedAt   time.Time `json:"createdAt"`
}
