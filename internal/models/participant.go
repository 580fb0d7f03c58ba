package models

import "time"

type Participant struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	ConnectionID string    `gorm:"size:200;not null;uniqueIndex" json:"id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Role         string    `gorm:"size:10;not null;index" json:"role"`
	LastSeen     time.Time `gorm:"not null;index" json:"lastSeen"`
	JoinedAt     time.Time `json:"joinedAt"`
}

const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

func ValidRole(role string) bool {
	return role == RoleTeacher || role == RoleStudent
}
