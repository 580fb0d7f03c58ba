package models

// Option is stored inline with its poll; ID is chosen by the poll author and is
// only unique within that poll.
type Option struct {
	ID        string `json:"id" validate:"required"`
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"isCorrect"`
}
