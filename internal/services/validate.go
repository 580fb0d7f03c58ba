package services

import (
	"errors"
	"strings"

	"classroom-poll-backend/internal/models"

	"github.com/go-playground/validator/v10"
)

// CreatePollInput is what a teacher submits to start a poll.
type CreatePollInput struct {
	Question string          `json:"question" validate:"required"`
	Options  []models.Option `json:"options" validate:"required,min=1,dive"`
	Duration int             `json:"duration" validate:"required,gt=0,lte=3600"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validatePollInput trims the input in place and checks it. Options must have
// distinct ids and at least one of them must be marked correct.
func validatePollInput(in *CreatePollInput) error {
	in.Question = strings.TrimSpace(in.Question)
	for i := range in.Options {
		in.Options[i].ID = strings.TrimSpace(in.Options[i].ID)
		in.Options[i].Text = strings.TrimSpace(in.Options[i].Text)
	}

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return invalid(fieldName(verrs[0]), describeTag(verrs[0]))
		}
		return invalid("", err.Error())
	}

	seen := make(map[string]bool, len(in.Options))
	hasCorrect := false
	for _, o := range in.Options {
		if seen[o.ID] {
			return invalid("options", "duplicate option id "+o.ID)
		}
		seen[o.ID] = true
		if o.IsCorrect {
			hasCorrect = true
		}
	}
	if !hasCorrect {
		return invalid("options", "at least one option must be marked correct")
	}
	return nil
}

func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns[:1]) + ns[1:]
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "min":
		return "must have at least " + fe.Param() + " entries"
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
