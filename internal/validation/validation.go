package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	MaxPhrases      = 20
	MaxPhraseLength = 200
)

var validate = validator.New()

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// SubmitRequest is the payload of POST /api/submit.
type SubmitRequest struct {
	VideoURL string   `json:"video_url" validate:"required,url"`
	Phrases  []string `json:"phrases" validate:"required,min=1"`
	Email    string   `json:"email" validate:"required,email"`
}

// ValidateSubmit checks a submission before any job exists. Rejected
// requests never enter the state machine.
func ValidateSubmit(req SubmitRequest) ValidationErrors {
	var errors ValidationErrors

	if err := validate.Struct(req); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				errors = append(errors, ValidationError{
					Field:   fieldName(fe.Field()),
					Message: messageFor(fe),
				})
			}
		} else {
			errors = append(errors, ValidationError{Field: "request", Message: err.Error()})
		}
	}

	if req.VideoURL != "" && !IsYouTubeURL(req.VideoURL) {
		errors = append(errors, ValidationError{
			Field:   "video_url",
			Message: "must be a YouTube watch or youtu.be URL",
		})
	}

	if len(req.Phrases) > MaxPhrases {
		errors = append(errors, ValidationError{
			Field:   "phrases",
			Message: fmt.Sprintf("maximum %d phrases allowed, got %d", MaxPhrases, len(req.Phrases)),
		})
	}
	for i, p := range req.Phrases {
		if strings.TrimSpace(p) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("phrases[%d]", i),
				Message: "phrase must not be empty",
			})
			continue
		}
		if len(p) > MaxPhraseLength {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("phrases[%d]", i),
				Message: fmt.Sprintf("phrase exceeds maximum length of %d characters", MaxPhraseLength),
			})
		}
	}

	return errors
}

// IsYouTubeURL reports whether the URL points at a YouTube video page.
func IsYouTubeURL(u string) bool {
	return strings.Contains(u, "youtube.com/watch") || strings.Contains(u, "youtu.be/")
}

func fieldName(structField string) string {
	switch structField {
	case "VideoURL":
		return "video_url"
	case "Phrases":
		return "phrases"
	case "Email":
		return "email"
	default:
		return strings.ToLower(structField)
	}
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must not be empty"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
