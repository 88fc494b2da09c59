package api

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"example.com/habits/internal/domain"
)

var hhmmPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// newValidator registers the custom rules and reports json field names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		d := fl.Field().Int()
		return d >= 0 && d <= 6
	})
	// Empty is allowed so clients can clear a reminder.
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || hhmmPattern.MatchString(s)
	})
	return v
}

// ValidationError carries per-field messages keyed by json path.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// validate runs struct validation and translates the result into a
// ValidationError.
func (h *Handler) validate(req interface{}) error {
	err := h.validator.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fieldPath(fe)] = describe(fe)
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind().String() == "slice" {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "hexcolor":
		return "must be a hex color such as #4F46E5"
	case "weekday":
		return "must be a weekday number between 0 (Sunday) and 6 (Saturday)"
	case "hhmm":
		return "must be empty or a 24h time formatted HH:MM"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// CreateHabitRequest is the payload for POST /api/habits.
type CreateHabitRequest struct {
	Name          string  `json:"name" validate:"required,max=100"`
	Description   *string `json:"description" validate:"omitempty,max=500"`
	Color         *string `json:"color" validate:"omitempty,hexcolor"`
	FrequencyDays []int   `json:"frequencyDays" validate:"required,min=1,dive,weekday"`
	ReminderTime  *string `json:"reminderTime" validate:"omitempty,hhmm"`
	UserID        *int64  `json:"userId" validate:"omitempty,gt=0"`
}

func (r *CreateHabitRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
}

func (r CreateHabitRequest) toInput() domain.HabitInput {
	return domain.HabitInput{
		Name:          r.Name,
		Description:   r.Description,
		Color:         r.Color,
		FrequencyDays: r.FrequencyDays,
		ReminderTime:  r.ReminderTime,
		UserID:        r.UserID,
	}
}

// UpdateHabitRequest is the payload for PUT /api/habits/{id}. Absent fields
// keep their stored value.
type UpdateHabitRequest struct {
	Name          *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description   *string `json:"description" validate:"omitempty,max=500"`
	Color         *string `json:"color" validate:"omitempty,hexcolor"`
	FrequencyDays *[]int  `json:"frequencyDays" validate:"omitempty,min=1,dive,weekday"`
	ReminderTime  *string `json:"reminderTime" validate:"omitempty,hhmm"`
	UserID        *int64  `json:"userId" validate:"omitempty,gt=0"`
}

func (r *UpdateHabitRequest) normalize() {
	if r.Name != nil {
		trimmed := strings.TrimSpace(*r.Name)
		r.Name = &trimmed
	}
}

func (r UpdateHabitRequest) toPatch() domain.HabitPatch {
	return domain.HabitPatch{
		Name:          r.Name,
		Description:   r.Description,
		Color:         r.Color,
		FrequencyDays: r.FrequencyDays,
		ReminderTime:  r.ReminderTime,
		UserID:        r.UserID,
	}
}

// CompletionRequest is the payload for POST /api/completions. Date may be a
// calendar date or an RFC 3339 timestamp. An omitted completed flag means done.
type CompletionRequest struct {
	HabitID   int64  `json:"habitId" validate:"required,gt=0"`
	Date      string `json:"date" validate:"required"`
	Completed *bool  `json:"completed"`
	UserID    *int64 `json:"userId" validate:"omitempty,gt=0"`
}

func (r CompletionRequest) completed() bool {
	if r.Completed == nil {
		return true
	}
	return *r.Completed
}

// SettingsRequest is the payload for POST /api/settings.
type SettingsRequest struct {
	Notifications   *bool  `json:"notifications" validate:"required"`
	MorningReminder string `json:"morningReminder" validate:"hhmm"`
	EveningReminder string `json:"eveningReminder" validate:"hhmm"`
}

// MessageResponse acknowledges operations without a resource body.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Type   string            `json:"type"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
}
