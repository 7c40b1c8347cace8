package feed

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-playground/validator/v10"

	"socialfeed/internal/apperr"
	"socialfeed/internal/models"
)

type SignupInput struct {
	Username    string `json:"username" validate:"required,max=50"`
	DisplayName string `json:"display_name" validate:"required,max=100"`
	Password    string `json:"password" validate:"required"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileInput changes whichever fields are non-empty; at least one must be.
type UpdateProfileInput struct {
	DisplayName string `json:"display_name" validate:"required_without=Bio,max=100"`
	Bio         string `json:"bio" validate:"required_without=DisplayName,max=500"`
}

type CreatePostInput struct {
	Content      string `json:"content" validate:"required"`
	ParentPostID *int64 `json:"parent_post_id" validate:"omitempty,gt=0"`
}

// SearchInput is the search filter set. Every field is optional.
type SearchInput struct {
	Text     string `form:"text" json:"text"`
	Username string `form:"username" json:"username"`
	FromDate string `form:"from_date" json:"from_date"`
	ToDate   string `form:"to_date" json:"to_date"`
	Limit    int    `form:"limit" json:"limit"`
	Offset   int    `form:"offset" json:"offset"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// check runs struct validation and reports the first failure as a
// Validation error.
func (s *Service) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return apperr.Wrap(apperr.Validation, "invalid input", err)
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required_without":
		return apperr.New(apperr.Validation, "no data to update")
	case "required":
		return apperr.New(apperr.Validation, fmt.Sprintf("%s is required", fe.Field()))
	case "max":
		return apperr.New(apperr.Validation, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
	default:
		return apperr.New(apperr.Validation, fmt.Sprintf("%s is invalid", fe.Field()))
	}
}

// dateOnlyLayouts are the calendar-day forms a to_date may take. Anything else
// dateparse accepts (epoch seconds, timestamps) is an exact instant.
var dateOnlyLayouts = []string{
	time.DateOnly,
	"2006-1-2",
	"2006/01/02",
	"2006/1/2",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

func isDateOnly(raw string) bool {
	for _, layout := range dateOnlyLayouts {
		if _, err := time.Parse(layout, raw); err == nil {
			return true
		}
	}
	return false
}

// filter converts the search input into a store filter. Dates are parsed
// leniently in UTC; a to_date without a clock time covers that whole day.
func (in SearchInput) filter() (models.PostFilter, error) {
	f := models.PostFilter{
		TextContains:   strings.TrimSpace(in.Text),
		UsernamePrefix: strings.TrimSpace(in.Username),
		Limit:          in.Limit,
		Offset:         in.Offset,
	}
	if raw := strings.TrimSpace(in.FromDate); raw != "" {
		from, err := dateparse.ParseIn(raw, time.UTC)
		if err != nil {
			return f, apperr.Wrap(apperr.Validation, "invalid from_date", err)
		}
		f.From = &from
	}
	if raw := strings.TrimSpace(in.ToDate); raw != "" {
		to, err := dateparse.ParseIn(raw, time.UTC)
		if err != nil {
			return f, apperr.Wrap(apperr.Validation, "invalid to_date", err)
		}
		if isDateOnly(raw) {
			to = to.Add(24*time.Hour - time.Second)
		}
		f.To = &to
	}
	return f, nil
}
