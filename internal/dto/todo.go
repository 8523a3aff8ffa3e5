package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Date parses a date from JSON as either date-only ("2006-01-02") or RFC3339.
// Date-only is stored as start of that day in UTC.
type Date struct{ t *time.Time }

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		d.t = nil
		return nil
	}
	t, err := ParseDate(*raw)
	if err != nil {
		return err
	}
	d.t = &t
	return nil
}

// ParseDate accepts "2006-01-02", RFC3339 or a zone-less datetime, read as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layouts := []string{
		"2006-01-02",
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q: use date (YYYY-MM-DD) or RFC3339 datetime", s)
}

// Ptr returns *time.Time for use in service/domain. A nil *Date yields nil.
func (d *Date) Ptr() *time.Time {
	if d == nil {
		return nil
	}
	return d.t
}

type CreateTodoRequest struct {
	Title       string   `json:"title" example:"Buy milk"`
	Description *string  `json:"description" example:"2 liters"`
	Completed   *bool    `json:"completed"`
	Priority    *string  `json:"priority" enums:"LOW,MEDIUM,HIGH"`
	StartDate   *Date    `json:"startDate" swaggertype:"string" example:"2026-02-19"`
	DueDate     *Date    `json:"dueDate" swaggertype:"string" example:"2026-02-20T18:00:00Z"`
	UserID      string   `json:"userId" format:"uuid"`
	TagIDs      []string `json:"tagIds"`
}

// UpdateTodoRequest is a partial update: absent fields are left unchanged and
// tagIds, when present, replaces the tag set.
type UpdateTodoRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Completed   *bool    `json:"completed"`
	Priority    *string  `json:"priority" enums:"LOW,MEDIUM,HIGH"`
	StartDate   *Date    `json:"startDate" swaggertype:"string"`
	DueDate     *Date    `json:"dueDate" swaggertype:"string"`
	UserID      *string  `json:"userId" format:"uuid"`
	TagIDs      []string `json:"tagIds"`
}

type TodoResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Completed   bool       `json:"completed"`
	Priority    string     `json:"priority"`
	StartDate   *time.Time `json:"startDate"`
	DueDate     *time.Time `json:"dueDate"`
	UserID      string     `json:"userId"`
	TagIDs      []string   `json:"tagIds"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
