package api

import (
	"time"

	"github.com/mayurbt12/reminder-service/internal/domain"
	"github.com/mayurbt12/reminder-service/internal/store"
)

type CreateReminderRequest struct {
	UserMobile        string         `json:"user_mobile"`
	DestinationMobile string         `json:"destination_mobile,omitempty"`
	Title             string         `json:"title"`
	Description       string         `json:"description,omitempty"`
	DueAt             time.Time      `json:"due_at"`
	Priority          string         `json:"priority,omitempty"`
	Context           map[string]any `json:"context,omitempty"`
	Recurrence        string         `json:"recurrence,omitempty"`
}

// UpdateReminderRequest carries a partial update. Absent fields are
// left unchanged.
type UpdateReminderRequest struct {
	UserMobile        string         `json:"user_mobile"`
	Title             *string        `json:"title,omitempty"`
	Description       *string        `json:"description,omitempty"`
	DestinationMobile *string        `json:"destination_mobile,omitempty"`
	DueAt             *time.Time     `json:"due_at,omitempty"`
	Priority          *string        `json:"priority,omitempty"`
	Status            *string        `json:"status,omitempty"`
	Context           map[string]any `json:"context,omitempty"`
}

type ReminderResponse struct {
	ID                string         `json:"id"`
	UserMobile        string         `json:"user_mobile"`
	DestinationMobile string         `json:"destination_mobile"`
	Title             string         `json:"title"`
	Description       string         `json:"description,omitempty"`
	DueAt             string         `json:"due_at"`
	Priority          string         `json:"priority"`
	Status            string         `json:"status"`
	Context           map[string]any `json:"context,omitempty"`
	Recurrence        string         `json:"recurrence,omitempty"`
	NotifiedAt        *string        `json:"notified_at,omitempty"`
	Version           int64          `json:"version"`
	CreatedAt         string         `json:"created_at"`
	UpdatedAt         string         `json:"updated_at"`
}

type ListRemindersResponse struct {
	Reminders []ReminderResponse `json:"reminders"`
	Count     int                `json:"count"`
}

type StatsResponse struct {
	UserMobile string `json:"user_mobile"`
	Total      int    `json:"total"`
	Pending    int    `json:"pending"`
	Completed  int    `json:"completed"`
	Cancelled  int    `json:"cancelled"`
	DueNow     int    `json:"due_now"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func toReminderResponse(r domain.Reminder) ReminderResponse {
	resp := ReminderResponse{
		ID:                r.ID,
		UserMobile:        r.OwnerID,
		DestinationMobile: r.DestinationID,
		Title:             r.Title,
		Description:       r.Description,
		DueAt:             formatTime(r.DueAt),
		Priority:          string(r.Priority),
		Status:            string(r.Status),
		Context:           r.Context,
		Recurrence:        r.Recurrence,
		Version:           r.Version,
		CreatedAt:         formatTime(r.CreatedAt),
		UpdatedAt:         formatTime(r.UpdatedAt),
	}
	if r.NotifiedAt != nil {
		s := formatTime(*r.NotifiedAt)
		resp.NotifiedAt = &s
	}
	return resp
}

func toListResponse(rs []domain.Reminder) ListRemindersResponse {
	resp := ListRemindersResponse{Reminders: make([]ReminderResponse, len(rs)), Count: len(rs)}
	for i, r := range rs {
		resp.Reminders[i] = toReminderResponse(r)
	}
	return resp
}

func toStatsResponse(owner string, c store.Counts) StatsResponse {
	return StatsResponse{
		UserMobile: owner,
		Total:      c.Total,
		Pending:    c.Pending,
		Completed:  c.Completed,
		Cancelled:  c.Cancelled,
		DueNow:     c.DueNow,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
