package models

import (
	"maps"
	"time"
)

// TargetScope is the visibility rule attached to a notification.
type TargetScope string

const (
	ScopeAll      TargetScope = "all"
	ScopePages    TargetScope = "pages"
	ScopeSpecific TargetScope = "specific"
)

// Notification is a row of the partner_notifications table.
type Notification struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Message      string          `json:"message"`
	ImageURL     string          `json:"image_url,omitempty"`
	LinkURL      string          `json:"link_url,omitempty"`
	ButtonText   string          `json:"button_text,omitempty"`
	DelaySeconds *float64        `json:"delay_seconds,omitempty"`
	IsActive     bool            `json:"is_active"`
	TargetScope  TargetScope     `json:"target_scope"`
	ShowOnPages  map[string]bool `json:"show_on_pages"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// EligibleFor reports whether n may be shown on pageID.
// Only page-scoped notifications have a matching rule; "all" and "specific"
// never match.
func (n Notification) EligibleFor(pageID string) bool {
	if !n.IsActive {
		return false
	}
	switch n.TargetScope {
	case ScopePages:
		return n.ShowOnPages[pageID]
	default:
		return false
	}
}

// RevealDelay is how long a page view waits before showing n, in seconds.
func (n Notification) RevealDelay(defaultSeconds float64) float64 {
	if n.DelaySeconds != nil && *n.DelaySeconds >= 0 {
		return *n.DelaySeconds
	}
	return defaultSeconds
}

// Clone returns a copy that shares no maps or pointers with n.
func (n Notification) Clone() Notification {
	out := n
	out.ShowOnPages = maps.Clone(n.ShowOnPages)
	if n.DelaySeconds != nil {
		d := *n.DelaySeconds
		out.DelaySeconds = &d
	}
	return out
}

// CreateNotificationRequest is the admin payload for a new notification.
type CreateNotificationRequest struct {
	Title        string          `json:"title" binding:"required"`
	Message      string          `json:"message" binding:"required"`
	ImageURL     string          `json:"image_url" binding:"omitempty,url"`
	LinkURL      string          `json:"link_url" binding:"omitempty,url"`
	ButtonText   string          `json:"button_text"`
	DelaySeconds *float64        `json:"delay_seconds" binding:"omitempty,gte=0"`
	IsActive     bool            `json:"is_active"`
	TargetScope  TargetScope     `json:"target_scope" binding:"required,oneof=all pages specific"`
	ShowOnPages  map[string]bool `json:"show_on_pages"`
}

// UpdateNotificationRequest is a partial update; nil fields are left untouched.
type UpdateNotificationRequest struct {
	Title        *string          `json:"title,omitempty" binding:"omitempty,min=1"`
	Message      *string          `json:"message,omitempty" binding:"omitempty,min=1"`
	ImageURL     *string          `json:"image_url,omitempty" binding:"omitempty,url"`
	LinkURL      *string          `json:"link_url,omitempty" binding:"omitempty,url"`
	ButtonText   *string          `json:"button_text,omitempty"`
	DelaySeconds *float64         `json:"delay_seconds,omitempty" binding:"omitempty,gte=0"`
	IsActive     *bool            `json:"is_active,omitempty"`
	TargetScope  *TargetScope     `json:"target_scope,omitempty" binding:"omitempty,oneof=all pages specific"`
	ShowOnPages  *map[string]bool `json:"show_on_pages,omitempty"`
}

// Empty reports whether the update carries no fields.
func (u UpdateNotificationRequest) Empty() bool {
	return u.Title == nil && u.Message == nil && u.ImageURL == nil && u.LinkURL == nil &&
		u.ButtonText == nil && u.DelaySeconds == nil && u.IsActive == nil &&
		u.TargetScope == nil && u.ShowOnPages == nil
}

// ActiveNotificationResponse is the envelope returned to page views.
type ActiveNotificationResponse struct {
	Success      bool          `json:"success"`
	Notification *Notification `json:"notification"`
}

// ErrorResponse is the failure envelope of the public endpoint.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message"`
}

// ChangeAction names the admin write that produced a ChangeEvent.
type ChangeAction string

const (
	ActionCreated ChangeAction = "created"
	ActionUpdated ChangeAction = "updated"
	ActionDeleted ChangeAction = "deleted"
)

// ChangeEvent is published after every successful admin write.
type ChangeEvent struct {
	EventID        string       `json:"event_id"`
	NotificationID string       `json:"notification_id"`
	Action         ChangeAction `json:"action"`
	OccurredAt     time.Time    `json:"occurred_at"`
	CorrelationID  string       `json:"correlation_id,omitempty"`
}
