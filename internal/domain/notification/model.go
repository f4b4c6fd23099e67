package notification

import (
	"net/http"
	"time"
)

// Status represents the lifecycle state of a notification.
// Transitions are monotonic: pending → sent → read, with pending → read
// allowed when the recipient reads before any channel confirms delivery.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusRead    Status = "read"
)

// Notification is one message addressed to exactly one recipient.
//
// Channels holds the delivery channels recorded at creation (requested
// channels intersected with the recipient's preferences). Workers append a
// channel marker on successful send through the store; nothing ever removes
// an entry.
type Notification struct {
	ID          string     `json:"id"`
	RecipientID int64      `json:"recipient_id"`
	SenderID    *int64     `json:"sender_id,omitempty"`
	ProjectID   *int64     `json:"project_id,omitempty"`
	Type        string     `json:"type"`
	Status      Status     `json:"status"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Channels    []Channel  `json:"channels"`
	CreatedAt   time.Time  `json:"created_at"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}

// DeliveryCode reports whether recipient preferences suppressed any of the
// requested channels. It is a caller-visible signal, not an error.
type DeliveryCode int

const (
	// DeliveryFull means every requested channel was permitted.
	DeliveryFull DeliveryCode = iota

	// DeliveryPartial means one or more requested channels were suppressed
	// by recipient preferences.
	DeliveryPartial
)

// HTTPStatus maps the delivery code to the response status: 200 for a full
// dispatch, 202 for a preference-reduced one.
func (c DeliveryCode) HTTPStatus() int {
	if c == DeliveryPartial {
		return http.StatusAccepted
	}
	return http.StatusOK
}

// SendToUserRequest is the API payload for sending a notification to one user.
type SendToUserRequest struct {
	TemplateKey string         `json:"template_key" binding:"required"`
	Payload     map[string]any `json:"payload"`
	Channels    []string       `json:"channels"`
	ProjectID   *int64         `json:"project_id"`
}

// SendToProjectRequest is the API payload for a project-wide fan-out.
type SendToProjectRequest struct {
	TemplateKey   string         `json:"template_key" binding:"required"`
	Payload       map[string]any `json:"payload"`
	Channels      []string       `json:"channels"`
	IncludeAuthor *bool          `json:"include_author"`
}

// ListQuery holds pagination parameters for listing a user's notifications.
type ListQuery struct {
	Page  int `form:"page,default=1" binding:"gte=1"`
	Limit int `form:"limit,default=10" binding:"gte=1,lte=100"`
}

// ListResponse wraps a page of a user's notifications.
type ListResponse struct {
	Items      []*Notification `json:"items"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}

// MarkReadRequest marks a single notification as read. Only an explicit
// true value is accepted.
type MarkReadRequest struct {
	IsRead *bool `json:"is_read" binding:"required"`
}

// MarkAllReadRequest marks every unread notification as read. Only an
// explicit true value is accepted.
type MarkAllReadRequest struct {
	MarkAllRead *bool `json:"mark_all_read" binding:"required"`
}

// MarkAllReadResponse reports how many notifications actually transitioned.
type MarkAllReadResponse struct {
	Updated int `json:"updated"`
}
