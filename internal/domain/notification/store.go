package notification

import (
	"context"
	"time"
)

// NotificationStore defines the contract for persisting notification rows.
// Implementations live in infra/store/. Lookup methods return nil, nil when
// no row matches.
type NotificationStore interface {
	// Create inserts a single notification row.
	Create(ctx context.Context, n *Notification) error

	// CreateMany inserts a batch of notification rows in one call.
	CreateMany(ctx context.Context, ns []*Notification) error

	// GetByID retrieves a notification by id.
	GetByID(ctx context.Context, id string) (*Notification, error)

	// GetByUserID lists a user's notifications ordered by creation time
	// descending.
	GetByUserID(ctx context.Context, userID int64, skip, limit int) ([]*Notification, error)

	// CountByUserID counts all of a user's notifications.
	CountByUserID(ctx context.Context, userID int64) (int, error)

	// MarkRead marks one notification as read and returns it. It returns
	// nil, nil when the notification does not exist or belongs to another
	// user. Idempotent: re-marking leaves read_at unchanged.
	MarkRead(ctx context.Context, userID int64, id string) (*Notification, error)

	// MarkAllRead marks every unread notification owned by the user and
	// returns the count actually transitioned.
	MarkAllRead(ctx context.Context, userID int64) (int, error)

	// MarkSent transitions a pending notification to sent and stamps
	// sent_at. It is monotonic: a notification already sent or read is left
	// untouched.
	MarkSent(ctx context.Context, id string) error

	// AppendChannel adds a channel marker to the notification's channel set
	// if not already present. Markers are never removed.
	AppendChannel(ctx context.Context, id string, ch Channel) error

	// ListStalePending lists pending notifications created before olderThan,
	// oldest first. Used by the reaper to recover lost delivery tasks.
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*Notification, error)
}

// SettingsStore defines the contract for per-user notification preferences.
type SettingsStore interface {
	// GetOrCreate returns the user's settings row, creating it with every
	// toggle enabled on first access.
	GetOrCreate(ctx context.Context, userID int64) (*Settings, error)

	// UpdateByUserID applies a partial update; nil fields keep their prior
	// value. The row is created first if absent.
	UpdateByUserID(ctx context.Context, userID int64, update *SettingsUpdate) (*Settings, error)
}

// Project is the slice of the project record the dispatcher needs.
type Project struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	AuthorID int64  `json:"author_id"`
}

// ProjectDirectory resolves projects and their participants.
type ProjectDirectory interface {
	// ProjectByID returns the project, or nil, nil when absent.
	ProjectByID(ctx context.Context, projectID int64) (*Project, error)

	// ParticipantIDs returns the user ids of all project participants.
	ParticipantIDs(ctx context.Context, projectID int64) ([]int64, error)
}

// Contact holds the per-channel delivery addresses of one user. Zero values
// mean the user has no address for that channel.
type Contact struct {
	UserID         int64  `json:"id"`
	Email          string `json:"email"`
	TelegramChatID int64  `json:"telegram_chat_id"`
}

// UserDirectory resolves recipient contact information for delivery workers.
type UserDirectory interface {
	// ContactByUserID returns the user's contact info, or nil, nil when the
	// user is unknown.
	ContactByUserID(ctx context.Context, userID int64) (*Contact, error)
}
