package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"

	"pulse/internal/domain/notification"
)

const (
	notificationsTable = "notifications"
	settingsTable      = "notification_settings"
	projectsTable      = "projects"
	participantsTable  = "project_participants"
	usersTable         = "users"
)

var (
	_ notification.NotificationStore = (*SupabaseStore)(nil)
	_ notification.SettingsStore     = (*SupabaseStore)(nil)
	_ notification.ProjectDirectory  = (*SupabaseStore)(nil)
	_ notification.UserDirectory     = (*SupabaseStore)(nil)
)

// SupabaseStore implements every persistence contract of the notification
// domain on the Supabase Go SDK.
type SupabaseStore struct {
	client *supa.Client
}

// NewSupabaseStore creates a new Supabase-backed store.
func NewSupabaseStore(supabaseURL, serviceKey string) (*SupabaseStore, error) {
	client, err := supa.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

// notificationRow is the PostgREST representation of a notification.
type notificationRow struct {
	ID          string   `json:"id"`
	RecipientID int64    `json:"recipient_id"`
	SenderID    *int64   `json:"sender_id,omitempty"`
	ProjectID   *int64   `json:"project_id,omitempty"`
	Type        string   `json:"type"`
	Status      string   `json:"status"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Channels    []string `json:"channels"`
	CreatedAt   string   `json:"created_at,omitempty"`
	SentAt      *string  `json:"sent_at,omitempty"`
	ReadAt      *string  `json:"read_at,omitempty"`
}

// Create inserts a single notification row.
func (s *SupabaseStore) Create(ctx context.Context, n *notification.Notification) error {
	_, _, err := s.client.From(notificationsTable).Insert(toRow(n), false, "", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

// CreateMany inserts a batch of notification rows in one call.
func (s *SupabaseStore) CreateMany(ctx context.Context, ns []*notification.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	rows := make([]notificationRow, len(ns))
	for i, n := range ns {
		rows[i] = toRow(n)
	}
	_, _, err := s.client.From(notificationsTable).Insert(rows, false, "", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("inserting notification batch: %w", err)
	}
	return nil
}

// GetByID retrieves a notification by id, nil when absent.
func (s *SupabaseStore) GetByID(ctx context.Context, id string) (*notification.Notification, error) {
	data, _, err := s.client.From(notificationsTable).Select("*", "", false).Eq("id", id).Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching notification: %w", err)
	}

	var rows []notificationRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing notification: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return fromRow(&rows[0]), nil
}

// GetByUserID lists a user's notifications newest first.
func (s *SupabaseStore) GetByUserID(ctx context.Context, userID int64, skip, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 10
	}
	data, _, err := s.client.From(notificationsTable).
		Select("*", "", false).
		Eq("recipient_id", fmt.Sprint(userID)).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Range(skip, skip+limit-1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return parseRows(data)
}

// CountByUserID counts all of a user's notifications.
func (s *SupabaseStore) CountByUserID(ctx context.Context, userID int64) (int, error) {
	_, count, err := s.client.From(notificationsTable).
		Select("id", "exact", false).
		Eq("recipient_id", fmt.Sprint(userID)).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("counting notifications: %w", err)
	}
	return int(count), nil
}

// MarkRead marks one notification of the user as read. The read_at stamp is
// first-wins: an already-read row is returned unchanged, so re-marking is
// idempotent. Returns nil when the id does not exist or the row belongs to
// another user.
func (s *SupabaseStore) MarkRead(ctx context.Context, userID int64, id string) (*notification.Notification, error) {
	data, _, err := s.client.From(notificationsTable).
		Select("*", "", false).
		Eq("id", id).
		Eq("recipient_id", fmt.Sprint(userID)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching notification: %w", err)
	}

	var rows []notificationRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing notification: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	n := fromRow(&rows[0])
	if n.ReadAt != nil {
		return n, nil
	}

	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339Nano)
	// The read_at-is-null filter keeps a concurrent mark-read from stamping
	// twice; whoever wins, the timestamp is written exactly once.
	_, _, err = s.client.From(notificationsTable).
		Update(map[string]any{
			"status":  string(notification.StatusRead),
			"read_at": nowStr,
		}, "minimal", "").
		Eq("id", id).
		Is("read_at", "null").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("marking notification read: %w", err)
	}

	n.Status = notification.StatusRead
	n.ReadAt = &now
	return n, nil
}

// MarkAllRead marks every unread notification of the user and returns the
// count actually transitioned.
func (s *SupabaseStore) MarkAllRead(ctx context.Context, userID int64) (int, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	data, _, err := s.client.From(notificationsTable).
		Update(map[string]any{
			"status":  string(notification.StatusRead),
			"read_at": now,
		}, "representation", "").
		Eq("recipient_id", fmt.Sprint(userID)).
		Is("read_at", "null").
		Execute()
	if err != nil {
		return 0, fmt.Errorf("marking all notifications read: %w", err)
	}

	var rows []notificationRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, fmt.Errorf("parsing mark-all-read result: %w", err)
	}
	return len(rows), nil
}

// MarkSent transitions a pending notification to sent with a first-wins
// sent_at stamp. The status filter keeps the transition monotonic: a row
// already sent or read is left untouched.
func (s *SupabaseStore) MarkSent(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, _, err := s.client.From(notificationsTable).
		Update(map[string]any{
			"status":  string(notification.StatusSent),
			"sent_at": now,
		}, "minimal", "").
		Eq("id", id).
		Eq("status", string(notification.StatusPending)).
		Execute()
	if err != nil {
		return fmt.Errorf("marking notification sent: %w", err)
	}
	return nil
}

// AppendChannel adds a channel marker to the notification's channel set if
// absent. Compare-and-append through the store; markers are never removed.
func (s *SupabaseStore) AppendChannel(ctx context.Context, id string, ch notification.Channel) error {
	n, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n == nil {
		return nil
	}
	for _, existing := range n.Channels {
		if existing == ch {
			return nil
		}
	}

	channels := make([]string, 0, len(n.Channels)+1)
	for _, existing := range n.Channels {
		channels = append(channels, string(existing))
	}
	channels = append(channels, string(ch))

	_, _, err = s.client.From(notificationsTable).
		Update(map[string]any{"channels": channels}, "minimal", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("appending channel marker: %w", err)
	}
	return nil
}

// ListStalePending lists pending notifications created before olderThan,
// oldest first.
func (s *SupabaseStore) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	data, _, err := s.client.From(notificationsTable).
		Select("*", "", false).
		Eq("status", string(notification.StatusPending)).
		Lt("created_at", olderThan.UTC().Format(time.RFC3339Nano)).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		Range(0, limit-1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("listing stale notifications: %w", err)
	}
	return parseRows(data)
}

// settingsRow is the PostgREST representation of a settings row.
type settingsRow struct {
	UserID          int64 `json:"user_id"`
	EmailEnabled    bool  `json:"email_enabled"`
	TelegramEnabled bool  `json:"telegram_enabled"`
	InAppEnabled    bool  `json:"in_app_enabled"`

	ProjectInvitationEnabled   bool `json:"project_invitation_enabled"`
	ProjectRemovalEnabled      bool `json:"project_removal_enabled"`
	JoinRequestEnabled         bool `json:"join_request_enabled"`
	JoinResponseEnabled        bool `json:"join_response_enabled"`
	ProjectAnnouncementEnabled bool `json:"project_announcement_enabled"`
	SystemAlertEnabled         bool `json:"system_alert_enabled"`
}

// GetOrCreate returns the user's settings row, creating it with every
// toggle enabled on first access.
func (s *SupabaseStore) GetOrCreate(ctx context.Context, userID int64) (*notification.Settings, error) {
	settings, err := s.settingsByUserID(userID)
	if err != nil {
		return nil, err
	}
	if settings != nil {
		return settings, nil
	}

	row := defaultSettingsRow(userID)
	_, _, err = s.client.From(settingsTable).Insert(row, false, "", "minimal", "").Execute()
	if err != nil {
		// A concurrent request may have created the row between the select
		// and the insert; re-read before giving up.
		settings, selErr := s.settingsByUserID(userID)
		if selErr == nil && settings != nil {
			return settings, nil
		}
		return nil, fmt.Errorf("creating notification settings: %w", err)
	}
	return settingsFromRow(&row), nil
}

// UpdateByUserID applies a partial settings update; nil fields keep their
// prior value.
func (s *SupabaseStore) UpdateByUserID(ctx context.Context, userID int64, update *notification.SettingsUpdate) (*notification.Settings, error) {
	// Ensure the row exists first (lazy creation semantics).
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}

	fields := settingsUpdateFields(update)
	if len(fields) == 0 {
		return s.GetOrCreate(ctx, userID)
	}

	data, _, err := s.client.From(settingsTable).
		Update(fields, "representation", "").
		Eq("user_id", fmt.Sprint(userID)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("updating notification settings: %w", err)
	}

	var rows []settingsRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing settings update result: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("settings row missing after update for user %d", userID)
	}
	return settingsFromRow(&rows[0]), nil
}

// ProjectByID returns the project, or nil when absent.
func (s *SupabaseStore) ProjectByID(ctx context.Context, projectID int64) (*notification.Project, error) {
	data, _, err := s.client.From(projectsTable).
		Select("id,name,author_id", "", false).
		Eq("id", fmt.Sprint(projectID)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching project: %w", err)
	}

	var rows []notification.Project
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing project: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// ParticipantIDs returns the user ids of all project participants.
func (s *SupabaseStore) ParticipantIDs(ctx context.Context, projectID int64) ([]int64, error) {
	data, _, err := s.client.From(participantsTable).
		Select("participant_id", "", false).
		Eq("project_id", fmt.Sprint(projectID)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching project participants: %w", err)
	}

	var rows []struct {
		ParticipantID int64 `json:"participant_id"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing project participants: %w", err)
	}
	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ParticipantID
	}
	return ids, nil
}

// ContactByUserID returns the user's contact info, or nil when unknown.
func (s *SupabaseStore) ContactByUserID(ctx context.Context, userID int64) (*notification.Contact, error) {
	data, _, err := s.client.From(usersTable).
		Select("id,email,telegram_chat_id", "", false).
		Eq("id", fmt.Sprint(userID)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching user contact: %w", err)
	}

	var rows []struct {
		ID             int64   `json:"id"`
		Email          *string `json:"email"`
		TelegramChatID *int64  `json:"telegram_chat_id"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing user contact: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	contact := &notification.Contact{UserID: rows[0].ID}
	if rows[0].Email != nil {
		contact.Email = *rows[0].Email
	}
	if rows[0].TelegramChatID != nil {
		contact.TelegramChatID = *rows[0].TelegramChatID
	}
	return contact, nil
}

func toRow(n *notification.Notification) notificationRow {
	channels := make([]string, len(n.Channels))
	for i, ch := range n.Channels {
		channels[i] = string(ch)
	}
	return notificationRow{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		SenderID:    n.SenderID,
		ProjectID:   n.ProjectID,
		Type:        n.Type,
		Status:      string(n.Status),
		Title:       n.Title,
		Body:        n.Body,
		Channels:    channels,
		CreatedAt:   n.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromRow(row *notificationRow) *notification.Notification {
	channels := make([]notification.Channel, len(row.Channels))
	for i, ch := range row.Channels {
		channels[i] = notification.Channel(ch)
	}
	n := &notification.Notification{
		ID:          row.ID,
		RecipientID: row.RecipientID,
		SenderID:    row.SenderID,
		ProjectID:   row.ProjectID,
		Type:        row.Type,
		Status:      notification.Status(row.Status),
		Title:       row.Title,
		Body:        row.Body,
		Channels:    channels,
	}
	if t, err := time.Parse(time.RFC3339Nano, row.CreatedAt); err == nil {
		n.CreatedAt = t
	}
	if row.SentAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *row.SentAt); err == nil {
			n.SentAt = &t
		}
	}
	if row.ReadAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *row.ReadAt); err == nil {
			n.ReadAt = &t
		}
	}
	return n
}

func parseRows(data []byte) ([]*notification.Notification, error) {
	var rows []notificationRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing notification list: %w", err)
	}
	ns := make([]*notification.Notification, len(rows))
	for i := range rows {
		ns[i] = fromRow(&rows[i])
	}
	return ns, nil
}

func defaultSettingsRow(userID int64) settingsRow {
	return settingsRow{
		UserID:                     userID,
		EmailEnabled:               true,
		TelegramEnabled:            true,
		InAppEnabled:               true,
		ProjectInvitationEnabled:   true,
		ProjectRemovalEnabled:      true,
		JoinRequestEnabled:         true,
		JoinResponseEnabled:        true,
		ProjectAnnouncementEnabled: true,
		SystemAlertEnabled:         true,
	}
}

func settingsFromRow(row *settingsRow) *notification.Settings {
	return &notification.Settings{
		UserID:                     row.UserID,
		EmailEnabled:               row.EmailEnabled,
		TelegramEnabled:            row.TelegramEnabled,
		InAppEnabled:               row.InAppEnabled,
		ProjectInvitationEnabled:   row.ProjectInvitationEnabled,
		ProjectRemovalEnabled:      row.ProjectRemovalEnabled,
		JoinRequestEnabled:         row.JoinRequestEnabled,
		JoinResponseEnabled:        row.JoinResponseEnabled,
		ProjectAnnouncementEnabled: row.ProjectAnnouncementEnabled,
		SystemAlertEnabled:         row.SystemAlertEnabled,
	}
}

func settingsUpdateFields(update *notification.SettingsUpdate) map[string]any {
	fields := make(map[string]any)
	set := func(column string, value *bool) {
		if value != nil {
			fields[column] = *value
		}
	}
	set("email_enabled", update.EmailEnabled)
	set("telegram_enabled", update.TelegramEnabled)
	set("in_app_enabled", update.InAppEnabled)
	set("project_invitation_enabled", update.ProjectInvitationEnabled)
	set("project_removal_enabled", update.ProjectRemovalEnabled)
	set("join_request_enabled", update.JoinRequestEnabled)
	set("join_response_enabled", update.JoinResponseEnabled)
	set("project_announcement_enabled", update.ProjectAnnouncementEnabled)
	set("system_alert_enabled", update.SystemAlertEnabled)
	return fields
}

func (s *SupabaseStore) settingsByUserID(userID int64) (*notification.Settings, error) {
	data, _, err := s.client.From(settingsTable).
		Select("*", "", false).
		Eq("user_id", fmt.Sprint(userID)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching notification settings: %w", err)
	}

	var rows []settingsRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing notification settings: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return settingsFromRow(&rows[0]), nil
}
