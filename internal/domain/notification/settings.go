package notification

import (
	"context"
	"fmt"
)

// Settings holds one user's notification preferences. A row is created
// lazily on first access with every toggle enabled.
//
// Only the channel toggles participate in delivery filtering; the per-type
// toggles are stored and exposed through the settings API.
type Settings struct {
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

// ChannelEnabled reports whether the given delivery channel is enabled.
// Unknown channels are disabled.
func (s *Settings) ChannelEnabled(ch Channel) bool {
	switch ch {
	case ChannelInApp:
		return s.InAppEnabled
	case ChannelEmail:
		return s.EmailEnabled
	case ChannelTelegram:
		return s.TelegramEnabled
	default:
		return false
	}
}

// SettingsUpdate is a partial settings update. Nil fields keep their
// prior value.
type SettingsUpdate struct {
	EmailEnabled    *bool `json:"email_enabled"`
	TelegramEnabled *bool `json:"telegram_enabled"`
	InAppEnabled    *bool `json:"in_app_enabled"`

	ProjectInvitationEnabled   *bool `json:"project_invitation_enabled"`
	ProjectRemovalEnabled      *bool `json:"project_removal_enabled"`
	JoinRequestEnabled         *bool `json:"join_request_enabled"`
	JoinResponseEnabled        *bool `json:"join_response_enabled"`
	ProjectAnnouncementEnabled *bool `json:"project_announcement_enabled"`
	SystemAlertEnabled         *bool `json:"system_alert_enabled"`
}

// SettingsService exposes read and partial-update access to a user's
// notification preferences.
type SettingsService struct {
	store SettingsStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(store SettingsStore) *SettingsService {
	return &SettingsService{store: store}
}

// Get returns the user's settings, creating the default row on first access.
func (s *SettingsService) Get(ctx context.Context, userID int64) (*Settings, error) {
	settings, err := s.store.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching notification settings: %w", err)
	}
	return settings, nil
}

// Update applies a partial update to the user's settings and returns the
// full updated row. Unset fields are untouched.
func (s *SettingsService) Update(ctx context.Context, userID int64, update *SettingsUpdate) (*Settings, error) {
	settings, err := s.store.UpdateByUserID(ctx, userID, update)
	if err != nil {
		return nil, fmt.Errorf("updating notification settings: %w", err)
	}
	return settings, nil
}
