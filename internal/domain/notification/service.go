package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"pulse/internal/common"
)

// Enqueuer defines the contract for enqueuing delivery tasks.
// This keeps the service decoupled from the queue implementation.
type Enqueuer interface {
	EnqueueDelivery(notificationID string, ch Channel, recipientID int64) error
}

// RecipientRateLimiter defines the contract for per-recipient send limiting.
// Implementations live in infra/ratelimit/.
type RecipientRateLimiter interface {
	// Allow reports whether another notification may be sent to the user.
	Allow(ctx context.Context, userID int64) (bool, error)
}

// Service is the notification composer and dispatcher. It renders templates,
// filters channels by recipient preferences, persists notification rows and
// hands delivery off to background tasks.
type Service struct {
	store       NotificationStore
	settings    SettingsStore
	projects    ProjectDirectory
	enqueuer    Enqueuer
	rateLimiter RecipientRateLimiter
}

// NewService creates a new notification service. The rate limiter may be nil
// to disable per-recipient limiting.
func NewService(
	store NotificationStore,
	settings SettingsStore,
	projects ProjectDirectory,
	enqueuer Enqueuer,
	rateLimiter RecipientRateLimiter,
) *Service {
	return &Service{
		store:       store,
		settings:    settings,
		projects:    projects,
		enqueuer:    enqueuer,
		rateLimiter: rateLimiter,
	}
}

// SendToUser creates one notification for the recipient and dispatches a
// delivery task per allowed channel. The delivery code is DeliveryFull when
// every requested channel was permitted by the recipient's settings,
// DeliveryPartial when any was suppressed.
func (s *Service) SendToUser(
	ctx context.Context,
	recipientID int64,
	senderID *int64,
	templateKey string,
	payload map[string]any,
	projectID *int64,
	channels []string,
) (*Notification, DeliveryCode, error) {
	normalized, err := NormalizeChannels(channels)
	if err != nil {
		return nil, DeliveryFull, err
	}

	if s.rateLimiter != nil {
		allowed, err := s.rateLimiter.Allow(ctx, recipientID)
		if err != nil {
			// Fail open — don't block notifications when Redis is down.
			slog.Error("recipient rate limit check failed, proceeding", "recipient_id", recipientID, "error", err)
		} else if !allowed {
			return nil, DeliveryFull, common.NewValidationError(
				fmt.Sprintf("notification rate limit exceeded for recipient %d", recipientID))
		}
	}

	settings, err := s.settings.GetOrCreate(ctx, recipientID)
	if err != nil {
		return nil, DeliveryFull, fmt.Errorf("fetching recipient settings: %w", err)
	}
	allowed := FilterAllowed(normalized, settings)

	title, body, err := RenderTemplate(templateKey, payload)
	if err != nil {
		return nil, DeliveryFull, err
	}

	n := &Notification{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		SenderID:    senderID,
		ProjectID:   projectID,
		Type:        templateKey,
		Status:      StatusPending,
		Title:       title,
		Body:        body,
		Channels:    allowed,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, DeliveryFull, fmt.Errorf("creating notification: %w", err)
	}

	s.dispatch(n.ID, allowed, recipientID)

	code := DeliveryFull
	if len(allowed) != len(normalized) {
		code = DeliveryPartial
	}

	slog.Info("notification created",
		"notification_id", n.ID,
		"recipient_id", recipientID,
		"type", templateKey,
		"channels", allowed,
		"partial", code == DeliveryPartial,
	)
	return n, code, nil
}

// SendToProjectParticipants fans one template+payload out to every project
// participant (plus the author when includeAuthor is set), one notification
// per recipient. A participant who is also the author receives exactly one
// notification. The delivery code is DeliveryPartial when any recipient had
// channels suppressed.
func (s *Service) SendToProjectParticipants(
	ctx context.Context,
	projectID int64,
	senderID *int64,
	templateKey string,
	payload map[string]any,
	includeAuthor bool,
	channels []string,
) ([]*Notification, DeliveryCode, error) {
	normalized, err := NormalizeChannels(channels)
	if err != nil {
		return nil, DeliveryFull, err
	}

	project, err := s.projects.ProjectByID(ctx, projectID)
	if err != nil {
		return nil, DeliveryFull, fmt.Errorf("fetching project: %w", err)
	}
	if project == nil {
		return nil, DeliveryFull, common.NewNotFoundError("project", fmt.Sprint(projectID))
	}

	participantIDs, err := s.projects.ParticipantIDs(ctx, projectID)
	if err != nil {
		return nil, DeliveryFull, fmt.Errorf("resolving project participants: %w", err)
	}

	recipients := make(map[int64]bool, len(participantIDs)+1)
	for _, id := range participantIDs {
		recipients[id] = true
	}
	if includeAuthor {
		recipients[project.AuthorID] = true
	}
	if len(recipients) == 0 {
		return []*Notification{}, DeliveryFull, nil
	}

	// Deterministic creation order for the batch.
	recipientIDs := make([]int64, 0, len(recipients))
	for id := range recipients {
		recipientIDs = append(recipientIDs, id)
	}
	sort.Slice(recipientIDs, func(i, j int) bool { return recipientIDs[i] < recipientIDs[j] })

	// Render once; the payload is shared by every recipient, and a template
	// failure must abort before any persistence.
	title, body, err := RenderTemplate(templateKey, payload)
	if err != nil {
		return nil, DeliveryFull, err
	}

	now := time.Now().UTC()
	suppressed := false
	batch := make([]*Notification, 0, len(recipientIDs))
	for _, recipientID := range recipientIDs {
		settings, err := s.settings.GetOrCreate(ctx, recipientID)
		if err != nil {
			return nil, DeliveryFull, fmt.Errorf("fetching settings for recipient %d: %w", recipientID, err)
		}
		allowed := FilterAllowed(normalized, settings)
		if len(allowed) < len(normalized) {
			suppressed = true
		}
		batch = append(batch, &Notification{
			ID:          uuid.New().String(),
			RecipientID: recipientID,
			SenderID:    senderID,
			ProjectID:   &projectID,
			Type:        templateKey,
			Status:      StatusPending,
			Title:       title,
			Body:        body,
			Channels:    allowed,
			CreatedAt:   now,
		})
	}

	if err := s.store.CreateMany(ctx, batch); err != nil {
		return nil, DeliveryFull, fmt.Errorf("creating notifications: %w", err)
	}

	for _, n := range batch {
		s.dispatch(n.ID, n.Channels, n.RecipientID)
	}

	code := DeliveryFull
	if suppressed {
		code = DeliveryPartial
	}

	slog.Info("project notifications created",
		"project_id", projectID,
		"type", templateKey,
		"recipients", len(batch),
		"partial", suppressed,
	)
	return batch, code, nil
}

// ListUserNotifications returns one page of the user's notifications, newest
// first, together with the total count.
func (s *Service) ListUserNotifications(ctx context.Context, userID int64, page, limit int) ([]*Notification, int, error) {
	skip := (page - 1) * limit
	items, err := s.store.GetByUserID(ctx, userID, skip, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("listing notifications: %w", err)
	}
	total, err := s.store.CountByUserID(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("counting notifications: %w", err)
	}
	return items, total, nil
}

// MarkRead marks one of the user's notifications as read. A notification
// that does not exist or belongs to another user yields a not-found outcome;
// ownership failures are indistinguishable from absence on purpose.
// Idempotent: re-marking an already-read notification leaves read_at as is.
func (s *Service) MarkRead(ctx context.Context, userID int64, notificationID string) (*Notification, error) {
	n, err := s.store.MarkRead(ctx, userID, notificationID)
	if err != nil {
		return nil, fmt.Errorf("marking notification read: %w", err)
	}
	if n == nil {
		return nil, common.NewNotFoundError("notification", notificationID)
	}
	return n, nil
}

// MarkAllRead marks every unread notification owned by the user and returns
// the count actually transitioned. An empty result is not an error.
func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int, error) {
	updated, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("marking all notifications read: %w", err)
	}
	return updated, nil
}

// Templates returns the template contract: every template key mapped to its
// required payload fields.
func (s *Service) Templates() map[string][]string {
	return RequiredFields()
}

// dispatch enqueues one delivery task per allowed channel. The notification
// row is already durable at this point, so a failed enqueue is logged and
// left to the reaper to recover rather than failing the request.
func (s *Service) dispatch(notificationID string, channels []Channel, recipientID int64) {
	for _, ch := range channels {
		if err := s.enqueuer.EnqueueDelivery(notificationID, ch, recipientID); err != nil {
			slog.Error("enqueue delivery failed",
				"notification_id", notificationID,
				"channel", ch,
				"recipient_id", recipientID,
				"error", err,
			)
		}
	}
}
