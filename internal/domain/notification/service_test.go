package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pulse/internal/common"
)

// --- mocks ---

type mockNotificationStore struct{ mock.Mock }

func (m *mockNotificationStore) Create(ctx context.Context, n *Notification) error {
	return m.Called(ctx, n).Error(0)
}
func (m *mockNotificationStore) CreateMany(ctx context.Context, ns []*Notification) error {
	return m.Called(ctx, ns).Error(0)
}
func (m *mockNotificationStore) GetByID(ctx context.Context, id string) (*Notification, error) {
	args := m.Called(ctx, id)
	if n, _ := args.Get(0).(*Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockNotificationStore) GetByUserID(ctx context.Context, userID int64, skip, limit int) ([]*Notification, error) {
	args := m.Called(ctx, userID, skip, limit)
	return args.Get(0).([]*Notification), args.Error(1)
}
func (m *mockNotificationStore) CountByUserID(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}
func (m *mockNotificationStore) MarkRead(ctx context.Context, userID int64, id string) (*Notification, error) {
	args := m.Called(ctx, userID, id)
	if n, _ := args.Get(0).(*Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockNotificationStore) MarkAllRead(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}
func (m *mockNotificationStore) MarkSent(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockNotificationStore) AppendChannel(ctx context.Context, id string, ch Channel) error {
	return m.Called(ctx, id, ch).Error(0)
}
func (m *mockNotificationStore) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*Notification, error) {
	args := m.Called(ctx, olderThan, limit)
	return args.Get(0).([]*Notification), args.Error(1)
}

type mockSettingsStore struct{ mock.Mock }

func (m *mockSettingsStore) GetOrCreate(ctx context.Context, userID int64) (*Settings, error) {
	args := m.Called(ctx, userID)
	if s, _ := args.Get(0).(*Settings); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSettingsStore) UpdateByUserID(ctx context.Context, userID int64, update *SettingsUpdate) (*Settings, error) {
	args := m.Called(ctx, userID, update)
	if s, _ := args.Get(0).(*Settings); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockProjectDirectory struct{ mock.Mock }

func (m *mockProjectDirectory) ProjectByID(ctx context.Context, projectID int64) (*Project, error) {
	args := m.Called(ctx, projectID)
	if p, _ := args.Get(0).(*Project); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockProjectDirectory) ParticipantIDs(ctx context.Context, projectID int64) ([]int64, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).([]int64), args.Error(1)
}

type mockUserDirectory struct{ mock.Mock }

func (m *mockUserDirectory) ContactByUserID(ctx context.Context, userID int64) (*Contact, error) {
	args := m.Called(ctx, userID)
	if c, _ := args.Get(0).(*Contact); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockEnqueuer struct{ mock.Mock }

func (m *mockEnqueuer) EnqueueDelivery(notificationID string, ch Channel, recipientID int64) error {
	return m.Called(notificationID, ch, recipientID).Error(0)
}

type mockRateLimiter struct{ mock.Mock }

func (m *mockRateLimiter) Allow(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type mockSender struct {
	mock.Mock
	channel Channel
}

func (m *mockSender) Send(ctx context.Context, contact *Contact, n *Notification) error {
	return m.Called(ctx, contact, n).Error(0)
}
func (m *mockSender) Channel() Channel { return m.channel }

func allEnabledSettings(userID int64) *Settings {
	return &Settings{
		UserID:          userID,
		EmailEnabled:    true,
		TelegramEnabled: true,
		InAppEnabled:    true,
	}
}

// --- SendToUser ---

func TestSendToUser_DefaultChannelAllowed(t *testing.T) {
	store := new(mockNotificationStore)
	settings := new(mockSettingsStore)
	projects := new(mockProjectDirectory)
	enqueuer := new(mockEnqueuer)

	settings.On("GetOrCreate", mock.Anything, int64(1)).Return(&Settings{
		UserID:       1,
		InAppEnabled: true,
	}, nil)
	store.On("Create", mock.Anything, mock.Anything).Return(nil)
	enqueuer.On("EnqueueDelivery", mock.Anything, ChannelInApp, int64(1)).Return(nil)

	svc := NewService(store, settings, projects, enqueuer, nil)

	senderID := int64(2)
	n, code, err := svc.SendToUser(context.Background(), 1, &senderID, TypeSystemAlert,
		map[string]any{"message": "Down for maintenance"}, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, DeliveryFull, code)
	assert.Equal(t, int64(1), n.RecipientID)
	require.NotNil(t, n.SenderID)
	assert.Equal(t, int64(2), *n.SenderID)
	assert.Equal(t, TypeSystemAlert, n.Type)
	assert.Equal(t, StatusPending, n.Status)
	assert.Equal(t, "Системное уведомление", n.Title)
	assert.Equal(t, "Down for maintenance", n.Body)
	assert.Equal(t, []Channel{ChannelInApp}, n.Channels)
	assert.NotEmpty(t, n.ID)
	assert.Nil(t, n.SentAt)
	assert.Nil(t, n.ReadAt)

	store.AssertExpectations(t)
	enqueuer.AssertNumberOfCalls(t, "EnqueueDelivery", 1)
}

func TestSendToUser_RequestedChannelSuppressed(t *testing.T) {
	store := new(mockNotificationStore)
	settings := new(mockSettingsStore)
	projects := new(mockProjectDirectory)
	enqueuer := new(mockEnqueuer)

	settings.On("GetOrCreate", mock.Anything, int64(1)).Return(&Settings{
		UserID:       1,
		InAppEnabled: true,
		// telegram disabled
	}, nil)
	store.On("Create", mock.Anything, mock.Anything).Return(nil)

	svc := NewService(store, settings, projects, enqueuer, nil)

	n, code, err := svc.SendToUser(context.Background(), 1, nil, TypeSystemAlert,
		map[string]any{"message": "hi"}, nil, []string{"telegram"})

	require.NoError(t, err)
	assert.Equal(t, DeliveryPartial, code)
	assert.Empty(t, n.Channels)
	enqueuer.AssertNumberOfCalls(t, "EnqueueDelivery", 0)
}

func TestSendToUser_UnknownChannel(t *testing.T) {
	store := new(mockNotificationStore)
	settings := new(mockSettingsStore)
	svc := NewService(store, settings, new(mockProjectDirectory), new(mockEnqueuer), nil)

	_, _, err := svc.SendToUser(context.Background(), 1, nil, TypeSystemAlert,
		map[string]any{"message": "hi"}, nil, []string{"sms", "email", "pigeon"})

	var validation *common.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Message, "pigeon")
	assert.Contains(t, validation.Message, "sms")
	settings.AssertNotCalled(t, "GetOrCreate", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSendToUser_UnknownTemplate(t *testing.T) {
	store := new(mockNotificationStore)
	settings := new(mockSettingsStore)
	settings.On("GetOrCreate", mock.Anything, int64(1)).Return(allEnabledSettings(1), nil)

	svc := NewService(store, settings, new(mockProjectDirectory), new(mockEnqueuer), nil)

	_, _, err := svc.SendToUser(context.Background(), 1, nil, "no_such_template",
		map[string]any{}, nil, nil)

	var validation *common.ValidationError
	require.ErrorAs(t, err, &validation)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSendToUser_RateLimited(t *testing.T) {
	store := new(mockNotificationStore)
	settings := new(mockSettingsStore)
	limiter := new(mockRateLimiter)
	limiter.On("Allow", mock.Anything, int64(1)).Return(false, nil)

	svc := NewService(store, settings, new(mockProjectDirectory), new(mockEnqueuer), limiter)

	_, _, err := svc.SendToUser(context.Background(), 1, nil, TypeSystemAlert,
		map[string]any{"message": "hi"}, nil, nil)

	var validation *common.ValidationError
	require.ErrorAs(t, err, &validation)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSendToUser_RateLimiterFailsOpen(t *testing.T) {
	store := new(mockNotificationStore)
	settings := new(mockSettingsStore)
	limiter := new(mockRateLimiter)

	limiter.On("Allow", mock.Anything, int64(1)).Return(false, errors.New("redis down"))
	settings.On("GetOrCreate", mock.Anything, int64(1)).Return(allEnabledSettings(1), nil)
	store.On("Create", mock.Anything, mock.Anything).Return(nil)

	enqueuer := new(mockEnqueuer)
	enqueuer.On("EnqueueDelivery", mock.Anything, ChannelInApp, int64(1)).Return(nil)

	svc := NewService(store, settings, new(mockProjectDirectory), enqueuer, limiter)

	_, code, err := svc.SendToUser(context.Background(), 1, nil, TypeSystemAlert,
		map[string]any{"message": "hi"}, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, DeliveryFull, code)
}

func TestSendToUser_EnqueuesEveryAllowedChannel(t *testing.T) {
	store := new(mockNotificationStore)
	settings := new(mockSettingsStore)
	enqueuer := new(mockEnqueuer)

	settings.On("GetOrCreate", mock.Anything, int64(1)).Return(allEnabledSettings(1), nil)
	store.On("Create", mock.Anything, mock.Anything).Return(nil)
	enqueuer.On("EnqueueDelivery", mock.Anything, mock.Anything, int64(1)).Return(nil)

	svc := NewService(store, settings, new(mockProjectDirectory), enqueuer, nil)

	n, code, err := svc.SendToUser(context.Background(), 1, nil, TypeProjectInvitation,
		map[string]any{"project_name": "Alpha"}, nil, []string{"in-app", "email", "telegram"})

	require.NoError(t, err)
	assert.Equal(t, DeliveryFull, code)
	assert.Equal(t, []Channel{ChannelInApp, ChannelEmail, ChannelTelegram}, n.Channels)
	enqueuer.AssertNumberOfCalls(t, "EnqueueDelivery", 3)
}

// --- SendToProjectParticipants ---

func TestSendToProject_FanOutDeduplicatesAuthor(t *testing.T) {
	store := new(mockNotificationStore)
	settings := new(mockSettingsStore)
	projects := new(mockProjectDirectory)
	enqueuer := new(mockEnqueuer)

	projects.On("ProjectByID", mock.Anything, int64(42)).Return(&Project{ID: 42, Name: "Alpha", AuthorID: 10}, nil)
	projects.On("ParticipantIDs", mock.Anything, int64(42)).Return([]int64{10, 11}, nil)
	settings.On("GetOrCreate", mock.Anything, mock.Anything).Return(allEnabledSettings(0), nil)
	store.On("CreateMany", mock.Anything, mock.Anything).Return(nil)
	enqueuer.On("EnqueueDelivery", mock.Anything, ChannelInApp, mock.Anything).Return(nil)

	svc := NewService(store, settings, projects, enqueuer, nil)

	senderID := int64(2)
	ns, code, err := svc.SendToProjectParticipants(context.Background(), 42, &senderID,
		TypeProjectAnnouncement, map[string]any{"project_name": "Alpha", "message": "Standup at 10"}, true, nil)

	require.NoError(t, err)
	assert.Equal(t, DeliveryFull, code)
	require.Len(t, ns, 2)
	assert.Equal(t, int64(10), ns[0].RecipientID)
	assert.Equal(t, int64(11), ns[1].RecipientID)
	for _, n := range ns {
		require.NotNil(t, n.ProjectID)
		assert.Equal(t, int64(42), *n.ProjectID)
		assert.Equal(t, "Объявление проекта", n.Title)
		assert.Equal(t, "Новое объявление в проекте «Alpha»: Standup at 10", n.Body)
	}
	store.AssertNumberOfCalls(t, "CreateMany", 1)
	enqueuer.AssertNumberOfCalls(t, "EnqueueDelivery", 2)
}

func TestSendToProject_NotFound(t *testing.T) {
	store := new(mockNotificationStore)
	projects := new(mockProjectDirectory)
	projects.On("ProjectByID", mock.Anything, int64(99)).Return(nil, nil)

	svc := NewService(store, new(mockSettingsStore), projects, new(mockEnqueuer), nil)

	_, _, err := svc.SendToProjectParticipants(context.Background(), 99, nil,
		TypeProjectAnnouncement, map[string]any{"project_name": "A", "message": "m"}, true, nil)

	var notFound *common.NotFoundError
	require.ErrorAs(t, err, &notFound)
	store.AssertNotCalled(t, "CreateMany", mock.Anything, mock.Anything)
}

func TestSendToProject_EmptyRecipients(t *testing.T) {
	store := new(mockNotificationStore)
	projects := new(mockProjectDirectory)
	enqueuer := new(mockEnqueuer)

	projects.On("ProjectByID", mock.Anything, int64(7)).Return(&Project{ID: 7, AuthorID: 5}, nil)
	projects.On("ParticipantIDs", mock.Anything, int64(7)).Return([]int64{}, nil)

	svc := NewService(store, new(mockSettingsStore), projects, enqueuer, nil)

	ns, code, err := svc.SendToProjectParticipants(context.Background(), 7, nil,
		TypeProjectAnnouncement, map[string]any{"project_name": "A", "message": "m"}, false, nil)

	require.NoError(t, err)
	assert.Empty(t, ns)
	assert.Equal(t, DeliveryFull, code)
	store.AssertNotCalled(t, "CreateMany", mock.Anything, mock.Anything)
	enqueuer.AssertNotCalled(t, "EnqueueDelivery", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendToProject_PartialWhenAnyRecipientSuppressed(t *testing.T) {
	store := new(mockNotificationStore)
	settings := new(mockSettingsStore)
	projects := new(mockProjectDirectory)
	enqueuer := new(mockEnqueuer)

	projects.On("ProjectByID", mock.Anything, int64(42)).Return(&Project{ID: 42, AuthorID: 10}, nil)
	projects.On("ParticipantIDs", mock.Anything, int64(42)).Return([]int64{10, 11}, nil)
	settings.On("GetOrCreate", mock.Anything, int64(10)).Return(allEnabledSettings(10), nil)
	settings.On("GetOrCreate", mock.Anything, int64(11)).Return(&Settings{UserID: 11}, nil) // all disabled
	store.On("CreateMany", mock.Anything, mock.Anything).Return(nil)
	enqueuer.On("EnqueueDelivery", mock.Anything, ChannelInApp, int64(10)).Return(nil)

	svc := NewService(store, settings, projects, enqueuer, nil)

	ns, code, err := svc.SendToProjectParticipants(context.Background(), 42, nil,
		TypeProjectAnnouncement, map[string]any{"project_name": "A", "message": "m"}, true, nil)

	require.NoError(t, err)
	assert.Equal(t, DeliveryPartial, code)
	require.Len(t, ns, 2)
	assert.Equal(t, []Channel{ChannelInApp}, ns[0].Channels)
	assert.Empty(t, ns[1].Channels)
	// only the permitted recipient's channel is dispatched
	enqueuer.AssertNumberOfCalls(t, "EnqueueDelivery", 1)
}

func TestSendToProject_TemplateFailureAbortsBeforePersistence(t *testing.T) {
	store := new(mockNotificationStore)
	settings := new(mockSettingsStore)
	projects := new(mockProjectDirectory)

	projects.On("ProjectByID", mock.Anything, int64(42)).Return(&Project{ID: 42, AuthorID: 10}, nil)
	projects.On("ParticipantIDs", mock.Anything, int64(42)).Return([]int64{10, 11}, nil)
	settings.On("GetOrCreate", mock.Anything, mock.Anything).Return(allEnabledSettings(0), nil)

	svc := NewService(store, settings, projects, new(mockEnqueuer), nil)

	_, _, err := svc.SendToProjectParticipants(context.Background(), 42, nil,
		TypeProjectAnnouncement, map[string]any{"project_name": "A"}, true, nil)

	var validation *common.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Message, "message")
	store.AssertNotCalled(t, "CreateMany", mock.Anything, mock.Anything)
}

// --- read tracking ---

func TestMarkRead_NotFound(t *testing.T) {
	store := new(mockNotificationStore)
	store.On("MarkRead", mock.Anything, int64(1), "n-1").Return(nil, nil)

	svc := NewService(store, new(mockSettingsStore), new(mockProjectDirectory), new(mockEnqueuer), nil)

	_, err := svc.MarkRead(context.Background(), 1, "n-1")

	var notFound *common.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestMarkRead_Idempotent(t *testing.T) {
	readAt := time.Date(2026, 2, 17, 10, 5, 0, 0, time.UTC)
	marked := &Notification{ID: "n-1", RecipientID: 1, Status: StatusRead, ReadAt: &readAt}

	store := new(mockNotificationStore)
	store.On("MarkRead", mock.Anything, int64(1), "n-1").Return(marked, nil)

	svc := NewService(store, new(mockSettingsStore), new(mockProjectDirectory), new(mockEnqueuer), nil)

	first, err := svc.MarkRead(context.Background(), 1, "n-1")
	require.NoError(t, err)
	second, err := svc.MarkRead(context.Background(), 1, "n-1")
	require.NoError(t, err)

	assert.Equal(t, first.ReadAt, second.ReadAt)
	assert.Equal(t, StatusRead, second.Status)
}

func TestMarkAllRead_ReturnsCount(t *testing.T) {
	store := new(mockNotificationStore)
	store.On("MarkAllRead", mock.Anything, int64(1)).Return(3, nil)

	svc := NewService(store, new(mockSettingsStore), new(mockProjectDirectory), new(mockEnqueuer), nil)

	updated, err := svc.MarkAllRead(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, updated)
}

// --- listing ---

func TestListUserNotifications_Pagination(t *testing.T) {
	store := new(mockNotificationStore)
	store.On("GetByUserID", mock.Anything, int64(1), 20, 10).Return([]*Notification{{ID: "n-1"}}, nil)
	store.On("CountByUserID", mock.Anything, int64(1)).Return(21, nil)

	svc := NewService(store, new(mockSettingsStore), new(mockProjectDirectory), new(mockEnqueuer), nil)

	items, total, err := svc.ListUserNotifications(context.Background(), 1, 3, 10)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 21, total)
	store.AssertExpectations(t)
}

func TestTemplates_ExposesRegistryContract(t *testing.T) {
	svc := NewService(new(mockNotificationStore), new(mockSettingsStore), new(mockProjectDirectory), new(mockEnqueuer), nil)

	templates := svc.Templates()
	assert.Equal(t, []string{"message"}, templates[TypeSystemAlert])
	assert.Equal(t, []string{"project_name", "message"}, templates[TypeProjectAnnouncement])
}

// --- settings service ---

func TestSettingsService_UpdatePassesPartialThrough(t *testing.T) {
	store := new(mockSettingsStore)
	enabled := false
	update := &SettingsUpdate{TelegramEnabled: &enabled}
	store.On("UpdateByUserID", mock.Anything, int64(1), update).Return(&Settings{
		UserID:          1,
		InAppEnabled:    true,
		EmailEnabled:    true,
		TelegramEnabled: false,
	}, nil)

	svc := NewSettingsService(store)
	settings, err := svc.Update(context.Background(), 1, update)

	require.NoError(t, err)
	assert.False(t, settings.TelegramEnabled)
	assert.True(t, settings.EmailEnabled)
}
