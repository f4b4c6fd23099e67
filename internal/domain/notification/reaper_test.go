package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestReaperConfigDefaults(t *testing.T) {
	r := NewReaper(new(mockNotificationStore), new(mockEnqueuer), ReaperConfig{})

	assert.Equal(t, 5*time.Minute, r.config.Interval)
	assert.Equal(t, 10*time.Minute, r.config.StaleThreshold)
	assert.Equal(t, 50, r.config.BatchSize)
}

func TestSweep_ReEnqueuesPerRecordedChannel(t *testing.T) {
	store := new(mockNotificationStore)
	enqueuer := new(mockEnqueuer)

	stale := []*Notification{
		{ID: "n-1", RecipientID: 1, Status: StatusPending, Channels: []Channel{ChannelInApp, ChannelEmail}},
		{ID: "n-2", RecipientID: 2, Status: StatusPending, Channels: []Channel{ChannelTelegram}},
	}
	store.On("ListStalePending", mock.Anything, mock.Anything, 50).Return(stale, nil)
	enqueuer.On("EnqueueDelivery", "n-1", ChannelInApp, int64(1)).Return(nil)
	enqueuer.On("EnqueueDelivery", "n-1", ChannelEmail, int64(1)).Return(nil)
	enqueuer.On("EnqueueDelivery", "n-2", ChannelTelegram, int64(2)).Return(nil)

	r := NewReaper(store, enqueuer, ReaperConfig{})
	r.Sweep(context.Background())

	enqueuer.AssertExpectations(t)
	enqueuer.AssertNumberOfCalls(t, "EnqueueDelivery", 3)
}

func TestSweep_SkipsFullySuppressedRows(t *testing.T) {
	store := new(mockNotificationStore)
	enqueuer := new(mockEnqueuer)

	store.On("ListStalePending", mock.Anything, mock.Anything, 50).Return([]*Notification{
		{ID: "n-1", RecipientID: 1, Status: StatusPending, Channels: []Channel{}},
	}, nil)

	r := NewReaper(store, enqueuer, ReaperConfig{})
	r.Sweep(context.Background())

	enqueuer.AssertNotCalled(t, "EnqueueDelivery", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweep_ListFailureIsNonFatal(t *testing.T) {
	store := new(mockNotificationStore)
	enqueuer := new(mockEnqueuer)
	store.On("ListStalePending", mock.Anything, mock.Anything, 50).Return([]*Notification(nil), errors.New("db down"))

	r := NewReaper(store, enqueuer, ReaperConfig{})
	r.Sweep(context.Background())

	enqueuer.AssertNotCalled(t, "EnqueueDelivery", mock.Anything, mock.Anything, mock.Anything)
}
