package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/common"
)

func TestNormalizeChannels(t *testing.T) {
	tests := []struct {
		name      string
		requested []string
		want      []Channel
	}{
		{name: "nil defaults to in-app", requested: nil, want: []Channel{ChannelInApp}},
		{name: "empty defaults to in-app", requested: []string{}, want: []Channel{ChannelInApp}},
		{name: "single channel", requested: []string{"email"}, want: []Channel{ChannelEmail}},
		{
			name:      "order preserved",
			requested: []string{"telegram", "in-app"},
			want:      []Channel{ChannelTelegram, ChannelInApp},
		},
		{
			name:      "duplicates collapsed",
			requested: []string{"email", "email", "in-app", "email"},
			want:      []Channel{ChannelEmail, ChannelInApp},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeChannels(tc.requested)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeChannels_UnknownNames(t *testing.T) {
	_, err := NormalizeChannels([]string{"sms", "email", "push", "sms"})

	var validation *common.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "unknown notification channels: push, sms", validation.Message)
}

func TestFilterAllowed(t *testing.T) {
	all := []Channel{ChannelInApp, ChannelEmail, ChannelTelegram}

	tests := []struct {
		name     string
		settings *Settings
		want     []Channel
	}{
		{
			name:     "everything enabled",
			settings: &Settings{InAppEnabled: true, EmailEnabled: true, TelegramEnabled: true},
			want:     all,
		},
		{
			name:     "telegram disabled",
			settings: &Settings{InAppEnabled: true, EmailEnabled: true},
			want:     []Channel{ChannelInApp, ChannelEmail},
		},
		{
			name:     "everything disabled",
			settings: &Settings{},
			want:     []Channel{},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FilterAllowed(all, tc.settings))
		})
	}
}
