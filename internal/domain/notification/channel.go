package notification

import (
	"fmt"
	"sort"
	"strings"

	"pulse/internal/common"
)

// Channel represents a notification delivery channel.
type Channel string

const (
	ChannelInApp    Channel = "in-app"
	ChannelEmail    Channel = "email"
	ChannelTelegram Channel = "telegram"
)

// validChannels is the fixed set of recognized delivery channels.
var validChannels = map[Channel]bool{
	ChannelInApp:    true,
	ChannelEmail:    true,
	ChannelTelegram: true,
}

// NormalizeChannels validates the requested channel names and returns them as
// an ordered set. An empty or absent request defaults to in-app only.
// Unknown names fail with a ValidationError listing every offender.
func NormalizeChannels(requested []string) ([]Channel, error) {
	if len(requested) == 0 {
		return []Channel{ChannelInApp}, nil
	}

	seen := make(map[Channel]bool, len(requested))
	unknown := make(map[string]bool)
	normalized := make([]Channel, 0, len(requested))

	for _, raw := range requested {
		ch := Channel(raw)
		if !validChannels[ch] {
			unknown[raw] = true
			continue
		}
		if seen[ch] {
			continue
		}
		seen[ch] = true
		normalized = append(normalized, ch)
	}

	if len(unknown) > 0 {
		names := make([]string, 0, len(unknown))
		for name := range unknown {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, common.NewValidationError(
			fmt.Sprintf("unknown notification channels: %s", strings.Join(names, ", ")))
	}

	return normalized, nil
}

// FilterAllowed returns the subset of channels enabled in the recipient's
// settings. Channels unknown to the settings are excluded, not errored;
// validation has already happened in NormalizeChannels.
func FilterAllowed(channels []Channel, settings *Settings) []Channel {
	allowed := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		if settings.ChannelEnabled(ch) {
			allowed = append(allowed, ch)
		}
	}
	return allowed
}
