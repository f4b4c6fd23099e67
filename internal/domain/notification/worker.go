package notification

import (
	"context"
	"fmt"
	"log/slog"

	"pulse/internal/common"
)

// Sender delivers one rendered notification over one external channel.
// Implementations live in infra/ (Resend for email, Telegram bot API).
type Sender interface {
	// Send delivers the notification to the resolved contact.
	Send(ctx context.Context, contact *Contact, n *Notification) error

	// Channel returns which delivery channel this sender handles.
	Channel() Channel
}

// Deliverer processes delivery tasks from the queue. Channel dispatch is a
// static table from channel to sender, built once at construction; the
// in-app channel needs no sender since in-app delivery is the persisted row
// itself, finalized here.
//
// A missing notification, a recipient without a contact address, or
// preferences that no longer allow the channel are silent no-ops: the
// dispatch already happened, and these are not failures of the core.
type Deliverer struct {
	store    NotificationStore
	settings SettingsStore
	users    UserDirectory
	senders  map[Channel]Sender
}

// NewDeliverer creates a delivery worker with the given channel senders.
func NewDeliverer(store NotificationStore, settings SettingsStore, users UserDirectory, senders ...Sender) *Deliverer {
	table := make(map[Channel]Sender, len(senders))
	for _, s := range senders {
		table[s.Channel()] = s
	}
	return &Deliverer{
		store:    store,
		settings: settings,
		users:    users,
		senders:  table,
	}
}

// ProcessTask handles one (notification, channel) delivery. A returned error
// means the send should be retried by the queue; nil means done, including
// the silent no-op cases.
func (d *Deliverer) ProcessTask(ctx context.Context, p *DeliverPayload) error {
	n, err := d.store.GetByID(ctx, p.NotificationID)
	if err != nil {
		return fmt.Errorf("fetching notification %s: %w", p.NotificationID, err)
	}
	if n == nil {
		slog.Warn("notification gone, skipping delivery",
			"notification_id", p.NotificationID, "channel", p.Channel)
		return nil
	}

	// Preferences may have changed since enqueue; the snapshot taken at
	// dispatch time only covers the initial filter.
	settings, err := d.settings.GetOrCreate(ctx, p.RecipientID)
	if err != nil {
		return fmt.Errorf("fetching settings for recipient %d: %w", p.RecipientID, err)
	}
	if !settings.ChannelEnabled(p.Channel) {
		slog.Info("channel disabled since enqueue, skipping delivery",
			"notification_id", p.NotificationID, "channel", p.Channel, "recipient_id", p.RecipientID)
		return nil
	}

	if p.Channel == ChannelInApp {
		return d.finalize(ctx, n, ChannelInApp)
	}

	contact, err := d.users.ContactByUserID(ctx, p.RecipientID)
	if err != nil {
		return fmt.Errorf("resolving contact for recipient %d: %w", p.RecipientID, err)
	}
	if !hasAddress(contact, p.Channel) {
		slog.Warn("recipient has no address for channel, skipping delivery",
			"notification_id", p.NotificationID, "channel", p.Channel, "recipient_id", p.RecipientID)
		return nil
	}

	sender, ok := d.senders[p.Channel]
	if !ok {
		slog.Error("no sender registered for channel, skipping delivery",
			"notification_id", p.NotificationID, "channel", p.Channel)
		return nil
	}

	if err := sender.Send(ctx, contact, n); err != nil {
		slog.Error("notification delivery failed",
			"notification_id", p.NotificationID,
			"channel", p.Channel,
			"recipient_id", p.RecipientID,
			"error", err,
		)
		return common.NewProviderError(string(p.Channel), err.Error())
	}

	return d.finalize(ctx, n, p.Channel)
}

// finalize records a successful send: append the channel marker through the
// store (compare-and-append, never an in-place mutation) and stamp the
// monotonic sent transition.
func (d *Deliverer) finalize(ctx context.Context, n *Notification, ch Channel) error {
	if err := d.store.AppendChannel(ctx, n.ID, ch); err != nil {
		return fmt.Errorf("appending channel marker: %w", err)
	}
	if err := d.store.MarkSent(ctx, n.ID); err != nil {
		return fmt.Errorf("marking notification sent: %w", err)
	}
	slog.Info("notification delivered",
		"notification_id", n.ID,
		"channel", ch,
		"recipient_id", n.RecipientID,
	)
	return nil
}

func hasAddress(contact *Contact, ch Channel) bool {
	if contact == nil {
		return false
	}
	switch ch {
	case ChannelEmail:
		return contact.Email != ""
	case ChannelTelegram:
		return contact.TelegramChatID != 0
	default:
		return false
	}
}
