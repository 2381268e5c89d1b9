package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/alphabot-ai/voicethreads/internal/transport"
)

// Delivery is one push of a persisted notification.
type Delivery struct {
	NotificationID int64  `json:"notification_id"`
	RecipientID    int64  `json:"recipient_id"`
	Text           string `json:"text"`
	AudioRef       string `json:"audio_ref,omitempty"`
	ShortCode      string `json:"short_code,omitempty"`
}

// DeliveryHandler performs a delivery.
type DeliveryHandler interface {
	Deliver(ctx context.Context, d Delivery) error
}

// Deliverer pushes deliveries through a Messenger: the message (as a voice
// caption when there is audio), then the bare short code.
type Deliverer struct {
	messenger transport.Messenger
	store     NotificationStore
	logger    zerolog.Logger
}

func NewDeliverer(m transport.Messenger, st NotificationStore, logger zerolog.Logger) *Deliverer {
	return &Deliverer{
		messenger: m,
		store:     st,
		logger:    logger.With().Str("component", "deliverer").Logger(),
	}
}

func (d *Deliverer) Deliver(ctx context.Context, del Delivery) error {
	var err error
	if del.AudioRef != "" {
		err = d.messenger.SendVoice(ctx, del.RecipientID, del.AudioRef, del.Text)
	} else {
		err = d.messenger.SendText(ctx, del.RecipientID, del.Text)
	}
	if err != nil {
		return fmt.Errorf("deliver notification %d: %w", del.NotificationID, err)
	}

	if del.ShortCode != "" {
		if err := d.messenger.SendText(ctx, del.RecipientID, del.ShortCode); err != nil {
			return fmt.Errorf("deliver notification %d code: %w", del.NotificationID, err)
		}
	}

	if err := d.store.MarkNotificationDelivered(ctx, del.NotificationID); err != nil {
		return fmt.Errorf("mark notification %d delivered: %w", del.NotificationID, err)
	}

	d.logger.Debug().
		Int64("notification_id", del.NotificationID).
		Int64("recipient_id", del.RecipientID).
		Msg("notification delivered")
	return nil
}

var _ DeliveryHandler = (*Deliverer)(nil)
