package notify

import (
	"context"

	"github.com/infoescom/backend/internal/repositories"
	"github.com/infoescom/backend/pkg/push"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Dispatcher fans a push message out to every subscriber of an area.
// Delivery is best effort and at most once per subscriber per event: a
// failure for one descriptor is logged and the rest of the batch continues.
type Dispatcher struct {
	subscriptions repositories.SubscriptionRepository
	sender        push.Sender
	log           zerolog.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(subs repositories.SubscriptionRepository, sender push.Sender, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{subscriptions: subs, sender: sender, log: log}
}

// NotifyArea attempts delivery to each of the area's subscribers
// independently. The returned count is the number of successful deliveries;
// the error covers only the subscription lookup, never individual sends.
func (d *Dispatcher) NotifyArea(ctx context.Context, areaID primitive.ObjectID, title, body string) (int, error) {
	subs, err := d.subscriptions.GetByArea(ctx, areaID)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, sub := range subs {
		if err := d.sender.Send(ctx, sub.Token, title, body); err != nil {
			d.log.Warn().
				Err(err).
				Str("area", areaID.Hex()).
				Str("user", sub.User.Hex()).
				Msg("push delivery failed")
			continue
		}
		sent++
	}

	d.log.Info().
		Str("area", areaID.Hex()).
		Int("subscribers", len(subs)).
		Int("sent", sent).
		Msg("notification fan-out complete")
	return sent, nil
}
