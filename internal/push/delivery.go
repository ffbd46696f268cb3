package push

import (
	"errors"
	"log/slog"

	"github.com/dukerupert/ecochallenge/internal/model"
)

type SubscriptionStore interface {
	ListByUser(userID int64) ([]model.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
}

// Delivery sends a payload to every device a user subscribed and prunes
// subscriptions the push service reports as gone.
type Delivery struct {
	service *Service
	subs    SubscriptionStore
	logger  *slog.Logger
}

func NewDelivery(service *Service, subs SubscriptionStore, logger *slog.Logger) *Delivery {
	return &Delivery{service: service, subs: subs, logger: logger}
}

// SendToUser returns the number of devices that accepted the payload.
func (d *Delivery) SendToUser(userID int64, payload Payload) int {
	subs, err := d.subs.ListByUser(userID)
	if err != nil {
		d.logger.Error("list push subscriptions", "user_id", userID, "error", err)
		return 0
	}

	delivered := 0
	for i := range subs {
		sub := &subs[i]
		err := d.service.Send(sub, payload)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, ErrExpired):
			d.logger.Info("removing expired push subscription", "user_id", userID, "subscription_id", sub.ID)
			if err := d.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
				d.logger.Error("delete expired subscription", "subscription_id", sub.ID, "error", err)
			}
		default:
			d.logger.Warn("push send failed", "user_id", userID, "subscription_id", sub.ID, "error", err)
		}
	}
	return delivered
}
