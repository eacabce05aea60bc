// Package notify delivers settlement offer messages to customers.
package notify

import (
	"context"
	"fmt"

	"settlement-engine/internal/domain"
	"settlement-engine/internal/logger"
)

// Dispatcher hands a message to a delivery channel. A non-nil error always comes with
// DeliveryFailed.
type Dispatcher interface {
	Send(ctx context.Context, channel domain.Channel, msg domain.Message) (domain.DeliveryStatus, error)
}

// Router picks a dispatcher per channel.
type Router struct {
	routes map[domain.Channel]Dispatcher
}

func NewRouter() *Router {
	return &Router{routes: make(map[domain.Channel]Dispatcher)}
}

// Handle registers d for channel and returns the router for chaining.
func (r *Router) Handle(channel domain.Channel, d Dispatcher) *Router {
	r.routes[channel] = d
	return r
}

func (r *Router) Send(ctx context.Context, channel domain.Channel, msg domain.Message) (domain.DeliveryStatus, error) {
	d, ok := r.routes[channel]
	if !ok {
		return domain.DeliveryFailed, fmt.Errorf("no dispatcher for channel %s", channel)
	}
	return d.Send(ctx, channel, msg)
}

// LogDispatcher records SMS and phone-call tasks in the service log for the dialer and
// SMS gateway integrations to pick up.
type LogDispatcher struct{}

func (LogDispatcher) Send(ctx context.Context, channel domain.Channel, msg domain.Message) (domain.DeliveryStatus, error) {
	if msg.Recipient == "" {
		return domain.DeliveryFailed, fmt.Errorf("%s: customer has no contact for this channel", channel)
	}
	logger.InfoContext(ctx, "Offer message queued",
		"channel", channel,
		"offer_id", msg.OfferID,
		"recipient", msg.Recipient,
		"subject", msg.Subject,
	)
	return domain.DeliveryDelivered, nil
}
