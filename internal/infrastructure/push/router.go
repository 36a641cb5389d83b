package push

import (
	"fmt"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

// Router selects the dispatcher matching a subscription's channel.
type Router struct {
	routes map[domain.Channel]ports.NotificationDispatcher
}

var _ ports.DispatcherRegistry = (*Router)(nil)

// NewRouter builds an empty router.
func NewRouter() *Router {
	return &Router{routes: map[domain.Channel]ports.NotificationDispatcher{}}
}

// Register binds a dispatcher to a channel.
func (r *Router) Register(channel domain.Channel, dispatcher ports.NotificationDispatcher) {
	r.routes[channel] = dispatcher
}

// For resolves the dispatcher for a channel.
func (r *Router) For(channel domain.Channel) (ports.NotificationDispatcher, error) {
	if dispatcher, ok := r.routes[channel]; ok && dispatcher != nil {
		return dispatcher, nil
	}
	return nil, fmt.Errorf("no dispatcher registered for channel %q", channel)
}
