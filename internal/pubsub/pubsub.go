// Package pubsub is the cross-instance fanout layer (spec.md §5): a topic
// based Publish/Subscribe interface with Redis-backed and in-process
// implementations. The hub creates a client at startup and closes it on
// shutdown; the Signaling Router does not publish or subscribe, so a message
// for a peer attached to another instance is not forwarded to it.
package pubsub

import (
	"context"

	"github.com/watchhub/signalhub/internal/config"
)

// PubSub is the fanout interface. Publish never blocks on a subscriber
// being present; a message published to a topic with no subscribers is
// simply dropped, matching at-most-once delivery for presence/signaling
// traffic that is always safe to miss and re-request.
type PubSub interface {
	Publish(topic string, message []byte) error
	Subscribe(topic string) Subscription
	Close() error
}

// Subscription is a single subscriber's view of a topic.
type Subscription interface {
	Close() error
	Channel() <-chan []byte
}

// MakePubSub creates a fanout backend, Redis-backed when cfg.Redis.Enabled
// is set and in-process otherwise. The in-process backend only fans out
// within the current instance: running more than one hub replica with Redis
// disabled means a viewer and device assigned to different instances never
// reach each other (spec.md §5).
func MakePubSub(ctx context.Context, cfg *config.Config) (PubSub, error) {
	if cfg.Redis.Enabled {
		return makePubSubFromRedis(ctx, cfg)
	}
	return makeInMemoryPubSub(), nil
}
