package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dallosh/analysis/engine/infra/pubsub"
	"github.com/dallosh/analysis/pkg/logger"
)

// Relay feeds frames published on a shared channel into the local
// broadcaster, so subscribers on any instance see events ingested by another.
type Relay struct {
	provider    pubsub.Provider
	channel     string
	broadcaster *Broadcaster
}

func NewRelay(provider pubsub.Provider, channel string, b *Broadcaster) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Relay{provider: provider, channel: channel, broadcaster: b}
}

// Run blocks until ctx is done or the subscription ends.
func (r *Relay) Run(ctx context.Context) error {
	log := logger.FromContext(ctx).With("component", "stream_relay", "channel", r.channel)
	sub, err := r.provider.Subscribe(ctx, r.channel)
	if err != nil {
		return fmt.Errorf("streaming: subscribe %s: %w", r.channel, err)
	}
	defer sub.Close()
	log.Info("Stream relay started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.Messages():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				if err := sub.Err(); err != nil {
					return err
				}
				return errors.New("streaming: relay subscription ended")
			}
			var frame Frame
			if err := json.Unmarshal(msg.Payload, &frame); err != nil {
				log.Warn("Skipping undecodable frame", "error", err)
				continue
			}
			r.broadcaster.Deliver(ctx, frame)
		}
	}
}
