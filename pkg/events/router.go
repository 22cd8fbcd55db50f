// Package events publishes the agent's audit-trail steps on an in-process
// pub/sub, so observers (dashboards, evaluation harnesses) can follow a turn
// without being wired into the core. Publishing is best-effort and never
// drives control flow.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// StepTopic carries one message per audit-trail step.
const StepTopic = "agent.steps"

// StepEvent is the published form of a single audit-trail entry.
type StepEvent struct {
	SessionID string         `json:"session_id"`
	Stage     string         `json:"stage"`
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Time      time.Time      `json:"time"`
}

// Router is a thin wrapper over a watermill gochannel pub/sub.
type Router struct {
	pubSub *gochannel.GoChannel
	logger watermill.LoggerAdapter
}

// RouterOption customises a Router.
type RouterOption func(*Router)

// WithLogger replaces the default no-op watermill logger.
func WithLogger(logger watermill.LoggerAdapter) RouterOption {
	return func(r *Router) { r.logger = logger }
}

// NewRouter builds an in-process event router.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{logger: watermill.NopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.pubSub = gochannel.NewGoChannel(gochannel.Config{}, r.logger)
	return r
}

// PublishStep emits a single step event. Failures are logged and swallowed;
// observability must never fail a turn.
func (r *Router) PublishStep(ev StepEvent) {
	if r == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Warn().Err(err).Msg("events: failed to marshal step event")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := r.pubSub.Publish(StepTopic, msg); err != nil {
		log.Warn().Err(err).Msg("events: failed to publish step event")
	}
}

// SubscribeSteps returns a channel of decoded step events. The channel is
// closed when ctx is cancelled or the router shuts down.
func (r *Router) SubscribeSteps(ctx context.Context) (<-chan StepEvent, error) {
	messages, err := r.pubSub.Subscribe(ctx, StepTopic)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe to step events")
	}

	// Buffered so a slow observer does not stall the publishing turn.
	out := make(chan StepEvent, 64)
	go func() {
		defer close(out)
		for msg := range messages {
			var ev StepEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				log.Warn().Err(err).Str("message_id", msg.UUID).Msg("events: failed to decode step event")
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close shuts down the underlying pub/sub.
func (r *Router) Close() error {
	return r.pubSub.Close()
}
