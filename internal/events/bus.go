// Package events fans domain events out over Redis pub/sub and NATS once the
// state change they describe has been committed.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quest-api/internal/observability"
)

// Event types.
const (
	TypeSubmissionCreated  = "submission.created"
	TypeSubmissionReviewed = "submission.reviewed"
	TypeRewardCredited     = "reward.credited"
)

// Event is the envelope published on every transport.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Source     string                 `json:"source"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data map[string]interface{}) error
}

// Handler consumes events received from other nodes.
type Handler func(Event)

// Bus publishes to Redis and NATS. Either client may be nil.
type Bus struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	nodeID       string
	now          func() time.Time

	mu       sync.RWMutex
	handlers []Handler
}

// NewBus builds a bus for the channel base, e.g. "gema" gives the Redis
// channel "gema:events" and the NATS subject "gema.events".
func NewBus(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) *Bus {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":events"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	}

	return &Bus{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "event_bus").Logger(),
		nodeID:       uuid.NewString(),
		now:          time.Now,
	}
}

// Publish sends the event on every configured transport and returns the
// joined transport errors.
func (b *Bus) Publish(ctx context.Context, eventType string, data map[string]interface{}) error {
	if b == nil {
		return nil
	}

	event := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Source:     b.nodeID,
		OccurredAt: b.now().UTC(),
		Data:       data,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var errs []error
	if b.redis != nil && b.redisChannel != "" {
		if err := b.redis.Publish(ctx, b.redisChannel, payload).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.nats != nil && b.natsSubject != "" {
		if err := b.nats.Publish(b.natsSubject, payload); err != nil {
			errs = append(errs, err)
		}
	}

	outcome := "ok"
	if len(errs) > 0 {
		outcome = "error"
	}
	observability.EventsPublished().WithLabelValues(eventType, outcome).Inc()

	return errors.Join(errs...)
}

// Subscribe registers a handler for events published by other nodes.
func (b *Bus) Subscribe(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Start consumes both transports until ctx is cancelled.
func (b *Bus) Start(ctx context.Context) {
	if b.redis != nil && b.redisChannel != "" {
		go b.consumeRedis(ctx)
	}
	if b.nats != nil && b.natsSubject != "" {
		go b.consumeNATS(ctx)
	}
}

func (b *Bus) consumeRedis(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, b.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			b.logger.Error().Err(err).Msg("event redis subscription closed")
			return
		}
		b.dispatch([]byte(msg.Payload))
	}
}

func (b *Bus) consumeNATS(ctx context.Context) {
	sub, err := b.nats.QueueSubscribe(b.natsSubject, "gema-events", func(msg *nats.Msg) {
		b.dispatch(msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to nats events subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain events nats subscription")
		}
	}()
}

func (b *Bus) dispatch(payload []byte) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		b.logger.Warn().Err(err).Msg("invalid event payload")
		return
	}
	if event.Source == b.nodeID {
		return
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}
