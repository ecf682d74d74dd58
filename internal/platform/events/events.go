// Package events publishes appointment lifecycle notifications to
// interested consumers (reminder senders, front-desk dashboards).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TypeAppointmentCreated       = "appointment.created"
	TypeAppointmentStatusChanged = "appointment.status_changed"
	TypeAppointmentReminder      = "appointment.reminder"
)

// Event is the JSON message put on the bus.
type Event struct {
	ID            uuid.UUID         `json:"id"`
	Type          string            `json:"type"`
	AppointmentID uuid.UUID         `json:"appointment_id"`
	DoctorID      *uuid.UUID        `json:"doctor_id,omitempty"`
	BranchID      uuid.UUID         `json:"branch_id"`
	Date          string            `json:"date"`
	Time          string            `json:"time"`
	Status        string            `json:"status"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// NopPublisher drops every event. Used when REDIS_URL is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// redisPublish is the subset of *redis.Client used here.
type redisPublish interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes each event on the "<prefix>:<type>" channel.
type RedisPublisher struct {
	client redisPublish
	prefix string
	logger zerolog.Logger
}

func NewRedisPublisher(client redisPublish, prefix string, logger zerolog.Logger) *RedisPublisher {
	if prefix == "" {
		prefix = "clinic"
	}
	return &RedisPublisher{client: client, prefix: prefix, logger: logger}
}

// Channel returns the pub/sub channel an event type is sent on.
func (p *RedisPublisher) Channel(eventType string) string {
	return p.prefix + ":" + eventType
}

func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	if evt.ID == uuid.Nil {
		evt.ID = uuid.New()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	channel := p.Channel(evt.Type)
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	p.logger.Debug().Str("channel", channel).Str("event_id", evt.ID.String()).Msg("event published")
	return nil
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
