// Package bus is the event-bus topology and publisher/consumer plumbing
// (component C3): a single topic exchange, one primary queue per
// consumer with its own dedicated dead-letter queue, publisher confirms,
// and per-message TTL. Grounded on the teacher's Queue
// interface-then-impl shape (services/api/internal/notification/queue.go)
// but built against github.com/rabbitmq/amqp091-go instead of Redis
// sorted sets, since the spec's topic-exchange/DLQ/confirms model maps
// directly onto AMQP primitives rather than a hand-rolled Redis queue.
package bus

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RoutingKey enumerates the wire-protocol routing keys (spec §6).
type RoutingKey string

const (
	RoutingGameCreated        RoutingKey = "game.created"
	RoutingGameUpdated        RoutingKey = "game.updated"
	RoutingGameCancelled      RoutingKey = "game.cancelled"
	RoutingGameStarted        RoutingKey = "game.started"
	RoutingGameCompleted      RoutingKey = "game.completed"
	RoutingParticipantJoined  RoutingKey = "participant.joined"
	RoutingParticipantLeft    RoutingKey = "participant.left"
	RoutingParticipantRemoved RoutingKey = "participant.removed"
	RoutingParticipantPromo   RoutingKey = "participant.promoted"
	RoutingNotificationDue    RoutingKey = "notification.due"
)

// Envelope is the JSON wire format for every bus message (spec §4.1).
// event_id is a UUID; handlers MUST be idempotent keyed on it.
type Envelope struct {
	EventID   uuid.UUID       `json:"event_id"`
	EventType RoutingKey      `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	GuildID   string          `json:"guild_id"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload and stamps a fresh event id / timestamp.
func NewEnvelope(eventType RoutingKey, guildID string, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:   uuid.New(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		GuildID:   guildID,
		Payload:   raw,
	}, nil
}

// GameEventPayload backs game.created/updated/cancelled/started/completed.
type GameEventPayload struct {
	GameID string `json:"game_id"`
}

// ParticipantEventPayload backs participant.joined/left/removed/promoted.
type ParticipantEventPayload struct {
	GameID        string `json:"game_id"`
	ParticipantID string `json:"participant_id,omitempty"`
	UserID        string `json:"user_id,omitempty"`
}

// NotificationKind distinguishes the two NOTIFICATION_DUE payload shapes
// (spec §4.3).
type NotificationKind string

const (
	NotificationKindReminder NotificationKind = "reminder"
	NotificationKindJoin     NotificationKind = "join"
)

// NotificationDuePayload backs notification.due.
type NotificationDuePayload struct {
	GameID        string           `json:"game_id"`
	OffsetMinutes int              `json:"offset_minutes,omitempty"`
	ParticipantID string           `json:"participant_id,omitempty"`
	Kind          NotificationKind `json:"kind,omitempty"`
}

// NoExpiration is the Publish ttl value meaning "never expire" (spec
// §4.3: GAME_STARTED/GAME_COMPLETED "must always be delivered
// eventually"). Distinct from a zero ttl, which means "expire
// immediately" — a real, meaningful value for a reminder whose game
// already started, not the absence of one.
const NoExpiration time.Duration = -1

// TTL computes the per-message expiration (spec §4.1): the time until
// the game starts, floored at zero. A message published after the game
// already started carries TTL 0, which Publish turns into a broker-side
// Expiration of "0" — dropped unread — so a stale reminder disappears
// silently instead of firing late.
func TTL(scheduledAt, now time.Time) time.Duration {
	d := scheduledAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
