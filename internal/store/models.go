// Package store is the authoritative persistence layer (component C1):
// guilds, templates, games, participants, users, and the two schedule
// tables. Modeled on the teacher's internal/database package — a thin
// *sql.DB wrapper plus JSON-valuer model types — generalized from a
// single flat table set to this system's guild-scoped entities.
package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GameStatus is the lifecycle state of a Game.
type GameStatus string

const (
	GameStatusScheduled  GameStatus = "SCHEDULED"
	GameStatusInProgress GameStatus = "IN_PROGRESS"
	GameStatusCompleted  GameStatus = "COMPLETED"
	GameStatusCancelled  GameStatus = "CANCELLED"
)

// SignupMethod controls whether players can self-join or only the host
// can add participants.
type SignupMethod string

const (
	SignupMethodSelf         SignupMethod = "SELF_SIGNUP"
	SignupMethodHostSelected SignupMethod = "HOST_SELECTED"
)

// PositionType is the sparse participant-ordering enum from spec §9
// (Open Questions): the (position_type, position) pair is authoritative;
// the legacy pre_filled_position column is not modeled here at all.
// Gaps between bands are intentional, reserved for future tiers.
type PositionType int

const (
	PositionHost        PositionType = 0
	PositionCohost      PositionType = 100
	PositionRegular     PositionType = 200
	PositionPlaceholder PositionType = 300
)

// NotificationType distinguishes the two kinds of notification-schedule
// rows.
type NotificationType string

const (
	NotificationTypeReminder NotificationType = "reminder"
	NotificationTypeJoin     NotificationType = "join_notification"
)

// StringSlice is a JSON-valued []string column, grounded on the
// teacher's Photos/Preferences driver.Valuer+sql.Scanner pattern
// (internal/database/models.go).
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into StringSlice", value)
	}
}

// IntSlice is a JSON-valued []int column (reminder offsets, in minutes).
type IntSlice []int

func (s IntSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

func (s *IntSlice) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into IntSlice", value)
	}
}

// Guild is a tenant: one chat-platform server.
type Guild struct {
	ID                 string      `json:"id" db:"id"` // external chat-platform snowflake
	BotManagerRoleIDs  StringSlice `json:"bot_manager_role_ids" db:"bot_manager_role_ids"`
	RequireHostRole    bool        `json:"require_host_role" db:"require_host_role"`
	CreatedAt          time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at" db:"updated_at"`
}

// Template is a reusable game-type prototype owned by one guild.
type Template struct {
	ID                      uuid.UUID    `json:"id" db:"id"`
	GuildID                 string       `json:"guild_id" db:"guild_id"`
	Name                    string       `json:"name" db:"name"`
	SortOrder               int          `json:"sort_order" db:"sort_order"`
	IsDefault               bool         `json:"is_default" db:"is_default"`
	ChannelID               string       `json:"channel_id" db:"channel_id"`
	NotificationRoleIDs     StringSlice  `json:"notification_role_ids" db:"notification_role_ids"`
	AllowedHostRoleIDs      StringSlice  `json:"allowed_host_role_ids" db:"allowed_host_role_ids"`
	AllowedPlayerRoleIDs    StringSlice  `json:"allowed_player_role_ids" db:"allowed_player_role_ids"`
	DefaultMaxPlayers       int          `json:"default_max_players" db:"default_max_players"`
	DefaultReminderMinutes  IntSlice     `json:"default_reminder_minutes" db:"default_reminder_minutes"`
	DefaultDurationMinutes  int          `json:"default_duration_minutes" db:"default_duration_minutes"`
	DefaultLocation         string       `json:"default_location" db:"default_location"`
	DefaultSignupInstr      string       `json:"default_signup_instructions" db:"default_signup_instructions"`
	AllowedSignupMethods    StringSlice  `json:"allowed_signup_methods" db:"allowed_signup_methods"`
	DefaultSignupMethod     SignupMethod `json:"default_signup_method" db:"default_signup_method"`
	// LockedFields names template fields as locked. The list is stored and
	// returned with the template; game create and update do not read it,
	// so a host can still set these fields on a game.
	LockedFields StringSlice `json:"locked_fields" db:"locked_fields"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// Game is a scheduled session created from a Template.
type Game struct {
	ID                   uuid.UUID    `json:"id" db:"id"`
	GuildID              string       `json:"guild_id" db:"guild_id"` // immutable
	TemplateID           uuid.UUID    `json:"template_id" db:"template_id"`
	Title                string       `json:"title" db:"title"`
	Description          string       `json:"description" db:"description"`
	SignupInstructions   *string      `json:"signup_instructions,omitempty" db:"signup_instructions"`
	ScheduledAt          time.Time    `json:"scheduled_at" db:"scheduled_at"` // UTC instant
	DurationMinutes      int          `json:"duration_minutes" db:"duration_minutes"`
	Location             string       `json:"location" db:"location"`
	MaxPlayers           int          `json:"max_players" db:"max_players"`
	ReminderMinutes      IntSlice     `json:"reminder_minutes" db:"reminder_minutes"`
	RoleNotifyIDs        StringSlice  `json:"role_notify_ids" db:"role_notify_ids"`
	Status               GameStatus   `json:"status" db:"status"`
	ChatMessageID        *string      `json:"chat_message_id,omitempty" db:"chat_message_id"`
	ThumbnailMIME        *string      `json:"-" db:"thumbnail_mime"`
	ThumbnailData        []byte       `json:"-" db:"thumbnail_data"`
	BannerMIME           *string      `json:"-" db:"banner_mime"`
	BannerData           []byte       `json:"-" db:"banner_data"`
	SignupMethod         SignupMethod `json:"signup_method" db:"signup_method"`
	ChannelID            string       `json:"channel_id" db:"channel_id"`
	CreatedAt            time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at" db:"updated_at"`
}

// EndsAt is scheduled_at + duration; games must satisfy
// scheduled_at < EndsAt() (spec §3 invariant).
func (g *Game) EndsAt() time.Time {
	return g.ScheduledAt.Add(time.Duration(g.DurationMinutes) * time.Minute)
}

// Participant attaches a real user or a placeholder string to a game.
type Participant struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	GameID       uuid.UUID    `json:"game_id" db:"game_id"`
	UserID       *string      `json:"user_id,omitempty" db:"user_id"` // null for placeholders
	Mention      *string      `json:"mention,omitempty" db:"mention"` // display mention/placeholder text
	JoinedAt     time.Time    `json:"joined_at" db:"joined_at"`
	PositionType PositionType `json:"position_type" db:"position_type"`
	Position     int          `json:"position" db:"position"`
}

// IsPlaceholder reports whether this row has no backing chat user.
func (p *Participant) IsPlaceholder() bool {
	return p.UserID == nil
}

// User is a projection of a chat-platform user.
type User struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ExternalID  string    `json:"external_id" db:"external_id"` // discord snowflake
	DisplayName string    `json:"display_name" db:"display_name"`
	AvatarHash  string    `json:"avatar_hash" db:"avatar_hash"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// NotificationSchedule is a pending notification-fire row (C1/C4).
type NotificationSchedule struct {
	ID                uuid.UUID         `json:"id" db:"id"`
	GameID            uuid.UUID         `json:"game_id" db:"game_id"`
	NotificationType  NotificationType  `json:"notification_type" db:"notification_type"`
	ParticipantID     *uuid.UUID        `json:"participant_id,omitempty" db:"participant_id"`
	DueAt             time.Time         `json:"due_at" db:"due_at"`
	GameScheduledAt   time.Time         `json:"game_scheduled_at" db:"game_scheduled_at"`
	OffsetMinutes     int               `json:"offset_minutes" db:"offset_minutes"`
	Fired             bool              `json:"fired" db:"fired"`
}

// StatusTransitionSchedule is a pending status-change row (C1/C5).
type StatusTransitionSchedule struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	GameID       uuid.UUID  `json:"game_id" db:"game_id"`
	TargetStatus GameStatus `json:"target_status" db:"target_status"`
	DueAt        time.Time  `json:"due_at" db:"due_at"`
	Fired        bool       `json:"fired" db:"fired"`
}
