package middleware

import "context"

// guildCtxKey is the task-local guild-context key (SPEC_FULL.md §5 ADD):
// a typed unexported key, replacing the teacher's stringly-typed
// context.WithValue(ctx, "user", ...) key in
// internal/middleware/auth.go with the idiomatic Go pattern. A guild id
// bound here is what every repository call's
// store.DB.WithGuildContext issues as SET LOCAL app.current_guild for
// RLS enforcement (spec §4.6(a)).
type ctxKey int

const (
	guildCtxKey ctxKey = iota
	sessionCtxKey
)

// Session is the resolved identity of the request's caller (spec
// §4.6(a): "session cookie resolving to a user's external chat id and
// their guild memberships").
type Session struct {
	UserExternalID string
	GuildRoleIDs   map[string][]string // guild id -> role ids the user holds there
	IsPlatformAdmin map[string]bool    // guild id -> platform-level admin flag
}

func withSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, s)
}

// SessionFrom returns the authenticated session, or nil if the request
// reached this point without one (only possible for routes that don't
// use RequireSession).
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionCtxKey).(*Session)
	return s
}

func withGuildID(ctx context.Context, guildID string) context.Context {
	return context.WithValue(ctx, guildCtxKey, guildID)
}

// GuildIDFrom returns the guild id bound for this request, or "" if
// this route isn't guild-scoped.
func GuildIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(guildCtxKey).(string)
	return id
}
