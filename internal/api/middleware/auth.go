package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gamenight/scheduler/internal/cache"
	apperrors "github.com/gamenight/scheduler/internal/errors"
)

// SessionCookieName is the HTTP-only cookie set by GET /auth/callback
// (spec §6).
const SessionCookieName = "gamenight_session"

// RequireSession resolves the session cookie to a Session via the
// cache (spec §4.6(a) "session cookie resolving to a user's external
// chat id and their guild memberships"), generalizing
// internal/middleware/auth.go's AuthMiddleware (look up user, attach to
// context, let unauthenticated requests fail downstream rather than
// hard-blocking here — this API has no anonymous-but-functional path
// like the bot's pre-/start flow, so it 401s directly).
func RequireSession(cacheSvc *cache.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(SessionCookieName)
		if err != nil || cookie == "" {
			middlewareUnauthorized(c)
			return
		}

		var sess Session
		if err := cacheSvc.GetSessionToken(c.Request.Context(), cookie, &sess); err != nil {
			middlewareUnauthorized(c)
			return
		}

		ctx := withSession(c.Request.Context(), &sess)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func middlewareUnauthorized(c *gin.Context) {
	RespondError(c, apperrors.NewAuthenticationError("log in required").WithHTTPStatus(http.StatusUnauthorized))
	c.Abort()
}
