package api

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gamenight/scheduler/internal/api/middleware"
	"github.com/gamenight/scheduler/internal/cache"
	"github.com/gamenight/scheduler/internal/chatapi"
	apperrors "github.com/gamenight/scheduler/internal/errors"
)

// Login implements GET /auth/login?redirect_uri=… (spec §6): issues a
// CSRF state value and returns the chat platform's authorization URL.
func (d *Deps) Login(c *gin.Context) {
	redirectURI := c.Query("redirect_uri")
	if redirectURI == "" {
		middleware.RespondError(c, apperrors.NewValidationError("redirect_uri", "redirect_uri is required"))
		return
	}

	state, err := randomState()
	if err != nil {
		middleware.RespondError(c, apperrors.NewInternalError("failed to generate state", err))
		return
	}
	if err := d.Cache.SetOAuthState(c.Request.Context(), state, redirectURI); err != nil {
		middleware.RespondError(c, apperrors.NewCacheError("set_oauth_state", err))
		return
	}

	authURL := fmt.Sprintf("%s/oauth2/authorize?client_id=%s&redirect_uri=%s&response_type=code&state=%s",
		d.ChatAPIBaseURL, d.ChatOAuthClientID, redirectURI, state)

	c.JSON(http.StatusOK, gin.H{"authorization_url": authURL, "state": state})
}

// Callback implements GET /auth/callback?code&state (spec §6):
// exchanges the code, resolves the user, and sets an HTTP-only session
// cookie.
func (d *Deps) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		middleware.RespondError(c, apperrors.NewValidationError("code", "code and state are required"))
		return
	}

	redirectURI, err := d.Cache.GetOAuthState(c.Request.Context(), state)
	if err != nil {
		middleware.RespondError(c, apperrors.NewAuthenticationError("invalid or expired state"))
		return
	}

	tok, err := d.Chat.ExchangeOAuthCode(c.Request.Context(), d.ChatOAuthClientID, d.ChatOAuthSecret, code, redirectURI)
	if err != nil {
		middleware.RespondError(c, apperrors.NewChatPlatformError("exchange_oauth_code", err))
		return
	}

	chatUser, err := d.Chat.CurrentUser(c.Request.Context(), chatapi.OAuthToken(tok.AccessToken))
	if err != nil {
		middleware.RespondError(c, apperrors.NewChatPlatformError("fetch_current_user", err))
		return
	}

	if _, err := d.Users.Upsert(c.Request.Context(), chatUser.ID, chatUser.Username, ""); err != nil {
		middleware.RespondError(c, apperrors.NewDatabaseError("upsert_user", err))
		return
	}

	sessionID, err := randomState()
	if err != nil {
		middleware.RespondError(c, apperrors.NewInternalError("failed to generate session id", err))
		return
	}
	session := middleware.Session{UserExternalID: chatUser.ID, GuildRoleIDs: map[string][]string{}, IsPlatformAdmin: map[string]bool{}}
	if err := d.Cache.SetSessionToken(c.Request.Context(), sessionID, session); err != nil {
		middleware.RespondError(c, apperrors.NewCacheError("set_session_token", err))
		return
	}

	c.SetCookie(middleware.SessionCookieName, sessionID, int(cache.SessionTTL.Seconds()), "/", "", true, true)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
