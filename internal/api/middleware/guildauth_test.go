package middleware

import (
	"testing"

	"github.com/gamenight/scheduler/internal/store"
)

func TestAuthorizeMutation_PlatformAdminAlwaysAllowed(t *testing.T) {
	sess := &Session{
		UserExternalID:  "user-1",
		IsPlatformAdmin: map[string]bool{"guild-1": true},
	}
	guild := &store.Guild{ID: "guild-1"}

	if err := AuthorizeMutation(sess, guild, "guild-1", "someone-else"); err != nil {
		t.Errorf("expected platform admin to be authorized, got %v", err)
	}
}

func TestAuthorizeMutation_HostAllowed(t *testing.T) {
	sess := &Session{UserExternalID: "host-1"}
	guild := &store.Guild{ID: "guild-1"}

	if err := AuthorizeMutation(sess, guild, "guild-1", "host-1"); err != nil {
		t.Errorf("expected host to be authorized, got %v", err)
	}
}

func TestAuthorizeMutation_BotManagerRoleAllowed(t *testing.T) {
	sess := &Session{
		UserExternalID: "user-1",
		GuildRoleIDs:   map[string][]string{"guild-1": {"role-mod", "role-manager"}},
	}
	guild := &store.Guild{ID: "guild-1", BotManagerRoleIDs: store.StringSlice{"role-manager"}}

	if err := AuthorizeMutation(sess, guild, "guild-1", "host-1"); err != nil {
		t.Errorf("expected bot-manager role to be authorized, got %v", err)
	}
}

func TestAuthorizeMutation_DeniedWhenNeitherHostNorManagerNorAdmin(t *testing.T) {
	sess := &Session{
		UserExternalID: "user-1",
		GuildRoleIDs:   map[string][]string{"guild-1": {"role-player"}},
	}
	guild := &store.Guild{ID: "guild-1", BotManagerRoleIDs: store.StringSlice{"role-manager"}}

	err := AuthorizeMutation(sess, guild, "guild-1", "host-1")
	if err == nil {
		t.Fatal("expected an authorization error")
	}
}

func TestAuthorizeVisibility_EmptyAllowListPermitsEveryMember(t *testing.T) {
	sess := &Session{GuildRoleIDs: map[string][]string{"guild-1": {}}}
	if err := AuthorizeVisibility(sess, "guild-1", nil); err != nil {
		t.Errorf("expected nil allow-list to permit access, got %v", err)
	}
}

func TestAuthorizeVisibility_RequiresMatchingRole(t *testing.T) {
	sess := &Session{GuildRoleIDs: map[string][]string{"guild-1": {"role-player"}}}

	if err := AuthorizeVisibility(sess, "guild-1", []string{"role-vip"}); err == nil {
		t.Error("expected denial when caller lacks any allowed role")
	}
	if err := AuthorizeVisibility(sess, "guild-1", []string{"role-player", "role-vip"}); err != nil {
		t.Errorf("expected access when caller holds one of the allowed roles, got %v", err)
	}
}

func TestAuthorizeTemplateVisibility_RequiresMatchingHostRole(t *testing.T) {
	sess := &Session{GuildRoleIDs: map[string][]string{"guild-1": {"role-dm"}}}

	if err := AuthorizeTemplateVisibility(sess, "guild-1", []string{"role-organizer"}); err == nil {
		t.Error("expected denial when caller lacks any allowed host role")
	}
	if err := AuthorizeTemplateVisibility(sess, "guild-1", []string{"role-dm"}); err != nil {
		t.Errorf("expected access when caller holds the allowed host role, got %v", err)
	}
	if err := AuthorizeTemplateVisibility(sess, "guild-1", nil); err != nil {
		t.Errorf("expected nil allow-list to permit template visibility, got %v", err)
	}
}
