package bot

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingResponder struct {
	responses []*Response
}

func (r *recordingResponder) Respond(resp *Response) error {
	r.responses = append(r.responses, resp)
	return nil
}

func (r *recordingResponder) last(t *testing.T) *Response {
	t.Helper()
	require.NotEmpty(t, r.responses, "no response sent")
	return r.responses[len(r.responses)-1]
}

type stubCommand struct {
	name  string
	level AuthLevel
	calls int
}

func (c *stubCommand) Name() string                 { return c.name }
func (c *stubCommand) RequiredAuthLevel() AuthLevel { return c.level }
func (c *stubCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.name, Description: c.name}
}
func (c *stubCommand) Execute(_ context.Context, cc *CommandContext) error {
	c.calls++
	return cc.Reply("ok")
}

func TestRegistry_Dispatch(t *testing.T) {
	user := &stubCommand{name: "ping", level: AuthUser}
	admin := &stubCommand{name: "reset", level: AuthAdmin}
	registry := NewRegistry(user, admin)
	ctx := context.Background()

	t.Run("user command", func(t *testing.T) {
		responder := &recordingResponder{}
		err := registry.Dispatch(ctx, "ping", &CommandContext{UserID: "1", Responder: responder})
		require.NoError(t, err)
		assert.Equal(t, 1, user.calls)
		assert.Equal(t, "ok", responder.last(t).Content)
	})

	t.Run("admin command rejected for users", func(t *testing.T) {
		responder := &recordingResponder{}
		err := registry.Dispatch(ctx, "reset", &CommandContext{UserID: "1", Responder: responder})
		assert.ErrorIs(t, err, ErrNotAuthorized)
		assert.Equal(t, 0, admin.calls)
		assert.True(t, responder.last(t).Ephemeral)
	})

	t.Run("admin command allowed for admins", func(t *testing.T) {
		responder := &recordingResponder{}
		err := registry.Dispatch(ctx, "reset", &CommandContext{UserID: "2", IsAdmin: true, Responder: responder})
		require.NoError(t, err)
		assert.Equal(t, 1, admin.calls)
	})

	t.Run("unknown command", func(t *testing.T) {
		err := registry.Dispatch(ctx, "nope", &CommandContext{Responder: &recordingResponder{}})
		assert.Error(t, err)
	})
}

func TestRegistry_DefinitionsSortedByName(t *testing.T) {
	registry := NewRegistry(
		&stubCommand{name: "shop"},
		&stubCommand{name: "balance"},
		&stubCommand{name: "gift"},
	)

	var names []string
	for _, def := range registry.Definitions() {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{"balance", "gift", "shop"}, names)
}

func TestRegistry_AllCommandsRegistered(t *testing.T) {
	registry, _ := newCommands(Services{})

	for _, name := range []string{
		"balance", "daily", "history", "leaderboard", "boost", "roulette",
		"shop", "buy", "gift", "wishlist", "inventory", "admin-adjust",
	} {
		cmd, ok := registry.Get(name)
		require.True(t, ok, "missing command %s", name)
		assert.Equal(t, name, cmd.Definition().Name)
	}

	adjust, _ := registry.Get("admin-adjust")
	assert.Equal(t, AuthAdmin, adjust.RequiredAuthLevel())
	balance, _ := registry.Get("balance")
	assert.Equal(t, AuthUser, balance.RequiredAuthLevel())
}

func TestCommandContext_Options(t *testing.T) {
	cc := &CommandContext{Options: map[string]*discordgo.ApplicationCommandInteractionDataOption{
		"item":   {Name: "item", Type: discordgo.ApplicationCommandOptionString, Value: "lucky-cat"},
		"amount": {Name: "amount", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(250)},
		"user":   {Name: "user", Type: discordgo.ApplicationCommandOptionUser, Value: "42"},
	}}

	assert.Equal(t, "lucky-cat", cc.StringOption("item"))
	amount, ok := cc.IntOption("amount")
	assert.True(t, ok)
	assert.Equal(t, int64(250), amount)
	assert.Equal(t, "42", cc.UserOption("user"))

	// missing or mistyped options read as absent
	assert.Equal(t, "", cc.StringOption("amount"))
	_, ok = cc.IntOption("item")
	assert.False(t, ok)
	assert.Equal(t, "", cc.UserOption("missing"))
}

func TestIsAdmin(t *testing.T) {
	admins := []string{"999"}

	assert.True(t, isAdmin(nil, "999", admins))
	assert.False(t, isAdmin(nil, "1", admins))
	assert.False(t, isAdmin(&discordgo.Member{Permissions: discordgo.PermissionSendMessages}, "1", admins))
	assert.True(t, isAdmin(&discordgo.Member{Permissions: discordgo.PermissionAdministrator}, "1", admins))
}
