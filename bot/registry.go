package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// AuthLevel is the permission a command requires
type AuthLevel int

const (
	AuthUser AuthLevel = iota
	AuthAdmin
)

// ErrNotAuthorized is returned when the invoker lacks the command's auth level
var ErrNotAuthorized = errors.New("not authorized")

// Response is what a command sends back to the invoker
type Response struct {
	Content    string
	Embed      *discordgo.MessageEmbed
	Components []discordgo.MessageComponent
	Ephemeral  bool
}

// Responder delivers a command's response
type Responder interface {
	Respond(resp *Response) error
}

// CommandContext carries one invocation
type CommandContext struct {
	UserID      string
	DisplayName string
	GuildID     string
	ChannelID   string
	IsAdmin     bool
	Options     map[string]*discordgo.ApplicationCommandInteractionDataOption
	Responder   Responder
}

// StringOption returns a string option, or "" if it was not given
func (c *CommandContext) StringOption(name string) string {
	opt, ok := c.Options[name]
	if !ok || opt.Type != discordgo.ApplicationCommandOptionString {
		return ""
	}
	return opt.StringValue()
}

// IntOption returns an integer option and whether it was given
func (c *CommandContext) IntOption(name string) (int64, bool) {
	opt, ok := c.Options[name]
	if !ok || opt.Type != discordgo.ApplicationCommandOptionInteger {
		return 0, false
	}
	return opt.IntValue(), true
}

// UserOption returns the user ID of a user option, or "" if it was not given
func (c *CommandContext) UserOption(name string) string {
	opt, ok := c.Options[name]
	if !ok || opt.Type != discordgo.ApplicationCommandOptionUser {
		return ""
	}
	id, _ := opt.Value.(string)
	return id
}

// Reply sends a public text response
func (c *CommandContext) Reply(content string) error {
	return c.Responder.Respond(&Response{Content: content})
}

// ReplyEphemeral sends a text response only the invoker sees
func (c *CommandContext) ReplyEphemeral(content string) error {
	return c.Responder.Respond(&Response{Content: content, Ephemeral: true})
}

// ReplyEmbed sends a public embed
func (c *CommandContext) ReplyEmbed(embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) error {
	return c.Responder.Respond(&Response{Embed: embed, Components: components})
}

// Command is one slash command
type Command interface {
	Name() string
	Definition() *discordgo.ApplicationCommand
	RequiredAuthLevel() AuthLevel
	Execute(ctx context.Context, cc *CommandContext) error
}

// Registry dispatches slash commands by name
type Registry struct {
	commands map[string]Command
}

// NewRegistry creates a registry holding commands
func NewRegistry(commands ...Command) *Registry {
	r := &Registry{commands: make(map[string]Command, len(commands))}
	for _, cmd := range commands {
		r.Register(cmd)
	}
	return r
}

// Register adds a command, replacing any command with the same name
func (r *Registry) Register(cmd Command) {
	if _, exists := r.commands[cmd.Name()]; exists {
		log.WithField("command", cmd.Name()).Warn("Replacing registered command")
	}
	r.commands[cmd.Name()] = cmd
}

// Get looks up a command by name
func (r *Registry) Get(name string) (Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Definitions returns every command definition ordered by name
func (r *Registry) Definitions() []*discordgo.ApplicationCommand {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]*discordgo.ApplicationCommand, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.commands[name].Definition())
	}
	return defs
}

// Dispatch runs the named command after checking the invoker's auth level
func (r *Registry) Dispatch(ctx context.Context, name string, cc *CommandContext) error {
	cmd, ok := r.commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}

	if cmd.RequiredAuthLevel() == AuthAdmin && !cc.IsAdmin {
		log.WithFields(log.Fields{
			"command": name,
			"userId":  cc.UserID,
		}).Warn("Rejected admin command from non-admin")
		if err := cc.ReplyEphemeral("❌ You are not allowed to use this command."); err != nil {
			return err
		}
		return ErrNotAuthorized
	}

	return cmd.Execute(ctx, cc)
}
