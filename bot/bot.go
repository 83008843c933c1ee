package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"economy/bot/common"
	"economy/events"
	"economy/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Config holds bot configuration
type Config struct {
	Token        string
	GuildID      string // empty registers commands globally
	AdminUserIDs []string
}

// Services are the core services the bot calls
type Services struct {
	Ledger     service.LedgerService
	Sessions   *service.SessionStore
	Settlement service.SettlementService
	Exchange   service.ExchangeService
}

type Bot struct {
	config     Config
	session    *discordgo.Session
	registry   *Registry
	roulette   *rouletteCommand
	settlement service.SettlementService
}

// newCommands builds the registry every invocation is dispatched through
func newCommands(services Services) (*Registry, *rouletteCommand) {
	roulette := newRouletteCommand(services.Sessions)
	registry := NewRegistry(
		&balanceCommand{ledger: services.Ledger},
		&dailyCommand{ledger: services.Ledger},
		&historyCommand{ledger: services.Ledger},
		&leaderboardCommand{ledger: services.Ledger},
		&boostCommand{ledger: services.Ledger},
		&adminAdjustCommand{ledger: services.Ledger},
		roulette,
		&shopCommand{exchange: services.Exchange},
		&buyCommand{exchange: services.Exchange},
		&giftCommand{exchange: services.Exchange},
		&wishlistCommand{exchange: services.Exchange},
		&inventoryCommand{exchange: services.Exchange},
	)
	return registry, roulette
}

func New(config Config, services Services, eventBus *events.Bus) (*Bot, error) {
	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	registry, roulette := newCommands(services)
	bot := &Bot{
		config:     config,
		session:    dg,
		registry:   registry,
		roulette:   roulette,
		settlement: services.Settlement,
	}

	dg.AddHandler(bot.handleCommands)
	dg.AddHandler(bot.handleComponents)

	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	if err := bot.registerCommands(); err != nil {
		dg.Close()
		return nil, fmt.Errorf("error registering commands: %w", err)
	}

	eventBus.Subscribe(events.EventTypeSessionSettled, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.SessionSettledEvent); ok {
			bot.announceSettlement(ctx, e.SessionKey)
		}
	})
	eventBus.Subscribe(events.EventTypeSessionClosed, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.SessionClosedEvent); ok && !e.Settled {
			bot.announceCancelled(e.SessionKey)
		}
	})

	return bot, nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) registerCommands() error {
	appID := b.session.State.User.ID
	if _, err := b.session.ApplicationCommandBulkOverwrite(appID, b.config.GuildID, b.registry.Definitions()); err != nil {
		return fmt.Errorf("cannot register commands: %w", err)
	}
	log.WithField("guildId", b.config.GuildID).Info("Registered slash commands")
	return nil
}

// isAdmin grants admin to configured IDs and to members with the administrator permission
func isAdmin(member *discordgo.Member, userID string, adminIDs []string) bool {
	if slices.Contains(adminIDs, userID) {
		return true
	}
	return member != nil && member.Permissions&discordgo.PermissionAdministrator != 0
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func (b *Bot) handleCommands(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	user := interactionUser(i)
	if user == nil {
		return
	}

	data := i.ApplicationCommandData()
	if _, ok := b.registry.Get(data.Name); !ok {
		common.RespondWithError(s, i, "Unknown command.")
		return
	}

	options :=make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(data.Options))
	for _, opt := range data.Options {
		options[opt.Name] = opt
	}

	cc := &CommandContext{
		UserID:      user.ID,
		DisplayName: common.DisplayName(i.Member, user),
		GuildID:     i.GuildID,
		ChannelID:   i.ChannelID,
		IsAdmin:     isAdmin(i.Member, user.ID, b.config.AdminUserIDs),
		Options:     options,
		Responder:   &interactionResponder{session: s, interaction: i},
	}

	ctx := context.Background()
	if err := b.registry.Dispatch(ctx, data.Name, cc); err != nil && !errors.Is(err, ErrNotAuthorized) {
		log.WithFields(log.Fields{
			"command": data.Name,
			"userId":  user.ID,
			"error":   err,
		}).Error("Error handling command")
	}
}

// handleComponents routes roulette buttons; other custom IDs fall through
func (b *Bot) handleComponents(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}

	user := interactionUser(i)
	if user == nil {
		return
	}

	customID := i.MessageComponentData().CustomID
	handled, reply := b.roulette.HandleComponent(context.Background(), user.ID, common.DisplayName(i.Member, user), customID)
	if !handled {
		return
	}

	if err := common.RespondWithMessage(s, i, reply, true); err != nil {
		log.Errorf("Error responding to roulette bet: %v", err)
	}
}

func (b *Bot) announceSettlement(ctx context.Context, sessionKey string) {
	channelID, ok := b.roulette.release(sessionKey)
	if !ok {
		return
	}

	record, err := b.settlement.GetSettlement(ctx, sessionKey)
	if err != nil || record == nil {
		log.WithFields(log.Fields{
			"sessionKey": sessionKey,
			"error":      err,
		}).Error("Failed to load settlement for announcement")
		return
	}

	if _, err := b.session.ChannelMessageSendEmbed(channelID, settlementEmbed(record)); err != nil {
		log.Errorf("Error announcing settlement of %s: %v", sessionKey, err)
	}
}

func (b *Bot) announceCancelled(sessionKey string) {
	channelID, ok := b.roulette.release(sessionKey)
	if !ok {
		return
	}
	if _, err := b.session.ChannelMessageSend(channelID, "🎡 Nobody placed a bet, so the table closed."); err != nil {
		log.Errorf("Error announcing cancelled table %s: %v", sessionKey, err)
	}
}

// interactionResponder answers the interaction a command was invoked from
type interactionResponder struct {
	session     *discordgo.Session
	interaction *discordgo.InteractionCreate
}

func (r *interactionResponder) Respond(resp *Response) error {
	if resp.Embed != nil {
		return common.RespondWithEmbed(r.session, r.interaction, resp.Embed, resp.Components, resp.Ephemeral)
	}
	return common.RespondWithMessage(r.session, r.interaction, resp.Content, resp.Ephemeral)
}
