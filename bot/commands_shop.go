package bot

import (
	"context"
	"fmt"
	"strings"

	"economy/bot/common"
	"economy/models"
	"economy/service"

	"github.com/bwmarrin/discordgo"
)

func itemOption(description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "item",
		Description: description,
		Required:    required,
	}
}

type shopCommand struct {
	exchange service.ExchangeService
}

func (c *shopCommand) Name() string                 { return "shop" }
func (c *shopCommand) RequiredAuthLevel() AuthLevel { return AuthUser }

func (c *shopCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: "Browse the item shop",
	}
}

func (c *shopCommand) Execute(ctx context.Context, cc *CommandContext) error {
	items, err := c.exchange.Catalog(ctx)
	if err != nil {
		return cc.ReplyEphemeral("❌ " + errorMessage(err))
	}
	return cc.ReplyEmbed(shopEmbed(items), nil)
}

func shopEmbed(items []*models.Item) *discordgo.MessageEmbed {
	fields := make([]*discordgo.MessageEmbedField, 0, len(items))
	for _, item := range items {
		value := fmt.Sprintf("%s\n`%s` · **%s** · gift **%s**",
			item.Description, item.ID, common.FormatAmount(item.Price), common.FormatAmount(service.GiftCost(item.Price)))
		if item.Category.IsConsumable() {
			value += " · consumable"
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  item.Name,
			Value: value,
		})
	}

	return &discordgo.MessageEmbed{
		Title:       "🛒 Shop",
		Description: "Buy with `/buy item:<id>` or send one with `/gift`.",
		Color:       common.ColorPrimary,
		Fields:      fields,
	}
}

type buyCommand struct {
	exchange service.ExchangeService
}

func (c *buyCommand) Name() string                 { return "buy" }
func (c *buyCommand) RequiredAuthLevel() AuthLevel { return AuthUser }

func (c *buyCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: "Buy an item from the shop",
		Options:     []*discordgo.ApplicationCommandOption{itemOption("ID of the item to buy", true)},
	}
}

func (c *buyCommand) Execute(ctx context.Context, cc *CommandContext) error {
	itemID := cc.StringOption("item")
	if itemID == "" {
		return cc.ReplyEphemeral("❌ Please name an item.")
	}

	result, err := c.exchange.Purchase(ctx, cc.UserID, itemID)
	if err != nil {
		return cc.ReplyEphemeral("❌ " + errorMessage(err))
	}
	if !result.Success {
		if result.Message != "" {
			return cc.ReplyEphemeral("❌ " + result.Message)
		}
		return cc.ReplyEphemeral("❌ " + errorMessage(result.Error))
	}

	return cc.Reply(fmt.Sprintf("🛍️ %s bought **%s**. %s New balance: **%s**",
		cc.DisplayName, result.Item.Name, result.Message, common.FormatAmount(result.NewBalance)))
}

type giftCommand struct {
	exchange service.ExchangeService
}

func (c *giftCommand) Name() string                 { return "gift" }
func (c *giftCommand) RequiredAuthLevel() AuthLevel { return AuthUser }

func (c *giftCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: "Send an item to another player",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "user",
				Description: "Who receives the gift",
				Required:    true,
			},
			itemOption("ID of the item to gift", true),
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "message",
				Description: "A note for the recipient",
			},
		},
	}
}

func (c *giftCommand) Execute(ctx context.Context, cc *CommandContext) error {
	recipientID := cc.UserOption("user")
	itemID := cc.StringOption("item")
	if recipientID == "" || itemID == "" {
		return cc.ReplyEphemeral("❌ Please provide both user and item.")
	}

	var message *string
	if note := cc.StringOption("message"); note != "" {
		message = &note
	}

	result, err := c.exchange.Gift(ctx, cc.UserID, recipientID, itemID, message)
	if err != nil {
		return cc.ReplyEphemeral("❌ " + errorMessage(err))
	}
	if !result.Success {
		return cc.ReplyEphemeral("❌ " + errorMessage(result.Error))
	}

	content := fmt.Sprintf("🎁 %s gifted **%s** to %s for **%s**",
		cc.DisplayName, result.Item.Name, common.Mention(recipientID), common.FormatAmount(result.Cost))
	if message != nil {
		content += fmt.Sprintf("\n> %s", *message)
	}
	return cc.Reply(content)
}

type wishlistCommand struct {
	exchange service.ExchangeService
}

func (c *wishlistCommand) Name() string                 { return "wishlist" }
func (c *wishlistCommand) RequiredAuthLevel() AuthLevel { return AuthUser }

func (c *wishlistCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: "Add an item to your wishlist, or show a wishlist",
		Options: []*discordgo.ApplicationCommandOption{
			itemOption("Item to wish for; leave empty to show the list", false),
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "note",
				Description: "A note for whoever gifts it",
			},
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "user",
				Description: "Whose wishlist to show",
			},
		},
	}
}

func (c *wishlistCommand) Execute(ctx context.Context, cc *CommandContext) error {
	if itemID := cc.StringOption("item"); itemID != "" {
		request, err := c.exchange.RequestGift(ctx, cc.UserID, itemID, cc.StringOption("note"))
		if err != nil {
			return cc.ReplyEphemeral("❌ " + errorMessage(err))
		}
		if request == nil {
			return cc.ReplyEphemeral("That item is already on your wishlist.")
		}
		return cc.ReplyEphemeral(fmt.Sprintf("✅ Added `%s` to your wishlist.", itemID))
	}

	userID := cc.UserOption("user")
	if userID == "" {
		userID = cc.UserID
	}

	requests, err := c.exchange.ListWishlist(ctx, userID)
	if err != nil {
		return cc.ReplyEphemeral("❌ " + errorMessage(err))
	}
	if len(requests) == 0 {
		return cc.Reply(fmt.Sprintf("%s has an empty wishlist.", common.Mention(userID)))
	}

	var lines []string
	for _, request := range requests {
		line := fmt.Sprintf("`%s`", request.ItemID)
		if request.Note != "" {
			line += " · " + request.Note
		}
		if !request.IsOpen() {
			line = fmt.Sprintf("~~%s~~ gifted by %s", line, common.Mention(*request.FulfilledBy))
		}
		lines = append(lines, line)
	}

	return cc.ReplyEmbed(&discordgo.MessageEmbed{
		Title:       "📝 Wishlist",
		Description: fmt.Sprintf("%s\n\n%s", common.Mention(userID), strings.Join(lines, "\n")),
		Color:       common.ColorPrimary,
	}, nil)
}

type inventoryCommand struct {
	exchange service.ExchangeService
}

func (c *inventoryCommand) Name() string                 { return "inventory" }
func (c *inventoryCommand) RequiredAuthLevel() AuthLevel { return AuthUser }

func (c *inventoryCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: "Show the items you own",
	}
}

func (c *inventoryCommand) Execute(ctx context.Context, cc *CommandContext) error {
	owned, err := c.exchange.Inventory(ctx, cc.UserID)
	if err != nil {
		return cc.ReplyEphemeral("❌ " + errorMessage(err))
	}
	if len(owned) == 0 {
		return cc.ReplyEphemeral("You don't own any items yet. Try `/shop`.")
	}

	var lines []string
	for _, o := range owned {
		line := fmt.Sprintf("`%s`", o.ItemID)
		if o.Method == models.AcquisitionMethodGift && o.SourceUserID != nil {
			line += " · gift from " + common.Mention(*o.SourceUserID)
		}
		lines = append(lines, line)
	}

	return cc.Responder.Respond(&Response{
		Embed: &discordgo.MessageEmbed{
			Title:       fmt.Sprintf("🎒 Inventory of %s", cc.DisplayName),
			Description: strings.Join(lines, "\n"),
			Color:       common.ColorPrimary,
		},
		Ephemeral: true,
	})
}
