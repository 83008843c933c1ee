package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"economy/bot/common"
	"economy/models"
	"economy/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// RouletteCustomIDPrefix starts the custom ID of every roulette button
const RouletteCustomIDPrefix = "roulette"

const defaultRouletteStake = 100

// RouletteCustomID builds the custom ID for a bet button: roulette|<sessionKey>|<actionID>
func RouletteCustomID(sessionKey, actionID string) string {
	return strings.Join([]string{RouletteCustomIDPrefix, sessionKey, actionID}, "|")
}

// ParseRouletteCustomID splits a roulette custom ID. ok is false for any other component.
func ParseRouletteCustomID(customID string) (sessionKey, actionID string, ok bool) {
	parts := strings.SplitN(customID, "|", 3)
	if len(parts) != 3 || parts[0] != RouletteCustomIDPrefix || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// betAction builds the action ID the session store parses
func betAction(category models.BetCategory, amount int64, target *int) string {
	if target != nil {
		return fmt.Sprintf("%s:%s:%d:%d", service.BetActionPrefix, category, amount, *target)
	}
	return fmt.Sprintf("%s:%s:%d", service.BetActionPrefix, category, amount)
}

var rouletteButtons = []struct {
	category models.BetCategory
	label    string
	style    discordgo.ButtonStyle
}{
	{models.BetCategoryRed, "🔴 Red", discordgo.DangerButton},
	{models.BetCategoryBlack, "⚫ Black", discordgo.SecondaryButton},
	{models.BetCategoryEven, "Even", discordgo.PrimaryButton},
	{models.BetCategoryOdd, "Odd", discordgo.PrimaryButton},
	{models.BetCategoryLow, "1-18", discordgo.PrimaryButton},
	{models.BetCategoryHigh, "19-36", discordgo.PrimaryButton},
	{models.BetCategoryDozen1, "1st 12", discordgo.SuccessButton},
	{models.BetCategoryDozen2, "2nd 12", discordgo.SuccessButton},
	{models.BetCategoryDozen3, "3rd 12", discordgo.SuccessButton},
}

// rouletteComponents lays out the bet buttons, five to a row
func rouletteComponents(sessionKey string, stake int64, straight *int) []discordgo.MessageComponent {
	var buttons []discordgo.MessageComponent
	for _, b := range rouletteButtons {
		buttons = append(buttons, discordgo.Button{
			Label:    fmt.Sprintf("%s · %s", b.label, common.FormatBalance(stake)),
			Style:    b.style,
			CustomID: RouletteCustomID(sessionKey, betAction(b.category, stake, nil)),
		})
	}
	if straight != nil {
		buttons = append(buttons, discordgo.Button{
			Label:    fmt.Sprintf("🎯 %d · %s", *straight, common.FormatBalance(stake)),
			Style:    discordgo.SuccessButton,
			CustomID: RouletteCustomID(sessionKey, betAction(models.BetCategoryStraight, stake, straight)),
		})
	}

	var rows []discordgo.MessageComponent
	for start := 0; start < len(buttons); start += 5 {
		end := min(start+5, len(buttons))
		rows = append(rows, discordgo.ActionsRow{Components: buttons[start:end]})
	}
	return rows
}

// rouletteCommand opens tables and remembers which channel each one lives in
// so the settlement can be announced there
type rouletteCommand struct {
	sessions *service.SessionStore

	mu       sync.Mutex
	channels map[string]string // session key -> channel ID
}

func newRouletteCommand(sessions *service.SessionStore) *rouletteCommand {
	return &rouletteCommand{
		sessions: sessions,
		channels: make(map[string]string),
	}
}

func (c *rouletteCommand) Name() string                 { return "roulette" }
func (c *rouletteCommand) RequiredAuthLevel() AuthLevel { return AuthUser }

func (c *rouletteCommand) Definition() *discordgo.ApplicationCommand {
	minStake := 1.0
	minNumber := 0.0
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: "Open a roulette table in this channel",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "stake",
				Description: "Coins each button bets",
				MinValue:    &minStake,
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "number",
				Description: "Add a button for a straight bet on this number",
				MinValue:    &minNumber,
				MaxValue:    36,
			},
		},
	}
}

func (c *rouletteCommand) Execute(ctx context.Context, cc *CommandContext) error {
	stake := int64(defaultRouletteStake)
	if value, ok := cc.IntOption("stake"); ok && value > 0 {
		stake = value
	}

	var straight *int
	if value, ok := cc.IntOption("number"); ok {
		if value < 0 || value > 36 {
			return cc.ReplyEphemeral("❌ Pick a number between 0 and 36.")
		}
		n := int(value)
		straight = &n
	}

	key, session := c.sessions.Start(ctx, service.StartOptions{
		GameType:  models.GameTypeRoulette,
		ChannelID: cc.ChannelID,
	})

	c.mu.Lock()
	c.channels[key] = cc.ChannelID
	c.mu.Unlock()

	embed := &discordgo.MessageEmbed{
		Title: "🎡 Roulette",
		Description: fmt.Sprintf("%s opened a table. Place your bets! The wheel spins %s.",
			cc.DisplayName, common.FormatDiscordTimestamp(session.Deadline(), "R")),
		Color: common.ColorGold,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Outside bets pay 1:1, dozens 2:1, straight numbers 35:1",
		},
	}
	return cc.ReplyEmbed(embed, rouletteComponents(key, stake, straight))
}

// HandleComponent routes a roulette button press to the session store.
// handled is false when the custom ID or the action is not a roulette bet.
func (c *rouletteCommand) HandleComponent(ctx context.Context, userID, displayName, customID string) (handled bool, reply string) {
	key, actionID, ok := ParseRouletteCustomID(customID)
	if !ok {
		return false, ""
	}

	handled, receipt, err := c.sessions.HandleAction(ctx, key, userID, displayName, actionID)
	if err != nil {
		log.WithFields(log.Fields{
			"sessionKey": key,
			"userId":     userID,
			"error":      err,
		}).Error("Failed to place roulette bet")
		return true, "❌ " + errorMessage(err)
	}
	if !handled {
		if _, open := c.sessions.Get(key); open {
			// Not a bet action; another handler may own it
			return false, ""
		}
		return true, "This table has closed."
	}

	if !receipt.Accepted {
		return true, "❌ " + errorMessage(receipt.Reason)
	}

	bet := receipt.Bet
	label := string(bet.Category)
	if bet.Target != nil {
		label = fmt.Sprintf("%s %d", bet.Category, *bet.Target)
	}
	return true, fmt.Sprintf("✅ Bet **%s** on %s. Your stake on this table: **%s**",
		common.FormatAmount(bet.Amount), label, common.FormatAmount(receipt.TotalStaked))
}

// release forgets a table and returns the channel it was opened in
func (c *rouletteCommand) release(sessionKey string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	channelID, ok := c.channels[sessionKey]
	delete(c.channels, sessionKey)
	return channelID, ok
}

func pocketLabel(outcome int) string {
	switch {
	case outcome == 0:
		return "🟢 0"
	case service.IsRed(outcome):
		return fmt.Sprintf("🔴 %d", outcome)
	default:
		return fmt.Sprintf("⚫ %d", outcome)
	}
}

// settlementEmbed summarises a settled table
func settlementEmbed(record *models.SettlementRecord) *discordgo.MessageEmbed {
	var winners, losers []string
	for _, r := range record.Results {
		if r.IsWinner() {
			line := fmt.Sprintf("%s **+%s**", common.Mention(r.UserID), common.FormatBalance(r.Credited))
			if r.Credited > r.Net {
				line += " (bonus)"
			}
			winners = append(winners, line)
			continue
		}
		line := fmt.Sprintf("%s %s", common.Mention(r.UserID), common.FormatSigned(-r.Debited))
		if r.ShieldUsed {
			line += " 🛡️"
		}
		losers = append(losers, line)
	}

	fields := []*discordgo.MessageEmbedField{}
	if len(winners) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Winners", Value: strings.Join(winners, "\n")})
	}
	if len(losers) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Losers", Value: strings.Join(losers, "\n")})
	}

	color := common.ColorDanger
	if record.Winners > 0 {
		color = common.ColorSuccess
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🎡 The ball lands on %s", pocketLabel(record.Outcome)),
		Description: fmt.Sprintf("Total paid out: **%s**", common.FormatAmount(record.TotalPayout)),
		Color:       color,
		Fields:      fields,
	}
}
