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

const (
	historyDefaultLimit = 10
	historyMaxLimit     = 25
	leaderboardSize     = 10
)

type balanceCommand struct {
	ledger service.LedgerService
}

func (c *balanceCommand) Name() string                 { return "balance" }
func (c *balanceCommand) RequiredAuthLevel() AuthLevel { return AuthUser }

func (c *balanceCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: "Check your current balance",
	}
}

func (c *balanceCommand) Execute(ctx context.Context, cc *CommandContext) error {
	balance, err := c.ledger.GetBalance(ctx, cc.UserID)
	if err != nil {
		return cc.ReplyEphemeral("❌ " + errorMessage(err))
	}
	return cc.Reply(fmt.Sprintf("%s, your current balance: **%s**", cc.DisplayName, common.FormatAmount(balance)))
}

type dailyCommand struct {
	ledger service.LedgerService
}

func (c *dailyCommand) Name() string                 { return "daily" }
func (c *dailyCommand) RequiredAuthLevel() AuthLevel { return AuthUser }

func (c *dailyCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: "Claim your daily bonus",
	}
}

func (c *dailyCommand) Execute(ctx context.Context, cc *CommandContext) error {
	result, err := c.ledger.ClaimDaily(ctx, cc.UserID)
	if err != nil {
		return cc.ReplyEphemeral("❌ " + errorMessage(err))
	}

	if !result.Claimed {
		switch result.Reason {
		case models.DailyReasonAlreadyClaimed:
			return cc.ReplyEphemeral(fmt.Sprintf("You already claimed today. Come back %s.",
				common.FormatDiscordTimestamp(result.NextClaimAt, "R")))
		case models.DailyReasonBalanceTooHigh:
			return cc.ReplyEphemeral(fmt.Sprintf("The daily bonus only tops balances up to %s.",
				common.FormatAmount(service.DailyBonusCeiling)))
		}
		return cc.ReplyEphemeral("Nothing to claim right now.")
	}

	message := fmt.Sprintf("🎁 %s claimed **%s**", cc.DisplayName, common.FormatAmount(result.Amount))
	if result.Boosted {
		message += " (boosted ⚡)"
	}
	message += fmt.Sprintf(". New balance: **%s**", common.FormatAmount(result.NewBalance))
	return cc.Reply(message)
}

type historyCommand struct {
	ledger service.LedgerService
}

func (c *historyCommand) Name() string                 { return "history" }
func (c *historyCommand) RequiredAuthLevel() AuthLevel { return AuthUser }

func (c *historyCommand) Definition() *discordgo.ApplicationCommand {
	minLimit := 1.0
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: "Show your recent transactions",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "limit",
				Description: "How many transactions to show",
				MinValue:    &minLimit,
				MaxValue:    historyMaxLimit,
			},
		},
	}
}

func (c *historyCommand) Execute(ctx context.Context, cc *CommandContext) error {
	limit := historyDefaultLimit
	if value, ok := cc.IntOption("limit"); ok && value > 0 {
		limit = int(min(value, historyMaxLimit))
	}

	txns, err := c.ledger.GetTransactionHistory(ctx, cc.UserID, limit)
	if err != nil {
		return cc.ReplyEphemeral("❌ " + errorMessage(err))
	}
	if len(txns) == 0 {
		return cc.ReplyEphemeral("You have no transactions yet.")
	}

	var lines []string
	for _, txn := range txns {
		lines = append(lines, fmt.Sprintf("%s `%s` **%s** → %s · %s",
			common.FormatDiscordTimestamp(txn.CreatedAt, "R"),
			txn.Kind,
			common.FormatSigned(txn.Amount),
			common.FormatBalance(txn.BalanceAfter),
			txn.Reason,
		))
	}

	return cc.Responder.Respond(&Response{
		Embed: &discordgo.MessageEmbed{
			Title:       fmt.Sprintf("Transactions for %s", cc.DisplayName),
			Description: strings.Join(lines, "\n"),
			Color:       common.ColorPrimary,
		},
		Ephemeral: true,
	})
}

type leaderboardCommand struct {
	ledger service.LedgerService
}

func (c *leaderboardCommand) Name() string                 { return "leaderboard" }
func (c *leaderboardCommand) RequiredAuthLevel() AuthLevel { return AuthUser }

func (c *leaderboardCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: "Show the richest players",
	}
}

func (c *leaderboardCommand) Execute(ctx context.Context, cc *CommandContext) error {
	accounts, err := c.ledger.GetLeaderboard(ctx, leaderboardSize)
	if err != nil {
		return cc.ReplyEphemeral("❌ " + errorMessage(err))
	}
	if len(accounts) == 0 {
		return cc.Reply("Nobody has played yet.")
	}

	return cc.ReplyEmbed(leaderboardEmbed(accounts), nil)
}

func leaderboardEmbed(accounts []*models.Account) *discordgo.MessageEmbed {
	medals := []string{"🥇", "🥈", "🥉"}

	var lines []string
	for i, account := range accounts {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		line := fmt.Sprintf("%s %s **%s**", rank, common.Mention(account.UserID), common.FormatAmount(account.Balance))
		if account.WinStreak > 1 {
			line += fmt.Sprintf(" 🔥%d", account.WinStreak)
		}
		lines = append(lines, line)
	}

	return &discordgo.MessageEmbed{
		Title:       "🏆 Leaderboard",
		Description: strings.Join(lines, "\n"),
		Color:       common.ColorGold,
	}
}

type boostCommand struct {
	ledger service.LedgerService
}

func (c *boostCommand) Name() string                 { return "boost" }
func (c *boostCommand) RequiredAuthLevel() AuthLevel { return AuthUser }

func (c *boostCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: "Show your boost, streak and shields",
	}
}

func (c *boostCommand) Execute(ctx context.Context, cc *CommandContext) error {
	status, err := c.ledger.GetBoostStatus(ctx, cc.UserID)
	if err != nil {
		return cc.ReplyEphemeral("❌ " + errorMessage(err))
	}

	boost := "Inactive"
	if status.Active {
		boost = fmt.Sprintf("Active, %s left", common.FormatDuration(status.Remaining))
	}
	daily := "Not available"
	if status.DailyClaimable {
		daily = common.FormatAmount(status.NextDailyAmount)
	}

	return cc.Responder.Respond(&Response{
		Embed: &discordgo.MessageEmbed{
			Title: fmt.Sprintf("⚡ Boosts for %s", cc.DisplayName),
			Color: common.ColorPrimary,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Daily boost", Value: boost, Inline: true},
				{Name: "Win streak", Value: fmt.Sprintf("%d", status.Streak), Inline: true},
				{Name: "Next win bonus", Value: fmt.Sprintf("%d%%", status.NextStreakBonus), Inline: true},
				{Name: "Streak shields", Value: fmt.Sprintf("%d", status.Shields), Inline: true},
				{Name: "Daily bonus", Value: daily, Inline: true},
			},
		},
		Ephemeral: true,
	})
}

type adminAdjustCommand struct {
	ledger service.LedgerService
}

func (c *adminAdjustCommand) Name() string                 { return "admin-adjust" }
func (c *adminAdjustCommand) RequiredAuthLevel() AuthLevel { return AuthAdmin }

func (c *adminAdjustCommand) Definition() *discordgo.ApplicationCommand {
	adminOnly := int64(discordgo.PermissionAdministrator)
	return &discordgo.ApplicationCommand{
		Name:                     c.Name(),
		Description:              "Add or remove coins from a player",
		DefaultMemberPermissions: &adminOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "user",
				Description: "Player to adjust",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "amount",
				Description: "Coins to add, negative to remove",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "reason",
				Description: "Why the balance is being adjusted",
			},
		},
	}
}

func (c *adminAdjustCommand) Execute(ctx context.Context, cc *CommandContext) error {
	userID := cc.UserOption("user")
	amount, ok := cc.IntOption("amount")
	if userID == "" || !ok {
		return cc.ReplyEphemeral("❌ Please provide both user and amount.")
	}

	reason := cc.StringOption("reason")
	if reason == "" {
		reason = "admin adjustment"
	}

	result, err := c.ledger.AdminAdjust(ctx, userID, amount, reason)
	if err != nil {
		return cc.ReplyEphemeral("❌ " + errorMessage(err))
	}
	if !result.Success {
		return cc.ReplyEphemeral("❌ " + errorMessage(result.Error))
	}

	message := fmt.Sprintf("✅ Adjusted %s by **%s**. New balance: **%s**",
		common.Mention(userID), common.FormatSigned(result.ActualAmount), common.FormatAmount(result.NewBalance))
	if result.ActualAmount != amount {
		message += fmt.Sprintf(" (requested %s)", common.FormatSigned(amount))
	}
	return cc.ReplyEphemeral(message)
}
