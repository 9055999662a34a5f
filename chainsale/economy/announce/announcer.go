package announce

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/deckforge/chainsale/chainsale/config"
	"github.com/deckforge/chainsale/internal/domain/catalog"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
)

// MessageCreator is the part of the disgo REST client the announcer uses.
type MessageCreator interface {
	CreateMessage(channelID snowflake.ID, messageCreate discord.MessageCreate, opts ...rest.RequestOpt) (*discord.Message, error)
}

// Announcer posts every sale to a Discord channel.
type Announcer struct {
	client    MessageCreator
	channelID snowflake.ID
}

// New builds an announcer backed by a bot token REST client.
func New(token string, channelID snowflake.ID) *Announcer {
	return NewWithClient(rest.New(rest.NewClient(token)), channelID)
}

func NewWithClient(client MessageCreator, channelID snowflake.ID) *Announcer {
	return &Announcer{client: client, channelID: channelID}
}

// HandleSale satisfies catalog.SaleListener.
func (a *Announcer) HandleSale(ctx context.Context, sale catalog.Sale) error {
	ctx, cancel := context.WithTimeout(ctx, config.AnnounceTimeout)
	defer cancel()

	_, err := a.client.CreateMessage(a.channelID, discord.MessageCreate{
		Embeds: []discord.Embed{saleEmbed(sale)},
	}, rest.WithCtx(ctx))
	if err != nil {
		slog.Error("Failed to announce sale",
			slog.String("type", "sys"),
			slog.String("channel_id", a.channelID.String()),
			slog.Uint64("token_id", sale.TokenID),
			slog.Any("error", err))
		return fmt.Errorf("announce token %d: %w", sale.TokenID, err)
	}
	return nil
}

func saleEmbed(sale catalog.Sale) discord.Embed {
	title := "🃏 Card Sold"
	color := config.SaleColor
	if sale.Chain {
		title = "⛓️ Chain Purchase"
		color = config.ChainColor
	}

	builder := discord.NewEmbedBuilder().
		SetTitle(title).
		SetDescription(fmt.Sprintf("Deck **%d**, generation **%d** sold to `%s`", sale.Deck, sale.Generation, sale.Buyer)).
		SetColor(color).
		AddField("Token", fmt.Sprintf("#%d", sale.TokenID), true).
		AddField("Tier", fmt.Sprintf("%d", sale.Tier), true).
		AddField("Price", catalog.FormatCoins(sale.Price), true).
		SetTimestamp(time.Unix(sale.Timestamp, 0))

	if sale.Next != nil {
		builder.AddField("Next Generation",
			fmt.Sprintf("Generation %d opens <t:%d:R>", sale.Next.Generation, sale.Next.StartTime), false)
	} else if sale.Generation == catalog.MaxGenerations {
		builder.AddField("Deck Complete", "This was the final generation", false)
	}
	return builder.Build()
}
