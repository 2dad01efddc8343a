package handlers

import (
	"context"

	"github.com/BatmanBruc/vip-orders-bot/internal/contextkeys"
	"github.com/BatmanBruc/vip-orders-bot/internal/messages"
	"github.com/BatmanBruc/vip-orders-bot/internal/orders"
	"github.com/BatmanBruc/vip-orders-bot/internal/stats"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// BotAPI is the part of *bot.Bot the handlers reply with.
type BotAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	EditMessageReplyMarkup(ctx context.Context, params *bot.EditMessageReplyMarkupParams) (*models.Message, error)
}

type Handlers struct {
	engine   *orders.Engine
	reporter *stats.Reporter
	logger   *zap.Logger
}

func NewHandlers(engine *orders.Engine, reporter *stats.Reporter, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		engine:   engine,
		reporter: reporter,
		logger:   logger.Named("handlers"),
	}
}

func (bh *Handlers) MainHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	bh.Handle(ctx, b, update)
}

// Handle routes an update already classified by the middleware chain.
func (bh *Handlers) Handle(ctx context.Context, api BotAPI, update *models.Update) {
	if update == nil {
		return
	}
	messageType, _ := contextkeys.GetMessageType(ctx)

	switch messageType {
	case contextkeys.MessageTypeCommand:
		bh.HandleCommand(ctx, api, update)
	case contextkeys.MessageTypePhoto, contextkeys.MessageTypeDocument:
		bh.HandleProof(ctx, api, update)
	case contextkeys.MessageTypeClickButton:
		bh.HandleCallback(ctx, api, update)
	default:
		bh.logger.Debug("update ignored", zap.String("type", string(messageType)))
	}
}

func (bh *Handlers) reply(ctx context.Context, api BotAPI, chatID int64, text string) {
	if chatID == 0 {
		return
	}
	_, err := api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: messages.ParseModeHTML,
	})
	if err != nil {
		bh.logger.Warn("reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (bh *Handlers) log(ctx context.Context) *zap.Logger {
	if id, ok := contextkeys.GetUpdateID(ctx); ok {
		return bh.logger.With(zap.String("update_id", id))
	}
	return bh.logger
}
