package notify

import (
	"context"
	"fmt"

	"github.com/BatmanBruc/vip-orders-bot/internal/messages"
	"github.com/BatmanBruc/vip-orders-bot/internal/utils"
	"github.com/BatmanBruc/vip-orders-bot/types"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Client is the part of *bot.Bot the sender needs.
type Client interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error)
}

type Sender interface {
	Send(ctx context.Context, n types.Notification) error
}

// TelegramSender renders notifications as HTML messages. Attachments are
// re-sent by file id with the text as caption.
type TelegramSender struct {
	client Client
}

func NewTelegramSender(client Client) *TelegramSender {
	return &TelegramSender{client: client}
}

func (s *TelegramSender) Send(ctx context.Context, n types.Notification) error {
	var markup models.ReplyMarkup
	if len(n.Actions) > 0 {
		kb := utils.BuildInlineKeyboard(n.Actions)
		markup = &kb
	}

	var err error
	switch {
	case n.Attachment == nil:
		_, err = s.client.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:      n.ChatID,
			Text:        n.Text,
			ParseMode:   messages.ParseModeHTML,
			ReplyMarkup: markup,
		})
	case n.Attachment.Kind == types.ProofPhoto:
		_, err = s.client.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:      n.ChatID,
			Photo:       &models.InputFileString{Data: n.Attachment.FileID},
			Caption:     n.Text,
			ParseMode:   messages.ParseModeHTML,
			ReplyMarkup: markup,
		})
	default:
		_, err = s.client.SendDocument(ctx, &bot.SendDocumentParams{
			ChatID:      n.ChatID,
			Document:    &models.InputFileString{Data: n.Attachment.FileID},
			Caption:     n.Text,
			ParseMode:   messages.ParseModeHTML,
			ReplyMarkup: markup,
		})
	}
	if err != nil {
		return fmt.Errorf("send to %d: %w", n.ChatID, err)
	}
	return nil
}
