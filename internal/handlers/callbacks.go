package handlers

import (
	"context"
	"errors"

	"github.com/BatmanBruc/vip-orders-bot/internal/contextkeys"
	"github.com/BatmanBruc/vip-orders-bot/internal/messages"
	"github.com/BatmanBruc/vip-orders-bot/internal/orders"
	"github.com/BatmanBruc/vip-orders-bot/internal/utils"
	"github.com/BatmanBruc/vip-orders-bot/types"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// HandleCallback applies an operator's approve or reject button.
func (bh *Handlers) HandleCallback(ctx context.Context, api BotAPI, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	data, _ := contextkeys.GetCallbackData(ctx)
	if data == "" {
		data = cq.Data
	}

	kind, subscriberID, orderID, err := orders.ParseAction(data)
	if err != nil {
		bh.answerCallback(ctx, api, cq.ID, messages.CallbackInvalid())
		return
	}

	d := orders.Decision{
		OperatorID:   cq.From.ID,
		SubscriberID: subscriberID,
		OrderID:      orderID,
	}
	answer := messages.CallbackApproved()
	if kind == types.ActionApprove {
		_, err = bh.engine.Approve(ctx, d)
	} else {
		answer = messages.CallbackRejected()
		_, err = bh.engine.Reject(ctx, d)
	}

	switch {
	case err == nil:
		bh.answerCallback(ctx, api, cq.ID, answer)
		bh.removeButtons(ctx, api, cq.Message)
	case errors.Is(err, orders.ErrUnauthorized):
		bh.answerCallback(ctx, api, cq.ID, messages.CallbackUnauthorized())
	case errors.Is(err, orders.ErrNoPendingOrder):
		bh.answerCallback(ctx, api, cq.ID, messages.CallbackAlreadyHandled())
	default:
		bh.log(ctx).Error("decision failed",
			zap.String("action", string(kind)),
			zap.Int64("subscriber_id", subscriberID),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		bh.answerCallback(ctx, api, cq.ID, messages.CallbackFailed())
	}
}

func (bh *Handlers) removeButtons(ctx context.Context, api BotAPI, m models.MaybeInaccessibleMessage) {
	chatID, messageID := messageRef(m)
	if chatID == 0 || messageID == 0 {
		return
	}
	_, err := api.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
		ChatID:      chatID,
		MessageID:   messageID,
		ReplyMarkup: utils.EmptyKeyboard(),
	})
	if err != nil {
		bh.logger.Debug("remove buttons failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func messageRef(m models.MaybeInaccessibleMessage) (int64, int) {
	if m.Message != nil {
		return m.Message.Chat.ID, m.Message.ID
	}
	if m.InaccessibleMessage != nil {
		return m.InaccessibleMessage.Chat.ID, m.InaccessibleMessage.MessageID
	}
	return 0, 0
}

func (bh *Handlers) answerCallback(ctx context.Context, api BotAPI, callbackID, text string) {
	_, err := api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		bh.logger.Debug("answer callback failed", zap.Error(err))
	}
}
