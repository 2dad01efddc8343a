package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/BatmanBruc/vip-orders-bot/internal/messages"
	"github.com/BatmanBruc/vip-orders-bot/internal/orders"
	"github.com/BatmanBruc/vip-orders-bot/internal/pricing"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

func (bh *Handlers) HandleCommand(ctx context.Context, api BotAPI, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	fields := strings.Fields(strings.TrimSpace(msg.Text))
	if len(fields) == 0 {
		return
	}
	cmd := fields[0]
	if strings.Contains(cmd, "@") {
		cmd = strings.SplitN(cmd, "@", 2)[0]
	}

	switch cmd {
	case "/start":
		payload := ""
		if len(fields) > 1 {
			payload = strings.Join(fields[1:], " ")
		}
		bh.handleStart(ctx, api, msg, payload)
	case "/stats":
		bh.handleStats(ctx, api, msg)
	}
}

func (bh *Handlers) handleStart(ctx context.Context, api BotAPI, msg *models.Message, payload string) {
	chatID := msg.Chat.ID
	if strings.TrimSpace(payload) == "" {
		bh.reply(ctx, api, chatID, messages.Welcome(pricing.All()))
		return
	}

	planID, handle, err := orders.ParseStartPayload(payload)
	if err != nil {
		bh.reply(ctx, api, chatID, messages.StartUsage())
		return
	}

	req := orders.StartRequest{
		SubscriberID: chatID,
		Handle:       handle,
		PlanID:       planID,
	}
	if msg.From != nil {
		req.Name = msg.From.FirstName
		if req.Handle == "" {
			req.Handle = msg.From.Username
		}
	}

	_, err = bh.engine.StartOrder(ctx, req)
	switch {
	case err == nil:
	case errors.Is(err, orders.ErrInvalidPlan):
		bh.reply(ctx, api, chatID, messages.InvalidPlan(planID))
	default:
		bh.log(ctx).Error("start order failed", zap.Int64("subscriber_id", chatID), zap.Error(err))
		bh.reply(ctx, api, chatID, messages.ErrorDefault())
	}
}

// handleStats answers the operator only; anyone else gets no reply.
func (bh *Handlers) handleStats(ctx context.Context, api BotAPI, msg *models.Message) {
	if msg.Chat.ID != bh.engine.OperatorID() {
		return
	}
	snap, err := bh.reporter.Collect(ctx)
	if err != nil {
		bh.log(ctx).Error("collect stats failed", zap.Error(err))
		bh.reply(ctx, api, msg.Chat.ID, messages.ErrorDefault())
		return
	}
	bh.reply(ctx, api, msg.Chat.ID, snap.Text())
}
