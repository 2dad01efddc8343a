package handlers

import (
	"context"
	"errors"

	"github.com/BatmanBruc/vip-orders-bot/internal/contextkeys"
	"github.com/BatmanBruc/vip-orders-bot/internal/messages"
	"github.com/BatmanBruc/vip-orders-bot/internal/orders"
	"github.com/BatmanBruc/vip-orders-bot/types"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// HandleProof treats any photo or document as payment proof. Uploads with
// no order waiting for proof are ignored.
func (bh *Handlers) HandleProof(ctx context.Context, api BotAPI, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	info, ok := contextkeys.GetFileInfo(ctx)
	if !ok {
		return
	}

	kind := types.ProofDocument
	if info.FileType == contextkeys.MessageTypePhoto {
		kind = types.ProofPhoto
	}
	req := orders.ProofRequest{
		SubscriberID: msg.Chat.ID,
		ProofRef:     info.FileID,
		ProofKind:    kind,
	}
	if msg.From != nil {
		req.Name = msg.From.FirstName
		req.Handle = msg.From.Username
	}

	_, err := bh.engine.SubmitProof(ctx, req)
	switch {
	case err == nil:
	case errors.Is(err, orders.ErrNoPendingOrder):
		bh.log(ctx).Debug("proof without pending order", zap.Int64("subscriber_id", msg.Chat.ID))
	default:
		bh.log(ctx).Error("submit proof failed", zap.Int64("subscriber_id", msg.Chat.ID), zap.Error(err))
		bh.reply(ctx, api, msg.Chat.ID, messages.ErrorDefault())
	}
}
