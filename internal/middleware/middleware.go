package middleware

import (
	"context"
	"runtime/debug"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BatmanBruc/vip-orders-bot/internal/contextkeys"
)

type Middlewares struct {
	logger *zap.Logger
}

func NewMiddlewares(logger *zap.Logger) *Middlewares {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middlewares{logger: logger.Named("middleware")}
}

// RecoverMiddleware keeps a panicking handler from taking the poller down.
func (m *Middlewares) RecoverMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		defer func() {
			if r := recover(); r != nil {
				updateID, _ := contextkeys.GetUpdateID(ctx)
				m.logger.Error("handler panic",
					zap.Any("panic", r),
					zap.String("update_id", updateID),
					zap.ByteString("stack", debug.Stack()),
				)
			}
		}()
		next(ctx, b, update)
	}
}

func (m *Middlewares) AnalyzeMessageMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		next(Analyze(ctx, update), b, update)
	}
}

// Analyze classifies update and stores the result in the context.
func Analyze(ctx context.Context, update *models.Update) context.Context {
	ctx = contextkeys.WithUpdateID(ctx, uuid.NewString())
	if update == nil {
		return contextkeys.WithMessageType(ctx, contextkeys.MessageTypeUnknown)
	}

	if update.CallbackQuery != nil && update.CallbackQuery.Data != "" {
		ctx = contextkeys.WithMessageType(ctx, contextkeys.MessageTypeClickButton)
		return contextkeys.WithCallbackData(ctx, update.CallbackQuery.Data)
	}

	msg := update.Message
	if msg == nil {
		return contextkeys.WithMessageType(ctx, contextkeys.MessageTypeUnknown)
	}
	if strings.HasPrefix(msg.Text, "/") {
		return contextkeys.WithMessageType(ctx, contextkeys.MessageTypeCommand)
	}

	msgType := determineMessageType(msg)
	ctx = contextkeys.WithMessageType(ctx, msgType)
	if info, ok := analyzeFile(msg); ok {
		ctx = contextkeys.WithFileInfo(ctx, info)
	}
	return ctx
}

func determineMessageType(msg *models.Message) contextkeys.MessageType {
	if len(msg.Photo) > 0 {
		return contextkeys.MessageTypePhoto
	}
	if msg.Document != nil {
		return contextkeys.MessageTypeDocument
	}
	if msg.Text != "" || msg.Caption != "" {
		return contextkeys.MessageTypeText
	}
	return contextkeys.MessageTypeUnknown
}

func analyzeFile(msg *models.Message) (contextkeys.FileInfo, bool) {
	if len(msg.Photo) > 0 {
		best := msg.Photo[0]
		for i := 1; i < len(msg.Photo); i++ {
			if msg.Photo[i].FileSize >= best.FileSize {
				best = msg.Photo[i]
			}
		}
		return contextkeys.FileInfo{
			FileType: contextkeys.MessageTypePhoto,
			FileID:   best.FileID,
			FileSize: int64(best.FileSize),
			FileName: "photo.jpg",
		}, best.FileID != ""
	}

	if doc := msg.Document; doc != nil {
		return contextkeys.FileInfo{
			FileType: contextkeys.MessageTypeDocument,
			FileID:   doc.FileID,
			FileSize: int64(doc.FileSize),
			MimeType: doc.MimeType,
			FileName: doc.FileName,
		}, doc.FileID != ""
	}

	return contextkeys.FileInfo{}, false
}
