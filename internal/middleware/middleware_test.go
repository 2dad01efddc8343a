package middleware

import (
	"context"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BatmanBruc/vip-orders-bot/internal/contextkeys"
)

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name     string
		update   *models.Update
		wantType contextkeys.MessageType
		wantFile string
		wantData string
	}{
		{
			name:     "command",
			update:   &models.Update{Message: &models.Message{Text: "/start basic_alice"}},
			wantType: contextkeys.MessageTypeCommand,
		},
		{
			name:     "text",
			update:   &models.Update{Message: &models.Message{Text: "hello"}},
			wantType: contextkeys.MessageTypeText,
		},
		{
			name: "photo picks the largest size",
			update: &models.Update{Message: &models.Message{Photo: []models.PhotoSize{
				{FileID: "small", FileSize: 100},
				{FileID: "large", FileSize: 900},
				{FileID: "medium", FileSize: 400},
			}}},
			wantType: contextkeys.MessageTypePhoto,
			wantFile: "large",
		},
		{
			name: "photo without sizes picks the last",
			update: &models.Update{Message: &models.Message{Photo: []models.PhotoSize{
				{FileID: "a"}, {FileID: "b"},
			}}},
			wantType: contextkeys.MessageTypePhoto,
			wantFile: "b",
		},
		{
			name:     "document",
			update:   &models.Update{Message: &models.Message{Document: &models.Document{FileID: "doc", MimeType: "application/pdf"}}},
			wantType: contextkeys.MessageTypeDocument,
			wantFile: "doc",
		},
		{
			name:     "callback",
			update:   &models.Update{CallbackQuery: &models.CallbackQuery{ID: "1", Data: "approve_1_a"}},
			wantType: contextkeys.MessageTypeClickButton,
			wantData: "approve_1_a",
		},
		{
			name:     "sticker",
			update:   &models.Update{Message: &models.Message{}},
			wantType: contextkeys.MessageTypeUnknown,
		},
		{
			name:     "empty update",
			update:   &models.Update{},
			wantType: contextkeys.MessageTypeUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := Analyze(context.Background(), tt.update)
			if got, _ := contextkeys.GetMessageType(ctx); got != tt.wantType {
				t.Fatalf("message type = %s, want %s", got, tt.wantType)
			}
			info, ok := contextkeys.GetFileInfo(ctx)
			if tt.wantFile == "" && ok {
				t.Fatalf("unexpected file info %+v", info)
			}
			if tt.wantFile != "" && info.FileID != tt.wantFile {
				t.Fatalf("file id = %q, want %q", info.FileID, tt.wantFile)
			}
			data, _ := contextkeys.GetCallbackData(ctx)
			if data != tt.wantData {
				t.Fatalf("callback data = %q, want %q", data, tt.wantData)
			}
			if id, ok := contextkeys.GetUpdateID(ctx); !ok || id == "" {
				t.Fatal("update id missing")
			}
		})
	}
}

func TestRecoverMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	m := NewMiddlewares(zap.New(core))

	handler := m.RecoverMiddleware(func(ctx context.Context, b *bot.Bot, update *models.Update) {
		panic("boom")
	})
	handler(context.Background(), nil, &models.Update{})

	if logs.FilterMessage("handler panic").Len() != 1 {
		t.Fatalf("expected the panic to be logged, got %v", logs.All())
	}
}

func TestAnalyzeMessageMiddlewarePassesContext(t *testing.T) {
	m := NewMiddlewares(nil)
	var got contextkeys.MessageType
	handler := m.AnalyzeMessageMiddleware(func(ctx context.Context, b *bot.Bot, update *models.Update) {
		got, _ = contextkeys.GetMessageType(ctx)
	})
	handler(context.Background(), nil, &models.Update{Message: &models.Message{Text: "/stats"}})
	if got != contextkeys.MessageTypeCommand {
		t.Fatalf("message type = %s", got)
	}
}
