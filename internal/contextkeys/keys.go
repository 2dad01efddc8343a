package contextkeys

import "context"

type messageTypeKey struct{}
type fileInfoKey struct{}
type callbackDataKey struct{}
type updateIDKey struct{}

type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypePhoto       MessageType = "photo"
	MessageTypeDocument    MessageType = "document"
	MessageTypeCommand     MessageType = "command"
	MessageTypeClickButton MessageType = "clickButton"
	MessageTypeUnknown     MessageType = "unknown"
)

// FileInfo describes the media a subscriber sent as payment proof.
type FileInfo struct {
	FileType MessageType `json:"file_type"`
	FileID   string      `json:"file_id"`
	FileSize int64       `json:"file_size,omitempty"`
	MimeType string      `json:"mime_type,omitempty"`
	FileName string      `json:"file_name,omitempty"`
}

func WithMessageType(ctx context.Context, msgType MessageType) context.Context {
	return context.WithValue(ctx, messageTypeKey{}, msgType)
}

func GetMessageType(ctx context.Context) (MessageType, bool) {
	v, ok := ctx.Value(messageTypeKey{}).(MessageType)
	if !ok {
		return MessageTypeUnknown, false
	}
	return v, true
}

func WithFileInfo(ctx context.Context, info FileInfo) context.Context {
	return context.WithValue(ctx, fileInfoKey{}, info)
}

func GetFileInfo(ctx context.Context) (FileInfo, bool) {
	v, ok := ctx.Value(fileInfoKey{}).(FileInfo)
	return v, ok && v.FileID != ""
}

func WithCallbackData(ctx context.Context, data string) context.Context {
	return context.WithValue(ctx, callbackDataKey{}, data)
}

func GetCallbackData(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(callbackDataKey{}).(string)
	return v, ok
}

// WithUpdateID tags the context with a per-update id used to correlate logs.
func WithUpdateID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, updateIDKey{}, id)
}

func GetUpdateID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(updateIDKey{}).(string)
	return v, ok
}
