// Package registrar answers /start with the caller's chat id so operators
// can copy it into the recipient sheet.
package registrar

import (
	"context"
	"fmt"

	"sheetcast/internal/transport/telegram/router"
	logx "sheetcast/pkg/logx"
)

// FallbackName greets senders without a first name.
const FallbackName = "there"

// Greeting is the /start reply.
func Greeting(name string, chatID int64) string {
	if name == "" {
		name = FallbackName
	}
	return fmt.Sprintf("✅ Registration successful!\n\nHello %s 👋\nYour chat_id is:\n%d", name, chatID)
}

type Handler struct {
	log logx.Logger
}

func New(log logx.Logger) *Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Handler{log: log.With(logx.String("comp", "registrar"))}
}

func (h *Handler) Commands() []router.Command {
	return []router.Command{
		{
			Name:        "start",
			Description: "Show your chat id",
			Handle:      h.Start,
		},
	}
}

// Start replies with the chat id. Arguments are ignored and a failed send
// is returned as is.
func (h *Handler) Start(ctx context.Context, req *router.Request) error {
	var name string
	if req.Message != nil {
		name = req.Message.FromFirstName
	}
	if _, err := req.Reply(ctx, Greeting(name, req.Chat.ChatID), nil); err != nil {
		return fmt.Errorf("reply to chat %d: %w", req.Chat.ChatID, err)
	}
	h.log.Info("chat registered", logx.Int64("chat_id", req.Chat.ChatID), logx.Int64("from_id", req.FromID))
	return nil
}
