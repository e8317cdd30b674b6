package registrar

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	kit "sheetcast/internal/transport"
	"sheetcast/internal/transport/telegram/router"
	logx "sheetcast/pkg/logx"
)

type captureSender struct {
	to    []kit.ChatTarget
	texts []string
	err   error
}

func (c *captureSender) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	if c.err != nil {
		return kit.MessageRef{}, c.err
	}
	c.to = append(c.to, to)
	c.texts = append(c.texts, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

func TestGreeting(t *testing.T) {
	t.Parallel()
	require.Equal(t, "✅ Registration successful!\n\nHello Asha 👋\nYour chat_id is:\n123456789", Greeting("Asha", 123456789))
	require.Contains(t, Greeting("", -1001), "Hello there 👋")
	require.Contains(t, Greeting("  ", 5), "Hello    👋", "only an empty name falls back")
	require.Contains(t, Greeting("", -1001), "\n-1001")
}

func TestStartThroughRouter(t *testing.T) {
	t.Parallel()
	sender := &captureSender{}
	r := router.New(logx.Nop(), sender, 0)
	require.NoError(t, r.Register(New(logx.Nop()).Commands()...))

	handled := r.Dispatch(context.Background(), kit.Update{
		Kind:    kit.UpdateMessage,
		Message: &kit.Message{ChatID: 555, ThreadID: 9, FromID: 77, FromFirstName: "Ravi", Text: "/start@sheetcast_bot ref123"},
	})
	require.True(t, handled)
	require.Equal(t, []kit.ChatTarget{{ChatID: 555, ThreadID: 9}}, sender.to)
	require.Equal(t, []string{Greeting("Ravi", 555)}, sender.texts)

	handled = r.Dispatch(context.Background(), kit.Update{
		Kind:    kit.UpdateMessage,
		Message: &kit.Message{ChatID: 556, Text: "/start"},
	})
	require.True(t, handled)
	require.Contains(t, sender.texts[1], "Hello there")
	require.Contains(t, sender.texts[1], "556")
}

func TestStartReturnsSendError(t *testing.T) {
	t.Parallel()
	boom := errors.New("chat not found")
	h := New(logx.Nop())
	err := h.Start(context.Background(), &router.Request{
		Chat:    kit.ChatTarget{ChatID: 1},
		Message: &kit.Message{ChatID: 1, FromFirstName: "A"},
		Sender:  &captureSender{err: boom},
	})
	require.ErrorIs(t, err, boom)
}
