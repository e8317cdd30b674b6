package broadcast

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	kit "sheetcast/internal/transport"
	logx "sheetcast/pkg/logx"
)

// Send delivers text to each recipient in order, at most one send per delay.
// The first failure stops the loop and is returned as *SendError. The count
// of completed sends is always returned.
func Send(ctx context.Context, sender kit.Sender, recipients []Recipient, text string, delay time.Duration) (int, error) {
	return send(ctx, sender, recipients, text, delay, logx.Nop())
}

func send(ctx context.Context, sender kit.Sender, recipients []Recipient, text string, delay time.Duration, log logx.Logger) (int, error) {
	if sender == nil {
		return 0, errors.New("sender required")
	}
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	lim := rate.NewLimiter(limit, 1)

	for i, r := range recipients {
		if err := lim.Wait(ctx); err != nil {
			return i, err
		}
		ref, err := sender.SendText(ctx, kit.ChatTarget{ChatID: r.ChatID}, text, nil)
		if err != nil {
			return i, &SendError{ChatID: r.ChatID, Sent: i, Err: err}
		}
		log.Debug("message sent", logx.Int64("chat_id", r.ChatID), logx.Int("row", r.Row), logx.Int("message_id", ref.MessageID))
	}
	return len(recipients), nil
}
