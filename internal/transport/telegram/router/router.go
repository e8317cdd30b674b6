package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	kit "sheetcast/internal/transport"
	logx "sheetcast/pkg/logx"
)

type Command struct {
	// Name is the command word without the leading slash, e.g. "start".
	Name        string
	Description string
	Timeout     time.Duration // optional per-command override
	Handle      HandlerFunc
}

type Request struct {
	Update  kit.Update
	Message *kit.Message
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Args    []string
	ReqID   string

	Sender kit.Sender
	Logger logx.Logger
}

// Reply sends text back to the chat the request came from.
func (r *Request) Reply(ctx context.Context, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if r.Sender == nil {
		return kit.MessageRef{}, errors.New("router: no sender")
	}
	return r.Sender.SendText(ctx, r.Chat, text, opt)
}

// Router dispatches slash commands from an update stream to registered
// handlers, one update at a time. Unknown commands and plain text are ignored.
type Router struct {
	log            logx.Logger
	sender         kit.Sender
	defaultTimeout time.Duration

	mu   sync.RWMutex
	cmds map[string]Command
}

func New(log logx.Logger, sender kit.Sender, defaultTimeout time.Duration) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		log:            log.With(logx.String("comp", "telegram.router")),
		sender:         sender,
		defaultTimeout: defaultTimeout,
		cmds:           map[string]Command{},
	}
}

func (r *Router) Register(cmds ...Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cmds {
		name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Name), "/"))
		if name == "" {
			return errors.New("router: command name required")
		}
		if c.Handle == nil {
			return fmt.Errorf("router: command %q has no handler", name)
		}
		if _, dup := r.cmds[name]; dup {
			return fmt.Errorf("router: command %q registered twice", name)
		}
		c.Name = name
		r.cmds[name] = c
	}
	return nil
}

// Commands returns the registered commands sorted by name, for the bot menu.
func (r *Router) Commands() []kit.BotCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]kit.BotCommand, 0, len(r.cmds))
	for _, c := range r.cmds {
		out = append(out, kit.BotCommand{Command: c.Name, Description: c.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	return out
}

// DispatchLoop routes updates until ctx is done or the channel is closed.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	r.log.Info("command dispatcher started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info("command dispatcher stopped", logx.Err(ctx.Err()))
			return nil
		case up, ok := <-updates:
			if !ok {
				r.log.Info("command dispatcher stopped (updates channel closed)")
				return nil
			}
			r.Dispatch(ctx, up)
		}
	}
}

// Dispatch routes a single update and reports whether a handler ran.
func (r *Router) Dispatch(ctx context.Context, up kit.Update) bool {
	if up.Kind != kit.UpdateMessage || up.Message == nil {
		return false
	}
	msg := up.Message
	word, args, ok := parseCommand(msg.Text)
	if !ok {
		return false
	}

	r.mu.RLock()
	cmd, found := r.cmds[word]
	r.mu.RUnlock()
	if !found {
		r.log.Debug("unknown command ignored", logx.String("cmd", word), logx.Int64("chat_id", msg.ChatID))
		return false
	}

	rid := uuid.NewString()
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	req := &Request{
		Update:  up,
		Message: msg,
		Chat:    chat,
		FromID:  msg.FromID,
		Command: cmd.Name,
		Args:    args,
		ReqID:   rid,
		Sender:  r.sender,
		Logger: r.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Name),
		),
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	final := Chain(
		cmd.Handle,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWTimeout(timeout),
	)
	_ = final(ctx, req)
	return true
}

// parseCommand splits "/name@bot arg1 arg2" into ("name", [arg1 arg2]).
func parseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	parts := strings.Fields(text)
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	if word == "" {
		return "", nil, false
	}
	return strings.ToLower(word), parts[1:], true
}
