package router

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	kit "sheetcast/internal/transport"
	logx "sheetcast/pkg/logx"
)

type recordingSender struct {
	mu    sync.Mutex
	texts []string
}

func (s *recordingSender) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(s.texts)}, nil
}

func msgUpdate(text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: 42, FromID: 7, Text: text}}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		word string
		args []string
		ok   bool
	}{
		{in: "/start", word: "start", args: []string{}, ok: true},
		{in: "  /Start@sheetcast_bot payload ", word: "start", args: []string{"payload"}, ok: true},
		{in: "start", ok: false},
		{in: "/", ok: false},
		{in: "/@bot", ok: false},
		{in: "", ok: false},
	}
	for _, tt := range tests {
		word, args, ok := parseCommand(tt.in)
		if ok != tt.ok {
			t.Fatalf("parseCommand(%q) ok=%v, want %v", tt.in, ok, tt.ok)
		}
		if !ok {
			continue
		}
		if word != tt.word || !reflect.DeepEqual(args, tt.args) {
			t.Fatalf("parseCommand(%q) = %q %q", tt.in, word, args)
		}
	}
}

func TestDispatch(t *testing.T) {
	t.Parallel()
	sender := &recordingSender{}
	r := New(logx.Nop(), sender, time.Second)

	var got *Request
	if err := r.Register(Command{Name: "/start", Description: "Show your chat id", Handle: func(ctx context.Context, req *Request) error {
		got = req
		if _, ok := ctx.Deadline(); !ok {
			t.Error("handler context should carry the default timeout")
		}
		_, err := req.Reply(ctx, "hi", nil)
		return err
	}}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if !r.Dispatch(context.Background(), msgUpdate("/start@sheetcast_bot")) {
		t.Fatal("expected /start to be handled")
	}
	if got == nil || got.Command != "start" || got.Chat.ChatID != 42 || got.FromID != 7 || got.ReqID == "" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if len(sender.texts) != 1 || sender.texts[0] != "hi" {
		t.Fatalf("replies = %q", sender.texts)
	}

	for _, text := range []string{"hello", "/help", ""} {
		if r.Dispatch(context.Background(), msgUpdate(text)) {
			t.Fatalf("%q should be ignored", text)
		}
	}
	if r.Dispatch(context.Background(), kit.Update{Kind: kit.UpdateMessage}) {
		t.Fatal("update without message should be ignored")
	}
	if len(sender.texts) != 1 {
		t.Fatalf("ignored updates must not reply, got %q", sender.texts)
	}
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()
	r := New(logx.Nop(), nil, 0)
	noop := func(context.Context, *Request) error { return nil }
	if err := r.Register(Command{Name: " ", Handle: noop}); err == nil {
		t.Fatal("blank name should be rejected")
	}
	if err := r.Register(Command{Name: "start"}); err == nil {
		t.Fatal("missing handler should be rejected")
	}
	if err := r.Register(Command{Name: "start", Handle: noop}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(Command{Name: "START", Handle: noop}); err == nil {
		t.Fatal("duplicate should be rejected")
	}
	want := []kit.BotCommand{{Command: "start"}}
	if got := r.Commands(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Commands() = %+v", got)
	}
}

func TestPanicRecovered(t *testing.T) {
	t.Parallel()
	h := Chain(func(context.Context, *Request) error { panic("boom") }, MWPanicRecover(logx.Nop()), MWRequestLog(logx.Nop()))
	if err := h(context.Background(), &Request{}); err == nil {
		t.Fatal("panic should become an error")
	}
}

func TestChainOrder(t *testing.T) {
	t.Parallel()
	var order []string
	mw := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *Request) error {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}
	sentinel := errors.New("done")
	h := Chain(func(context.Context, *Request) error { return sentinel }, mw("a"), mw("b"))
	if err := h(context.Background(), &Request{}); !errors.Is(err, sentinel) {
		t.Fatalf("err = %v", err)
	}
	if !reflect.DeepEqual(order, []string{"a", "b"}) {
		t.Fatalf("order = %v", order)
	}
}

func TestDispatchLoopStopsOnClose(t *testing.T) {
	t.Parallel()
	r := New(logx.Nop(), &recordingSender{}, 0)
	handled := make(chan struct{}, 1)
	_ = r.Register(Command{Name: "start", Handle: func(context.Context, *Request) error {
		handled <- struct{}{}
		return nil
	}})
	updates := make(chan kit.Update, 2)
	updates <- msgUpdate("/start")
	close(updates)
	if err := r.DispatchLoop(context.Background(), updates); err != nil {
		t.Fatalf("DispatchLoop: %v", err)
	}
	select {
	case <-handled:
	default:
		t.Fatal("update was not handled")
	}
}
