package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	logx "sheetcast/pkg/logx"
)

func TestParseSendAt(t *testing.T) {
	t.Parallel()
	got, err := ParseSendAt("2026-01-01 15:16", "Asia/Kolkata")
	if err != nil {
		t.Fatalf("ParseSendAt: %v", err)
	}
	want := time.Date(2026, 1, 1, 9, 46, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got.UTC(), want)
	}
	if got.Location().String() != "Asia/Kolkata" {
		t.Fatalf("location = %s", got.Location())
	}
}

func TestParseSendAtErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		tz   string
	}{
		{name: "empty", raw: " ", tz: "UTC"},
		{name: "seconds", raw: "2026-01-01 15:16:00", tz: "UTC"},
		{name: "slashes", raw: "2026/01/01 15:16", tz: "UTC"},
		{name: "unknown zone", raw: "2026-01-01 15:16", tz: "Mars/Olympus"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseSendAt(tt.raw, tt.tz); err == nil {
				t.Fatalf("expected error for %q in %q", tt.raw, tt.tz)
			}
		})
	}
}

func TestValidateFireTime(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	if err := ValidateFireTime(now.Add(time.Minute), now); err != nil {
		t.Fatalf("future time rejected: %v", err)
	}
	if err := ValidateFireTime(now, now); !errors.Is(err, ErrFireTimeInPast) {
		t.Fatalf("now should be rejected, got %v", err)
	}
	if err := ValidateFireTime(now.Add(-time.Hour), now); !errors.Is(err, ErrFireTimeInPast) {
		t.Fatalf("past should be rejected, got %v", err)
	}
	if err := ValidateFireTime(time.Time{}, now); err == nil {
		t.Fatal("zero time should be rejected")
	}
}

func TestOnceScheduleNext(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 1, 1, 9, 46, 0, 0, time.UTC)
	s := onceSchedule{at: at}
	if got := s.Next(at.Add(-time.Second)); !got.Equal(at) {
		t.Fatalf("before: got %s", got)
	}
	if got := s.Next(at); !got.IsZero() {
		t.Fatalf("at: got %s, want zero", got)
	}
	if got := s.Next(at.Add(time.Hour)); !got.IsZero() {
		t.Fatalf("after: got %s, want zero", got)
	}
}

func startService(t *testing.T) *Service {
	t.Helper()
	s := New(Config{Timezone: "UTC"}, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func TestAddOnceFires(t *testing.T) {
	t.Parallel()
	s := startService(t)
	fired := make(chan struct{})
	at := time.Now().Add(50 * time.Millisecond)
	if _, err := s.AddOnce("job", at, 0, func(ctx context.Context) error {
		close(fired)
		return nil
	}); err != nil {
		t.Fatalf("AddOnce: %v", err)
	}
	if next, ok := s.Next("job"); !ok || !next.Equal(at) {
		t.Fatalf("Next = %s, %v", next, ok)
	}
	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not fire")
	}
	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := s.Next("job"); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("fired job still pending")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRemoveCancelsPendingJob(t *testing.T) {
	t.Parallel()
	s := startService(t)
	var runs atomic.Int32
	if _, err := s.AddOnce("job", time.Now().Add(100*time.Millisecond), 0, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("AddOnce: %v", err)
	}
	if !s.Remove("job") {
		t.Fatal("Remove should report a pending job")
	}
	if s.Remove("job") {
		t.Fatal("second Remove should be a no-op")
	}
	time.Sleep(300 * time.Millisecond)
	if runs.Load() != 0 {
		t.Fatalf("removed job ran %d times", runs.Load())
	}
}

func TestAddOnceReplacesByName(t *testing.T) {
	t.Parallel()
	s := startService(t)
	var first, second atomic.Int32
	done := make(chan struct{})
	at := time.Now().Add(80 * time.Millisecond)
	_, _ = s.AddOnce("job", at, 0, func(ctx context.Context) error {
		first.Add(1)
		return nil
	})
	_, err := s.AddOnce("job", at.Add(20*time.Millisecond), 0, func(ctx context.Context) error {
		second.Add(1)
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("AddOnce: %v", err)
	}
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("replacement did not fire")
	}
	time.Sleep(50 * time.Millisecond)
	if first.Load() != 0 || second.Load() != 1 {
		t.Fatalf("first=%d second=%d", first.Load(), second.Load())
	}
}

func TestAddOnceBeforeStart(t *testing.T) {
	t.Parallel()
	s := New(Config{Timezone: "Asia/Kolkata"}, logx.Nop())
	fired := make(chan struct{})
	if _, err := s.AddOnce("job", time.Now().Add(50*time.Millisecond), 0, func(ctx context.Context) error {
		close(fired)
		return nil
	}); err != nil {
		t.Fatalf("AddOnce: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())
	if s.Location().String() != "Asia/Kolkata" {
		t.Fatalf("location = %s", s.Location())
	}
	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job registered before Start did not fire")
	}
}

func TestAddOnceRejectsPastAndInvalid(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())
	noop := func(ctx context.Context) error { return nil }
	if _, err := s.AddOnce("job", time.Now().Add(-time.Second), 0, noop); !errors.Is(err, ErrFireTimeInPast) {
		t.Fatalf("expected ErrFireTimeInPast, got %v", err)
	}
	if _, err := s.AddOnce(" ", time.Now().Add(time.Hour), 0, noop); err == nil {
		t.Fatal("blank name should be rejected")
	}
	if _, err := s.AddOnce("job", time.Now().Add(time.Hour), 0, nil); err == nil {
		t.Fatal("nil job should be rejected")
	}
}

func TestJobTimeoutAndPanic(t *testing.T) {
	t.Parallel()
	s := startService(t)
	gotDeadline := make(chan bool, 1)
	_, _ = s.AddOnce("timed", time.Now().Add(30*time.Millisecond), time.Minute, func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		gotDeadline <- ok
		return nil
	})
	select {
	case ok := <-gotDeadline:
		if !ok {
			t.Fatal("job context should carry the timeout")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed job did not fire")
	}

	after := make(chan struct{})
	_, _ = s.AddOnce("panicky", time.Now().Add(30*time.Millisecond), 0, func(ctx context.Context) error {
		panic("boom")
	})
	_, _ = s.AddOnce("after", time.Now().Add(80*time.Millisecond), 0, func(ctx context.Context) error {
		close(after)
		return nil
	})
	select {
	case <-after:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduler stopped firing after a panic")
	}
}
