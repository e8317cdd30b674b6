// Package broadcast sends one message to every active recipient of a
// spreadsheet at a scheduled instant.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sheetcast/internal/sheets"
	kit "sheetcast/internal/transport"
	logx "sheetcast/pkg/logx"
)

const (
	// StatusColumn and ChatIDColumn are the header names read from each row.
	StatusColumn = "status"
	ChatIDColumn = "chat_id"
	// StatusActive is the only status value that receives the message.
	StatusActive = "ACTIVE"
)

var (
	ErrInvalidRecord = errors.New("invalid record")
	ErrNotWaiting    = errors.New("job is not waiting")
)

// RecordFetcher returns every data row of the recipient sheet.
type RecordFetcher interface {
	FetchRecords(ctx context.Context) ([]sheets.Record, error)
}

// Scheduler registers and cancels named one-shot jobs.
type Scheduler interface {
	AddOnce(name string, at time.Time, timeout time.Duration, job func(ctx context.Context) error) (string, error)
	Remove(name string) bool
}

type State int

const (
	StateConfigured State = iota
	StateWaiting
	StateFiring
	StateDone
)

func (s State) String() string {
	switch s {
	case StateConfigured:
		return "CONFIGURED"
	case StateWaiting:
		return "WAITING"
	case StateFiring:
		return "FIRING"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Recipient struct {
	ChatID int64
	// Row is the sheet row the recipient came from.
	Row int
}

type JobConfig struct {
	Name   string
	FireAt time.Time
	Text   string
	// Delay between consecutive sends; zero or negative disables pacing.
	Delay time.Duration
	// Timeout bounds the whole run once fired; zero means none.
	Timeout time.Duration
}

type Deps struct {
	Sender    kit.Sender
	Fetcher   RecordFetcher
	Scheduler Scheduler
	Log       logx.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Result summarizes a finished run.
type Result struct {
	RunID      string
	Records    int
	Recipients int
	Sent       int
	StartedAt  time.Time
	FinishedAt time.Time
}

// SendError reports the send that ended a run early.
type SendError struct {
	ChatID int64
	// Sent is the number of messages delivered before the failure.
	Sent int
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to chat %d failed after %d sent: %v", e.ChatID, e.Sent, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
