package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	logx "sheetcast/pkg/logx"
)

// Config controls the scheduler service.
type Config struct {
	Timezone string // IANA TZ, e.g. "Asia/Kolkata"
}

// Job is the unit of work run when a one-shot fires.
type Job func(ctx context.Context) error

type onceDef struct {
	name    string
	at      time.Time
	timeout time.Duration
	job     Job
	entryID cron.EntryID
	ver     uint64
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location

	c    *cron.Cron
	base context.Context

	defs map[string]*onceDef
	ver  uint64
}

// onceSchedule is a cron.Schedule that activates exactly once.
type onceSchedule struct {
	at time.Time
}

// Next returns the fire time while it is still ahead of t, and the zero
// time afterwards so cron never reactivates the entry.
func (o onceSchedule) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}
