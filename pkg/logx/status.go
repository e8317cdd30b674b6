package logx

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

type StatusKind int

const (
	StatusInfo StatusKind = iota
	StatusWaiting
	StatusDone
	StatusFailed
)

var (
	statusMu  sync.Mutex
	statusOut io.Writer = color.Output
)

// SetStatusOutput redirects Status lines to w and returns the previous writer.
func SetStatusOutput(w io.Writer) io.Writer {
	statusMu.Lock()
	defer statusMu.Unlock()
	prev := statusOut
	statusOut = w
	return prev
}

// Status prints one human-readable status line to stdout.
func Status(kind StatusKind, format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	switch kind {
	case StatusWaiting:
		line = color.YellowString("%s", line)
	case StatusDone:
		line = color.GreenString("%s", line)
	case StatusFailed:
		line = color.RedString("%s", line)
	default:
		line = color.CyanString("%s", line)
	}
	statusMu.Lock()
	defer statusMu.Unlock()
	fmt.Fprintln(statusOut, line)
}
