package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SendAtLayout is the wall-clock layout of a configured fire time.
const SendAtLayout = "2006-01-02 15:04"

var ErrFireTimeInPast = errors.New("fire time is not in the future")

// LoadLocation resolves an IANA zone name. Blank means the process local zone.
func LoadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", tz, err)
	}
	return loc, nil
}

// ParseSendAt interprets raw ("YYYY-MM-DD HH:MM") as wall time in tz.
// Wall times skipped or repeated by a DST transition resolve the way
// time.Date does.
func ParseSendAt(raw, tz string) (time.Time, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return time.Time{}, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("send_at is empty")
	}
	at, err := time.ParseInLocation(SendAtLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("send_at %q: expected %s: %w", raw, SendAtLayout, err)
	}
	return at, nil
}

// ValidateFireTime rejects a fire time that is not strictly after now.
func ValidateFireTime(at, now time.Time) error {
	if at.IsZero() {
		return errors.New("fire time required")
	}
	if !at.After(now) {
		return fmt.Errorf("%w: %s (now %s)", ErrFireTimeInPast, at.Format(time.RFC3339), now.In(at.Location()).Format(time.RFC3339))
	}
	return nil
}
