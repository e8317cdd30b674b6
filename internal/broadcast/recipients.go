package broadcast

import (
	"fmt"
	"strconv"
	"strings"

	"sheetcast/internal/sheets"
)

// ActiveRecipients keeps records whose status is exactly ACTIVE, in row
// order, and parses their chat ids. Inactive rows are never parsed.
func ActiveRecipients(records []sheets.Record) ([]Recipient, error) {
	out := make([]Recipient, 0, len(records))
	for _, r := range records {
		if r.Get(StatusColumn) != StatusActive {
			continue
		}
		raw := strings.TrimSpace(r.Get(ChatIDColumn))
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %s %q is not an integer", ErrInvalidRecord, r.Row, ChatIDColumn, raw)
		}
		out = append(out, Recipient{ChatID: id, Row: r.Row})
	}
	return out, nil
}
