package orders

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DayPrefix returns the date-scoped id prefix, e.g. "ND20250101".
func DayPrefix(prefix string, now time.Time) string {
	return prefix + now.Format("20060102")
}

// NextID derives the next order id from the last id issued today
// (empty string when none): prefix + YYYYMMDD + 4-digit sequence.
// The read-then-generate sequence is not serialized; the primary key
// on orders still rejects a same-day duplicate.
func NextID(prefix string, now time.Time, lastID string) string {
	day := DayPrefix(prefix, now)
	seq := 1
	if strings.HasPrefix(lastID, day) {
		if n, err := strconv.Atoi(lastID[len(day):]); err == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", day, seq)
}
