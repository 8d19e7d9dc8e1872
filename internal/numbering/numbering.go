// Package numbering generates human readable invoice numbers and allocates
// them safely under concurrent creation.
package numbering

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const seqWidth = 4

// NextSequential returns PREFIX-NNNN one above the highest sequence found in
// existing. When none of existing parses, maxID+1 is used instead.
func NextSequential(prefix string, existing []string, maxID int64) string {
	best, found := highest(prefix+"-", existing)
	if !found {
		return format(prefix+"-", maxID+1)
	}
	return format(prefix+"-", best+1)
}

// NextDaily returns PREFIX-YYYYMMDD-NNNN one above the highest number already
// issued for that calendar day.
func NextDaily(prefix string, day time.Time, existing []string) string {
	dayPrefix := DailyPrefix(prefix, day)
	best, _ := highest(dayPrefix, existing)
	return format(dayPrefix, best+1)
}

// DailyPrefix is the shared leading part of every number issued on day.
func DailyPrefix(prefix string, day time.Time) string {
	return prefix + "-" + day.Format("20060102") + "-"
}

func highest(prefix string, existing []string) (int64, bool) {
	var best int64
	found := false
	for _, number := range existing {
		rest, ok := strings.CutPrefix(strings.TrimSpace(number), prefix)
		if !ok || rest == "" {
			continue
		}
		n, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || n < 0 {
			continue
		}
		if !found || n > best {
			best = n
			found = true
		}
	}
	return best, found
}

func format(prefix string, n int64) string {
	if n < 1 {
		n = 1
	}
	return fmt.Sprintf("%s%0*d", prefix, seqWidth, n)
}
