package nodeset

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/DaiZhouHui/vless-automation-go/internal/model"
)

var datePattern = regexp.MustCompile(`(20\d{2})[-_](\d{1,2})[-_](\d{1,2})`)

// FilterByAge drops nodes whose remark carries a date older than maxDays
// before now. Nodes without a recognizable date are kept.
func FilterByAge(nodes []model.Node, prefix string, maxDays int, now time.Time) ([]model.Node, int) {
	cutoff := now.AddDate(0, 0, -maxDays)
	kept := make([]model.Node, 0, len(nodes))
	dropped := 0
	for _, n := range nodes {
		d, ok := extractDate(n.Name, prefix, now)
		if ok && d.Before(cutoff) {
			dropped++
			continue
		}
		kept = append(kept, n)
	}
	return kept, dropped
}

// extractDate recovers the creation date from a remark. Generated remarks
// put MMDD right after the configured prefix; a month ahead of the current
// one is read as last year. Other remarks may carry a full yyyy-mm-dd (or
// yyyy_mm_dd) anywhere in the name.
func extractDate(name, prefix string, now time.Time) (time.Time, bool) {
	if prefix != "" && strings.HasPrefix(name, prefix) {
		rest := name[len(prefix):]
		if len(rest) >= 4 && isDigits(rest[:4]) && (len(rest) == 4 || rest[4] == '-') {
			month, _ := strconv.Atoi(rest[:2])
			day, _ := strconv.Atoi(rest[2:4])
			year := now.Year()
			if month > int(now.Month()) {
				year--
			}
			if d, ok := makeDate(year, month, day, now.Location()); ok {
				return d, true
			}
		}
	}

	if m := datePattern.FindStringSubmatch(name); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if d, ok := makeDate(year, month, day, now.Location()); ok {
			return d, true
		}
	}

	return time.Time{}, false
}

// makeDate rejects nonexistent dates (like Feb 31) instead of letting
// time.Date normalize them into the next month.
func makeDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if d.Year() != year || d.Month() != time.Month(month) || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
