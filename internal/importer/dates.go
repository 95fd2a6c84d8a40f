package importer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"conto/internal/core"
)

// Layouts tried in order. Day-first comes before month-first, so an
// ambiguous "03/04/2024" is the 3rd of April; "04/25/2024" still parses
// because day-first fails on it.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"01/02/2006",
	"1/2/2006",
	"02.01.2006",
	"2.1.2006",
	"02-01-2006",
	"2006/01/02",
	"02/01/06",
	"02.01.06",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"02-Jan-06",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"20060102",
}

// ParseDate normalizes a statement date to YYYY-MM-DD. Excel serial day
// numbers are accepted too.
func ParseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", core.ErrInvalidDate
	}

	if t, ok := parseLayouts(s); ok {
		return t.Format(core.DateLayout), nil
	}
	if t, ok := parseExcelSerial(s); ok {
		return t.Format(core.DateLayout), nil
	}
	// "15/01/2024 10:32" and similar
	if i := strings.IndexByte(s, ' '); i > 0 {
		if t, ok := parseLayouts(s[:i]); ok {
			return t.Format(core.DateLayout), nil
		}
	}
	return "", fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
}

func parseLayouts(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Serials below 1 or beyond 9999-12-31 are not dates.
func parseExcelSerial(s string) (time.Time, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 1 || v > 2958465 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(v, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
