package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// TwoDigitYearPivot moves two-digit years that land more than this many years
// in the future back a century.
var TwoDigitYearPivot = 20

// Excel serials below this are more likely years or counts than dates.
const (
	minExcelSerial = 20000
	maxExcelSerial = 2958465
)

var (
	yearFirstDates = []string{
		"2006-1-2", "2006/1/2", "2006.1.2",
	}
	dayFirstDates = []string{
		"2/1/2006", "2-1-2006", "2.1.2006",
	}
	monthFirstDates = []string{
		"1/2/2006", "1-2-2006", "1.2.2006",
	}
	dayFirstShortYear = []string{
		"2/1/06", "2-1-06", "2.1.06",
	}
	monthFirstShortYear = []string{
		"1/2/06", "1-2-06", "1.2.06",
	}
	textualDates = []string{
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "2 January 2006", "02-Jan-2006", "2-Jan-06",
	}
	timeSuffixes = []string{
		" 15:04:05", " 15:04", "T15:04:05", "T15:04", " 3:04:05 PM", " 3:04 PM", "",
	}
	fullLayouts = []string{
		time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999999", "20060102",
	}
)

// Date parses a date-like cell and renders it with DateLayout. Anything that
// does not parse becomes "".
func Date(value string, dayFirst bool) string {
	t, ok := ParseDate(value, dayFirst)
	if !ok {
		return ""
	}
	return t.Format(DateLayout)
}

// ParseDate tries every known layout, then Excel serial day numbers.
func ParseDate(value string, dayFirst bool) (time.Time, bool) {
	s := strings.Join(strings.Fields(value), " ")
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range fullLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	ambiguous, short := monthFirstDates, monthFirstShortYear
	if dayFirst {
		ambiguous, short = dayFirstDates, dayFirstShortYear
	}

	for _, group := range [][]string{yearFirstDates, ambiguous, textualDates} {
		if t, ok := parseWithSuffixes(group, s); ok {
			return t, true
		}
	}

	if t, ok := parseWithSuffixes(short, s); ok {
		pivot := time.Now().Year() + TwoDigitYearPivot
		if t.Year() > pivot {
			t = t.AddDate(-100, 0, 0)
		}
		return t, true
	}

	return excelSerial(s)
}

func parseWithSuffixes(dates []string, s string) (time.Time, bool) {
	for _, d := range dates {
		for _, suffix := range timeSuffixes {
			if t, err := time.Parse(d+suffix, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func excelSerial(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < minExcelSerial || f > maxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	return t.Round(time.Second), true
}
