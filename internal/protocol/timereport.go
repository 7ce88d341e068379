package protocol

import (
	"regexp"
	"strconv"
	"time"
)

var timeReportRe = regexp.MustCompile(`(\d{2,}):(\d{2})/(\d{2,}):(\d{2})/-(\d{2,}):(\d{2})`)

// TimeReport is the payload of a 101 line.
type TimeReport struct {
	Elapsed   time.Duration
	Total     time.Duration
	Remaining time.Duration
}

// ParseTimeReport parses "MM:SS/MM:SS/-MM:SS".
func ParseTimeReport(message string) (TimeReport, bool) {
	m := timeReportRe.FindStringSubmatch(message)
	if m == nil {
		return TimeReport{}, false
	}
	return TimeReport{
		Elapsed:   clock(m[1], m[2]),
		Total:     clock(m[3], m[4]),
		Remaining: clock(m[5], m[6]),
	}, true
}

func clock(minutes, seconds string) time.Duration {
	mm, _ := strconv.Atoi(minutes)
	ss, _ := strconv.Atoi(seconds)
	return time.Duration(mm)*time.Minute + time.Duration(ss)*time.Second
}
