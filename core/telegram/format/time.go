package format

import "time"

// TimeLayout is how timestamps are shown to users.
const TimeLayout = "2006-01-02 15:04 MST"

// Time renders t in loc; a nil loc means UTC.
func Time(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(TimeLayout)
}
