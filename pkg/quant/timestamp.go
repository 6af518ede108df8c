package quant

import (
	"strconv"
	"time"
)

// TimeStamp represents Unix Microseconds.
type TimeStamp int64

// Now returns the current wall-clock time as a TimeStamp.
func Now() TimeStamp {
	return FromTime(time.Now())
}

// FromTime converts t to a TimeStamp.
func FromTime(t time.Time) TimeStamp {
	return TimeStamp(t.UnixMicro())
}

// Time converts the timestamp back to a UTC time.Time.
func (ts TimeStamp) Time() time.Time {
	return time.UnixMicro(int64(ts)).UTC()
}

// ParseTimeStamp converts a string of Unix seconds (as quote feeds report
// them) to TimeStamp.
func ParseTimeStamp(s string) (TimeStamp, error) {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return FromTime(time.Unix(sec, 0)), nil
}
