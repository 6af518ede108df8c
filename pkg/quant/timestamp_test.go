package quant

import (
	"testing"
	"time"
)

func TestTimeStamp_RoundTrip(t *testing.T) {
	at := time.Date(2024, 1, 2, 15, 4, 5, 123456000, time.UTC)
	ts := FromTime(at)
	if !ts.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", ts.Time(), at)
	}
}

func TestParseTimeStamp(t *testing.T) {
	ts, err := ParseTimeStamp("1704067200")
	if err != nil {
		t.Fatal(err)
	}
	if ts != TimeStamp(1704067200*1000000) {
		t.Errorf("ParseTimeStamp = %d", ts)
	}
	if _, err := ParseTimeStamp("abc"); err == nil {
		t.Error("expected error for non-numeric input")
	}
}

// FuzzParseTimeStamp tests timestamp parsing with fuzzing.
func FuzzParseTimeStamp(f *testing.F) {
	f.Add("0")
	f.Add("1704067200")
	f.Add("-1")
	f.Add("9223372036854775807")

	f.Fuzz(func(t *testing.T, s string) {
		_, _ = ParseTimeStamp(s)
	})
}
