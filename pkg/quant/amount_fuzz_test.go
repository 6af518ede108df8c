package quant

import (
	"testing"
)

// FuzzParseAmount checks that arbitrary tokens never panic and that accepted
// values survive a String round trip.
func FuzzParseAmount(f *testing.F) {
	f.Add("0")
	f.Add("1,000")
	f.Add("450.5")
	f.Add("-.25")
	f.Add("1e9")
	f.Add("$12")
	f.Add(".0000000000000000000000000000000000000001")

	f.Fuzz(func(t *testing.T, s string) {
		d, err := ParseAmount(s)
		if err != nil {
			return
		}
		if len(d.String()) > MaxAmountLen {
			t.Fatalf("%q prints as %q, over the length cap", s, d.String())
		}
		again, err := ParseAmount(d.String())
		if err != nil {
			t.Fatalf("re-parse of %q (from %q) failed: %v", d.String(), s, err)
		}
		if !again.Equal(d) {
			t.Fatalf("round trip mismatch: %s != %s", again, d)
		}
	})
}
