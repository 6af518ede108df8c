package command

import (
	"errors"
	"reflect"
	"testing"

	"chat_trader/internal/domain"

	"github.com/shopspring/decimal"
)

func some(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func descriptor(side domain.Side, symbol string, opts ...func(*domain.OrderDescriptor)) domain.OrderDescriptor {
	d := domain.NewOrderDescriptor(side, symbol)
	for _, o := range opts {
		o(&d)
	}
	return d
}

func withQty(s string) func(*domain.OrderDescriptor) {
	return func(d *domain.OrderDescriptor) { d.Quantity = some(s) }
}

func withNotional(s string) func(*domain.OrderDescriptor) {
	return func(d *domain.OrderDescriptor) { d.Notional = some(s) }
}

func withType(t domain.OrderType) func(*domain.OrderDescriptor) {
	return func(d *domain.OrderDescriptor) { d.Type = t }
}

func withLimit(s string) func(*domain.OrderDescriptor) {
	return func(d *domain.OrderDescriptor) { d.LimitPrice = some(s) }
}

func withStop(s string) func(*domain.OrderDescriptor) {
	return func(d *domain.OrderDescriptor) { d.StopPrice = some(s) }
}

func withTIF(tif domain.TimeInForce) func(*domain.OrderDescriptor) {
	return func(d *domain.OrderDescriptor) { d.TimeInForce = tif }
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want domain.OrderDescriptor
	}{
		{
			name: "bare buy",
			in:   "/buy AAPL",
			want: descriptor(domain.SideBuy, "AAPL"),
		},
		{
			name: "limit gtc",
			in:   "/sell msft qty 10 limit 450.5 tif gtc",
			want: descriptor(domain.SideSell, "MSFT", withQty("10"),
				withType(domain.OrderTypeLimit), withLimit("450.5"), withTIF(domain.TimeInForceGTC)),
		},
		{
			name: "stop",
			in:   "/buy TSLA stop 300",
			want: descriptor(domain.SideBuy, "TSLA", withType(domain.OrderTypeStop), withStop("300")),
		},
		{
			name: "notional stoplimit",
			in:   "/buy NVDA $1000 stoplimit 850 840",
			want: descriptor(domain.SideBuy, "NVDA", withNotional("1000"),
				withType(domain.OrderTypeStopLimit), withStop("850"), withLimit("840")),
		},
		{
			name: "bare number before mkt",
			in:   "/buy SHOP 12 mkt",
			want: descriptor(domain.SideBuy, "SHOP", withQty("12")),
		},
		{
			name: "verb without slash",
			in:   "sell ibm 5",
			want: descriptor(domain.SideSell, "IBM", withQty("5")),
		},
		{
			name: "repeated slashes",
			in:   "//buy ibm",
			want: descriptor(domain.SideBuy, "IBM"),
		},
		{
			name: "dotted symbol kept",
			in:   "/buy brk.b qty 1",
			want: descriptor(domain.SideBuy, "BRK.B", withQty("1")),
		},
		{
			name: "separate dollar marker",
			in:   "/buy AMD $ 2,500",
			want: descriptor(domain.SideBuy, "AMD", withNotional("2500")),
		},
		{
			name: "thousands separators",
			in:   "/buy AMZN qty 1,200 limit 1,234.50",
			want: descriptor(domain.SideBuy, "AMZN", withQty("1200"),
				withType(domain.OrderTypeLimit), withLimit("1234.5")),
		},
		{
			name: "stop_limit alias and time_in_force alias",
			in:   "/sell QQQ STOP_LIMIT 400 399 TIME_IN_FORCE GTC",
			want: descriptor(domain.SideSell, "QQQ", withType(domain.OrderTypeStopLimit),
				withStop("400"), withLimit("399"), withTIF(domain.TimeInForceGTC)),
		},
		{
			name: "market alias resets type",
			in:   "/buy SPY limit 500 market",
			want: descriptor(domain.SideBuy, "SPY", withLimit("500")),
		},
		{
			name: "unknown tif value leaves default",
			in:   "/buy SPY tif ioc",
			want: descriptor(domain.SideBuy, "SPY"),
		},
		{
			name: "tif day after gtc",
			in:   "/buy SPY tif gtc tif day",
			want: descriptor(domain.SideBuy, "SPY"),
		},
		{
			name: "malformed limit price stays unset",
			in:   "/buy SPY limit abc",
			want: descriptor(domain.SideBuy, "SPY", withType(domain.OrderTypeLimit)),
		},
		{
			name: "stoplimit commits on arity alone",
			in:   "/buy SPY stoplimit foo bar",
			want: descriptor(domain.SideBuy, "SPY", withType(domain.OrderTypeStopLimit)),
		},
		{
			name: "stoplimit short falls through",
			in:   "/buy SPY stoplimit 10",
			want: descriptor(domain.SideBuy, "SPY", withQty("10")),
		},
		{
			name: "trailing limit keyword ignored",
			in:   "/buy SPY 3 limit",
			want: descriptor(domain.SideBuy, "SPY", withQty("3")),
		},
		{
			name: "unknown tokens ignored",
			in:   "/buy SPY please now qty 2",
			want: descriptor(domain.SideBuy, "SPY", withQty("2")),
		},
		{
			name: "zero and negative sizes ignored",
			in:   "/buy SPY qty 0 $-5 -3",
			want: descriptor(domain.SideBuy, "SPY"),
		},
		{
			name: "exponent not a number",
			in:   "/buy SPY 1e3",
			want: descriptor(domain.SideBuy, "SPY"),
		},
		{
			name: "dollar word ignored",
			in:   "/buy SPY $abc",
			want: descriptor(domain.SideBuy, "SPY"),
		},
		{
			name: "qty and notional both kept",
			in:   "/buy SPY qty 5 $500",
			want: descriptor(domain.SideBuy, "SPY", withQty("5"), withNotional("500")),
		},
		{
			name: "explicit qty after bare number overrides",
			in:   "/buy SPY 5 qty 7",
			want: descriptor(domain.SideBuy, "SPY", withQty("7")),
		},
		{
			name: "tabs and newlines",
			in:   "\t/buy\n aapl   qty\t3 ",
			want: descriptor(domain.SideBuy, "AAPL", withQty("3")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Parse(%q)\n got  %s\n want %s", tt.in, got.CommandString(), tt.want.CommandString())
			}
		})
	}
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		kind     Kind
		sentinel error
		token    string
	}{
		{"empty", "", KindEmptyCommand, ErrEmptyCommand, ""},
		{"whitespace", "  \t\n", KindEmptyCommand, ErrEmptyCommand, ""},
		{"unknown verb", "/foo AAPL", KindUnsupportedVerb, ErrUnsupportedVerb, "/foo"},
		{"slash only", "/ AAPL", KindUnsupportedVerb, ErrUnsupportedVerb, "/"},
		{"missing symbol", "/buy", KindMissingSymbol, ErrMissingSymbol, ""},
		{"punctuation symbol", "/sell .-.", KindInvalidSymbol, ErrInvalidSymbol, ".-."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want %v", tt.in, tt.kind)
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.sentinel)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error %T is not *ParseError", err)
			}
			if pe.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", pe.Kind, tt.kind)
			}
			if pe.Token != tt.token {
				t.Errorf("Token = %q, want %q", pe.Token, tt.token)
			}
			if pe.Input != tt.in {
				t.Errorf("Input = %q, want %q", pe.Input, tt.in)
			}
			if KindOf(err) != tt.kind {
				t.Errorf("KindOf = %s, want %s", KindOf(err), tt.kind)
			}
		})
	}
}

func TestParse_CaseInsensitive(t *testing.T) {
	upper, err := Parse("/BUY aapl QTY 4 LIMIT 10 TIF GTC")
	if err != nil {
		t.Fatal(err)
	}
	lower, err := Parse("/buy AAPL qty 4 limit 10 tif gtc")
	if err != nil {
		t.Fatal(err)
	}
	if !upper.Equal(lower) {
		t.Errorf("%s != %s", upper.CommandString(), lower.CommandString())
	}
	if upper.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", upper.Symbol)
	}
}

func TestParse_OnlyFirstBareNumberIsQuantity(t *testing.T) {
	inputs := []string{
		"/buy X 3 4 5",
		"/buy X foo 3 bar 9",
		"/buy X 3 limit 10 7",
	}
	for _, in := range inputs {
		d, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		if !d.Quantity.Valid || !d.Quantity.Decimal.Equal(decimal.NewFromInt(3)) {
			t.Errorf("Parse(%q) quantity = %v, want 3", in, d.Quantity)
		}
	}
}

func TestParse_NonPositiveSizeUsesUpTheClaim(t *testing.T) {
	inputs := []string{
		"/buy X 0 5",
		"/buy X -1 5",
		"/buy X 0 -2 3 4",
		"/buy X qty 0 7",
		"/buy X qty -3 7",
	}
	for _, in := range inputs {
		res, err := Scan(in)
		if err != nil {
			t.Fatalf("Scan(%q): %v", in, err)
		}
		if res.Order.Quantity.Valid {
			t.Errorf("Scan(%q) quantity = %s, want unset", in, res.Order.Quantity.Decimal)
		}
		last := res.Clauses[len(res.Clauses)-1]
		if last.Kind != ClauseIgnored {
			t.Errorf("Scan(%q) trailing number scanned as %v, want ignored", in, last.Kind)
		}
	}
}

func TestParse_QtyClauseBlocksBareNumber(t *testing.T) {
	d, err := Parse("/buy X qty 2 9")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Quantity.Decimal.Equal(decimal.NewFromInt(2)) {
		t.Errorf("quantity = %v, want 2", d.Quantity)
	}

	// A later explicit qty still overrides.
	d, err = Parse("/buy X 0 qty 4")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Quantity.Valid || !d.Quantity.Decimal.Equal(decimal.NewFromInt(4)) {
		t.Errorf("quantity = %v, want 4", d.Quantity)
	}
}

func TestParse_PricesKeepTheirSign(t *testing.T) {
	tests := []struct {
		input     string
		limit     string
		stop      string
		orderType domain.OrderType
	}{
		{"/buy X limit 0", "0", "", domain.OrderTypeLimit},
		{"/buy X stop -1", "", "-1", domain.OrderTypeStop},
		{"/sell X stoplimit -2 0", "0", "-2", domain.OrderTypeStopLimit},
		{"/buy X limit abc", "", "", domain.OrderTypeLimit},
	}
	for _, tt := range tests {
		d, err := Parse(tt.input)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.input, err)
		}
		if d.Type != tt.orderType {
			t.Errorf("Parse(%q) type = %v, want %v", tt.input, d.Type, tt.orderType)
		}
		checkNull(t, tt.input+" limit", d.LimitPrice, tt.limit)
		checkNull(t, tt.input+" stop", d.StopPrice, tt.stop)
	}
}

func checkNull(t *testing.T, what string, got decimal.NullDecimal, want string) {
	t.Helper()
	if want == "" {
		if got.Valid {
			t.Errorf("%s = %s, want unset", what, got.Decimal)
		}
		return
	}
	if !got.Valid || !got.Decimal.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s = %v, want %s", what, got, want)
	}
}

func TestScan_Clauses(t *testing.T) {
	res, err := Scan("/buy NVDA 5 $ 1000 hello stoplimit 850 840 world tif gtc")
	if err != nil {
		t.Fatal(err)
	}

	var kinds []ClauseKind
	for _, c := range res.Clauses {
		kinds = append(kinds, c.Kind)
	}
	wantKinds := []ClauseKind{
		ClauseBareQuantity, ClauseNotional, ClauseIgnored,
		ClauseStopLimit, ClauseIgnored, ClauseTimeInForce,
	}
	if !reflect.DeepEqual(kinds, wantKinds) {
		t.Errorf("clause kinds = %v, want %v", kinds, wantKinds)
	}

	if got := res.Ignored(); !reflect.DeepEqual(got, []string{"hello", "world"}) {
		t.Errorf("Ignored() = %v", got)
	}

	sl := res.Clauses[3]
	if !reflect.DeepEqual(sl.Tokens, []string{"stoplimit", "850", "840"}) {
		t.Errorf("stoplimit tokens = %v", sl.Tokens)
	}
	if !reflect.DeepEqual(sl.Operands, []string{"850", "840"}) {
		t.Errorf("stoplimit operands = %v", sl.Operands)
	}
	if n := res.Clauses[1]; len(n.Tokens) != 2 || n.Operands[0] != "1000" {
		t.Errorf("notional clause = %+v", n)
	}
}

func TestScan_TokensConsumedOnce(t *testing.T) {
	in := "/sell X qty 1 $5 $ 7 mkt limit 2 stop 3 stoplimit 4 5 tif day 6 junk"
	res, err := Scan(in)
	if err != nil {
		t.Fatal(err)
	}
	var n int
	for _, c := range res.Clauses {
		n += len(c.Tokens)
	}
	if n != 17 {
		t.Errorf("clauses consumed %d tokens, want 17", n)
	}
}

func TestClauseKind_String(t *testing.T) {
	if ClauseStopLimit.String() != "stoplimit" {
		t.Errorf("ClauseStopLimit = %q", ClauseStopLimit.String())
	}
	if ClauseKind(0).String() != "unknown" {
		t.Errorf("zero ClauseKind = %q", ClauseKind(0).String())
	}
}
