package domain

import "testing"

func codes(issues []Issue) map[IssueCode]Severity {
	m := make(map[IssueCode]Severity, len(issues))
	for _, is := range issues {
		m[is.Code] = is.Severity
	}
	return m
}

func TestReview(t *testing.T) {
	tests := []struct {
		name     string
		d        OrderDescriptor
		want     []IssueCode
		blocking bool
	}{
		{
			name: "market with qty is clean",
			d: OrderDescriptor{Side: SideBuy, Symbol: "AAPL", Type: OrderTypeMarket,
				Quantity: some("1"), TimeInForce: TimeInForceDay},
			want: nil,
		},
		{
			name: "limit without price",
			d: OrderDescriptor{Side: SideBuy, Symbol: "AAPL", Type: OrderTypeLimit,
				Quantity: some("1"), TimeInForce: TimeInForceDay},
			want:     []IssueCode{IssueLimitPriceRequired},
			blocking: true,
		},
		{
			name: "stop limit without both prices",
			d: OrderDescriptor{Side: SideSell, Symbol: "AAPL", Type: OrderTypeStopLimit,
				Notional: some("100"), TimeInForce: TimeInForceDay},
			want:     []IssueCode{IssueLimitPriceRequired, IssueStopPriceRequired},
			blocking: true,
		},
		{
			name: "qty and notional",
			d: OrderDescriptor{Side: SideBuy, Symbol: "AAPL", Type: OrderTypeMarket,
				Quantity: some("1"), Notional: some("100"), TimeInForce: TimeInForceDay},
			want: []IssueCode{IssueAmbiguousSize},
		},
		{
			name: "zero limit price",
			d: OrderDescriptor{Side: SideBuy, Symbol: "AAPL", Type: OrderTypeLimit,
				Quantity: some("1"), LimitPrice: some("0"), TimeInForce: TimeInForceDay},
			want:     []IssueCode{IssueInvalidPrice},
			blocking: true,
		},
		{
			name: "negative stop price",
			d: OrderDescriptor{Side: SideSell, Symbol: "AAPL", Type: OrderTypeStop,
				Quantity: some("1"), StopPrice: some("-1"), TimeInForce: TimeInForceDay},
			want:     []IssueCode{IssueInvalidPrice},
			blocking: true,
		},
		{
			name: "no size",
			d:    NewOrderDescriptor(SideBuy, "AAPL"),
			want: []IssueCode{IssueSizeDefaulted},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := Review(tt.d)
			got := codes(issues)
			if len(got) != len(tt.want) {
				t.Fatalf("Review() = %v, want codes %v", issues, tt.want)
			}
			for _, c := range tt.want {
				if _, ok := got[c]; !ok {
					t.Errorf("missing issue %s in %v", c, issues)
				}
			}
			if Blocking(issues) != tt.blocking {
				t.Errorf("Blocking() = %v, want %v", Blocking(issues), tt.blocking)
			}
		})
	}
}
