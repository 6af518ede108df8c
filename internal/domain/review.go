package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// IssueCode identifies a semantic problem with a parsed order.
type IssueCode string

const (
	IssueLimitPriceRequired IssueCode = "LIMIT_PRICE_REQUIRED"
	IssueStopPriceRequired  IssueCode = "STOP_PRICE_REQUIRED"
	IssueInvalidPrice       IssueCode = "INVALID_PRICE"
	IssueAmbiguousSize      IssueCode = "AMBIGUOUS_SIZE"
	IssueSizeDefaulted      IssueCode = "SIZE_DEFAULTED"
)

// Severity decides whether an issue blocks submission.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Issue is one finding of Review.
type Issue struct {
	Code     IssueCode
	Severity Severity
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Code, i.Message)
}

// Review checks what the command interpreter intentionally leaves alone:
// prices required by the order type, price signs, and how the order is sized.
// The descriptor is not modified.
func Review(d OrderDescriptor) []Issue {
	var issues []Issue

	needsLimit := d.Type == OrderTypeLimit || d.Type == OrderTypeStopLimit
	needsStop := d.Type == OrderTypeStop || d.Type == OrderTypeStopLimit

	if needsLimit && !d.LimitPrice.Valid {
		issues = append(issues, Issue{
			Code:     IssueLimitPriceRequired,
			Severity: SeverityError,
			Message:  fmt.Sprintf("%s order needs a limit price", d.Type),
		})
	}
	if needsStop && !d.StopPrice.Valid {
		issues = append(issues, Issue{
			Code:     IssueStopPriceRequired,
			Severity: SeverityError,
			Message:  fmt.Sprintf("%s order needs a stop price", d.Type),
		})
	}

	for _, p := range []struct {
		name string
		v    decimal.NullDecimal
	}{{"limit", d.LimitPrice}, {"stop", d.StopPrice}} {
		if p.v.Valid && !p.v.Decimal.IsPositive() {
			issues = append(issues, Issue{
				Code:     IssueInvalidPrice,
				Severity: SeverityError,
				Message:  fmt.Sprintf("%s price must be positive, got %s", p.name, p.v.Decimal),
			})
		}
	}

	switch {
	case d.Quantity.Valid && d.Notional.Valid:
		issues = append(issues, Issue{
			Code:     IssueAmbiguousSize,
			Severity: SeverityWarning,
			Message:  "both qty and $ amount given, qty is used",
		})
	case !d.Quantity.Valid && !d.Notional.Valid:
		issues = append(issues, Issue{
			Code:     IssueSizeDefaulted,
			Severity: SeverityWarning,
			Message:  "no size given, default order size is used",
		})
	}

	return issues
}

// Blocking reports whether any issue prevents submission.
func Blocking(issues []Issue) bool {
	for _, is := range issues {
		if is.Severity == SeverityError {
			return true
		}
	}
	return false
}
