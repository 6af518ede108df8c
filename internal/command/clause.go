package command

import (
	"strings"

	"chat_trader/internal/domain"
	"chat_trader/pkg/quant"

	"github.com/shopspring/decimal"
)

// ClauseKind names the rule that claimed a run of tokens.
type ClauseKind uint8

const (
	ClauseQuantity ClauseKind = iota + 1
	ClauseNotional
	ClauseMarket
	ClauseLimit
	ClauseStop
	ClauseStopLimit
	ClauseTimeInForce
	ClauseBareQuantity
	ClauseIgnored
)

func (k ClauseKind) String() string {
	switch k {
	case ClauseQuantity:
		return "qty"
	case ClauseNotional:
		return "notional"
	case ClauseMarket:
		return "market"
	case ClauseLimit:
		return "limit"
	case ClauseStop:
		return "stop"
	case ClauseStopLimit:
		return "stoplimit"
	case ClauseTimeInForce:
		return "tif"
	case ClauseBareQuantity:
		return "bare_qty"
	case ClauseIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Clause is one run of tokens consumed by the scanner.
// Operands are the value tokens of the clause with any keyword removed.
type Clause struct {
	Kind     ClauseKind
	Tokens   []string
	Operands []string
}

// scan is the state of one clause scan over a command.
type scan struct {
	order domain.OrderDescriptor
	// sized is set once a qty clause or a bare number has claimed the
	// quantity, whether or not its operand was usable.
	sized bool
}

// matcher inspects the tokens at the cursor. rest is never empty.
type matcher func(rest []string, s *scan) (Clause, bool)

// matchers are tried in order; the first hit wins.
var matchers = [...]matcher{
	keyword(ClauseQuantity, 1, "qty"),
	matchNotional,
	keyword(ClauseMarket, 0, "mkt", "market"),
	keyword(ClauseLimit, 1, "limit"),
	keyword(ClauseStop, 1, "stop"),
	keyword(ClauseStopLimit, 2, "stoplimit", "stop_limit"),
	keyword(ClauseTimeInForce, 1, "tif", "time_in_force"),
	matchBareQuantity,
}

func keyword(kind ClauseKind, arity int, words ...string) matcher {
	return func(rest []string, _ *scan) (Clause, bool) {
		if len(rest) < 1+arity {
			return Clause{}, false
		}
		low := strings.ToLower(rest[0])
		for _, w := range words {
			if low == w {
				return Clause{
					Kind:     kind,
					Tokens:   rest[:1+arity],
					Operands: rest[1 : 1+arity],
				}, true
			}
		}
		return Clause{}, false
	}
}

func matchNotional(rest []string, _ *scan) (Clause, bool) {
	tok := rest[0]
	switch {
	case len(tok) > 1 && tok[0] == '$' && isDigit(tok[1]):
		return Clause{Kind: ClauseNotional, Tokens: rest[:1], Operands: []string{tok[1:]}}, true
	case tok == "$" && len(rest) >= 2:
		return Clause{Kind: ClauseNotional, Tokens: rest[:2], Operands: rest[1:2]}, true
	}
	return Clause{}, false
}

// matchBareQuantity claims the first number of any sign. A zero or negative
// size still uses up the claim; the field just stays unset.
func matchBareQuantity(rest []string, s *scan) (Clause, bool) {
	if s.sized {
		return Clause{}, false
	}
	if _, err := quant.ParseAmount(rest[0]); err != nil {
		return Clause{}, false
	}
	return Clause{Kind: ClauseBareQuantity, Tokens: rest[:1], Operands: rest[:1]}, true
}

// apply folds a clause into the scan. Unparseable operands leave the
// target field as it was. Sizes must be positive; prices only need to parse.
func (c Clause) apply(s *scan) {
	d := &s.order
	switch c.Kind {
	case ClauseQuantity, ClauseBareQuantity:
		s.sized = true
		setAmount(&d.Quantity, c.Operands[0])
	case ClauseNotional:
		setAmount(&d.Notional, c.Operands[0])
	case ClauseMarket:
		d.Type = domain.OrderTypeMarket
	case ClauseLimit:
		d.Type = domain.OrderTypeLimit
		setPrice(&d.LimitPrice, c.Operands[0])
	case ClauseStop:
		d.Type = domain.OrderTypeStop
		setPrice(&d.StopPrice, c.Operands[0])
	case ClauseStopLimit:
		d.Type = domain.OrderTypeStopLimit
		setPrice(&d.StopPrice, c.Operands[0])
		setPrice(&d.LimitPrice, c.Operands[1])
	case ClauseTimeInForce:
		switch strings.ToLower(c.Operands[0]) {
		case "day":
			d.TimeInForce = domain.TimeInForceDay
		case "gtc":
			d.TimeInForce = domain.TimeInForceGTC
		}
	}
}

func setAmount(dst *decimal.NullDecimal, tok string) {
	if v, ok := quant.ParsePositiveAmount(tok); ok {
		*dst = decimal.NewNullDecimal(v)
	}
}

func setPrice(dst *decimal.NullDecimal, tok string) {
	if v, err := quant.ParseAmount(tok); err == nil {
		*dst = decimal.NewNullDecimal(v)
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
