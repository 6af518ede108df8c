// Package command turns chat trade commands such as
// "/buy AAPL qty 10 limit 187.5 tif gtc" into order descriptors.
//
// Parsing is fail-soft past the verb and symbol: unknown or malformed
// clauses are skipped and reported through Scan, never returned as errors.
package command

import (
	"strings"

	"chat_trader/internal/domain"
)

// Result is a parsed descriptor together with the clauses that built it.
type Result struct {
	Order   domain.OrderDescriptor
	Clauses []Clause
}

// Ignored returns the tokens no rule claimed, in input order.
func (r Result) Ignored() []string {
	var out []string
	for _, c := range r.Clauses {
		if c.Kind == ClauseIgnored {
			out = append(out, c.Tokens...)
		}
	}
	return out
}

// Parse interprets text as a buy or sell command.
func Parse(text string) (domain.OrderDescriptor, error) {
	res, err := Scan(text)
	return res.Order, err
}

// Scan is Parse that also reports which clause consumed each token.
func Scan(text string) (Result, error) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return Result{}, &ParseError{Kind: KindEmptyCommand, Input: text}
	}

	side, ok := verbSide(tokens[0])
	if !ok {
		return Result{}, &ParseError{Kind: KindUnsupportedVerb, Input: text, Token: tokens[0]}
	}
	if len(tokens) < 2 {
		return Result{}, &ParseError{Kind: KindMissingSymbol, Input: text}
	}

	symbol := strings.ToUpper(tokens[1])
	if stripSymbolPunct(symbol) == "" {
		return Result{}, &ParseError{Kind: KindInvalidSymbol, Input: text, Token: tokens[1]}
	}

	st := scan{order: domain.NewOrderDescriptor(side, symbol)}
	var clauses []Clause
	for i := 2; i < len(tokens); {
		c := next(tokens[i:], &st)
		c.apply(&st)
		clauses = append(clauses, c)
		i += len(c.Tokens)
	}
	return Result{Order: st.order, Clauses: clauses}, nil
}

func next(rest []string, s *scan) Clause {
	for _, m := range matchers {
		if c, ok := m(rest, s); ok {
			return c
		}
	}
	return Clause{Kind: ClauseIgnored, Tokens: rest[:1]}
}

func verbSide(tok string) (domain.Side, bool) {
	switch strings.ToLower(strings.TrimLeft(tok, "/")) {
	case "buy":
		return domain.SideBuy, true
	case "sell":
		return domain.SideSell, true
	}
	return "", false
}

func stripSymbolPunct(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '.' || r == '-' {
			return -1
		}
		return r
	}, s)
}
