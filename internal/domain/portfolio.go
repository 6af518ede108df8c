package domain

import "github.com/shopspring/decimal"

// Portfolio is the persisted state of a paper trading account.
type Portfolio struct {
	Cash       decimal.Decimal      `json:"cash"`
	Positions  map[string]*Position `json:"positions"`
	OpenOrders []Order              `json:"open_orders"`
}

// Clone returns a deep copy safe to hand to another goroutine.
func (p Portfolio) Clone() Portfolio {
	out := Portfolio{
		Cash:       p.Cash,
		Positions:  make(map[string]*Position, len(p.Positions)),
		OpenOrders: append([]Order(nil), p.OpenOrders...),
	}
	for sym, pos := range p.Positions {
		cp := *pos
		out.Positions[sym] = &cp
	}
	return out
}
