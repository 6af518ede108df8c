package domain

import "github.com/shopspring/decimal"

// Position represents a long holding in a paper account.
type Position struct {
	Symbol   string          `json:"symbol"`
	Qty      decimal.Decimal `json:"qty"`
	AvgPrice decimal.Decimal `json:"avg_price"` // Weighted Average Entry Price.
}

// IsOpen checks if anything is held.
func (p *Position) IsOpen() bool {
	return p.Qty.IsPositive()
}

// Notional is the cost basis of the holding.
func (p *Position) Notional() decimal.Decimal {
	if !p.IsOpen() {
		return decimal.Zero
	}
	return p.Qty.Mul(p.AvgPrice)
}

// Buy adds qty at price and re-weights the average entry.
func (p *Position) Buy(price, qty decimal.Decimal) {
	if !qty.IsPositive() || !price.IsPositive() {
		return
	}
	cost := p.AvgPrice.Mul(p.Qty).Add(price.Mul(qty))
	p.Qty = p.Qty.Add(qty)
	p.AvgPrice = cost.Div(p.Qty)
}

// Sell removes up to qty at price and returns the proceeds.
func (p *Position) Sell(price, qty decimal.Decimal) decimal.Decimal {
	if !qty.IsPositive() || !price.IsPositive() || !p.IsOpen() {
		return decimal.Zero
	}
	realQty := decimal.Min(qty, p.Qty)
	p.Qty = p.Qty.Sub(realQty)
	if p.Qty.IsZero() {
		p.AvgPrice = decimal.Zero
	}
	return price.Mul(realQty)
}
