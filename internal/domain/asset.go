// Package domain holds the value types exchanged between the engine's
// components: assets, quotes, orders, trade executions and positions.
package domain

// Asset identifies a tradable instrument as a (symbol, exchange) pair.
// It is comparable and used as a map key throughout the engine.
type Asset struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange,omitempty"`
}

// NewAsset creates an asset without an exchange qualifier.
func NewAsset(symbol string) Asset {
	return Asset{Symbol: symbol}
}

func (a Asset) String() string {
	if a.Exchange == "" {
		return a.Symbol
	}
	return a.Symbol + "@" + a.Exchange
}
