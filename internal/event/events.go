// Package event defines the closed set of event kinds flowing through the
// engine and the synchronous in-process dispatcher connecting its
// components.
package event

// Kind identifies the variant of an event.
type Kind uint16

const (
	KindQuote Kind = iota + 1
	KindOrder
	KindBasketOrder
	KindCancelOrder
	KindTradeExecution
	KindSubscribeMarketData
)

func (k Kind) String() string {
	switch k {
	case KindQuote:
		return "quote"
	case KindOrder:
		return "order"
	case KindBasketOrder:
		return "basket_order"
	case KindCancelOrder:
		return "cancel_order"
	case KindTradeExecution:
		return "trade_execution"
	case KindSubscribeMarketData:
		return "subscribe_market_data"
	default:
		return "unknown"
	}
}

// Event is implemented by every type that can be published on the
// dispatcher. Consumers switch on the concrete type; EventKind exists so
// the dispatcher can route without reflection.
type Event interface {
	EventKind() Kind
}
