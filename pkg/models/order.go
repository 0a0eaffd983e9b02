package models

import (
	"time"
)

type Instrument string

const (
	InstrumentOption     Instrument = "OPTION"
	InstrumentUnderlying Instrument = "UNDERLYING"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

func SideFor(quantity int) OrderSide {
	if quantity < 0 {
		return OrderSideSell
	}
	return OrderSideBuy
}

// TradeRecord is one executed leg. Quantity is unsigned; Side carries the direction.
type TradeRecord struct {
	ID         string     `json:"id"`
	Bar        int        `json:"bar"`
	Timestamp  time.Time  `json:"timestamp"`
	Instrument Instrument `json:"instrument"`
	Side       OrderSide  `json:"side"`
	Quantity   int        `json:"quantity"`
	Price      float64    `json:"price"`
	Notional   float64    `json:"notional"`
	Fee        float64    `json:"fee"`
	Slippage   float64    `json:"slippage"`
}
