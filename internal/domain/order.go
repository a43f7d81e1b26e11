package domain

import "time"

// OrderSide is the direction of a single order leg.
type OrderSide string

const (
	OrderBuy  OrderSide = "buy"
	OrderSell OrderSide = "sell"
)

// Order is a resting exchange order as reported by the open-orders query.
type Order struct {
	ID     string    `json:"id"`
	Symbol string    `json:"symbol"`
	Side   OrderSide `json:"side"`
	Type   string    `json:"type"`
	Size   float64   `json:"size"`
	Price  float64   `json:"price"`
	Status string    `json:"status"`
}

// Fill is the immediate result of an executed order.
type Fill struct {
	Symbol string    `json:"symbol"`
	Side   OrderSide `json:"side"`
	Price  float64   `json:"price"`
	Size   float64   `json:"size"`
	Fee    float64   `json:"fee"`
	Time   time.Time `json:"time"`
}
