package domain

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType is the execution style of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// ExecMode records whether a trade was triggered by a signal or by hand.
type ExecMode string

const (
	ExecModeAuto   ExecMode = "auto"
	ExecModeManual ExecMode = "manual"
)
