package types

import (
	"errors"
)

var (
	ErrOrderIdExist          = errors.New("order id already exists")
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderRequestInProcess = errors.New("order request in process")
	ErrInvalidOrderRequest   = errors.New("invalid order request")
)

// OrderId identifies an order within one asset's processor.
type OrderId = uint64

// Side is the aggressor or order side.
type Side int8

const (
	SideNone Side = 0
	SideBuy  Side = 1
	SideSell Side = -1
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "none"
	}
}

// OrdType defines how an order interacts with the book.
type OrdType uint8

const (
	OrdTypeLimit OrdType = iota
	OrdTypeMarket
)

// TimeInForce defines order lifetime semantics.
type TimeInForce uint8

const (
	TimeInForceGTC TimeInForce = iota // good till canceled
	TimeInForceGTX                    // post only
	TimeInForceFOK
	TimeInForceIOC
)

// Status tracks the lifecycle of an order; it is also used for the
// in-flight request slot (Order.Req).
type Status uint8

const (
	StatusNone Status = iota
	StatusNew
	StatusExpired
	StatusFilled
	StatusCanceled
	StatusPartiallyFilled
	StatusRejected
	StatusReplaced
	StatusUnsupported
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusNew:
		return "new"
	case StatusExpired:
		return "expired"
	case StatusFilled:
		return "filled"
	case StatusCanceled:
		return "canceled"
	case StatusPartiallyFilled:
		return "partially_filled"
	case StatusRejected:
		return "rejected"
	case StatusReplaced:
		return "replaced"
	default:
		return "unsupported"
	}
}

// Order holds the local (or exchange) view of a single order.
//
// PriceTick is the integer price in tick units; the raw price is
// PriceTick * TickSize. Req records the request currently in flight for
// this order; only one request may be in flight at a time.
type Order struct {
	OrderID        OrderId
	PriceTick      int64
	TickSize       float64
	Qty            float64
	LeavesQty      float64
	ExecQty        float64
	ExecPriceTick  int64
	Side           Side
	Status         Status
	Req            Status
	OrderType      OrdType
	TimeInForce    TimeInForce
	LocalTimestamp int64
	ExchTimestamp  int64
	Maker          bool
}

// NewOrder creates an order in its initial state.
func NewOrder(orderID OrderId, priceTick int64, tickSize float64, qty float64, side Side, ordType OrdType, tif TimeInForce) Order {
	return Order{
		OrderID:     orderID,
		PriceTick:   priceTick,
		TickSize:    tickSize,
		Qty:         qty,
		LeavesQty:   qty,
		Side:        side,
		Status:      StatusNone,
		Req:         StatusNone,
		OrderType:   ordType,
		TimeInForce: tif,
	}
}

// Price returns the raw order price.
func (o *Order) Price() float64 {
	return float64(o.PriceTick) * o.TickSize
}

// ExecPrice returns the raw execution price of the last fill.
func (o *Order) ExecPrice() float64 {
	return float64(o.ExecPriceTick) * o.TickSize
}

// Active reports whether the order can still trade.
func (o *Order) Active() bool {
	switch o.Status {
	case StatusNew, StatusPartiallyFilled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the order reached a final state.
func (o *Order) Terminal() bool {
	switch o.Status {
	case StatusFilled, StatusCanceled, StatusExpired:
		return true
	default:
		return false
	}
}

// Update applies the state carried by a response order onto the local copy.
func (o *Order) Update(from *Order) {
	o.PriceTick = from.PriceTick
	o.Qty = from.Qty
	o.LeavesQty = from.LeavesQty
	o.ExecQty = from.ExecQty
	o.ExecPriceTick = from.ExecPriceTick
	o.Status = from.Status
	o.Req = from.Req
	o.LocalTimestamp = from.LocalTimestamp
	o.ExchTimestamp = from.ExchTimestamp
	o.Maker = from.Maker
}

// StateValues is the per-asset account snapshot exposed to strategies.
type StateValues struct {
	Balance       float64
	Position      float64
	Fee           float64
	TradingVolume float64
	TradingValue  float64
	NumTrades     int64
}
