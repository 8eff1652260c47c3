package backtest

import (
	"math"

	"hftsim/internal/backtest/models"
	"hftsim/internal/bus"
	"hftsim/internal/depth"
	"hftsim/internal/priceaction"
	"hftsim/internal/types"
)

// Local models the trading side of the latency bridge: it applies
// latency-shifted order requests, keeps the locally perceived book and
// account state, and forwards trade-feed events into the price-action
// model.
//
// Order requests and responses are applied strictly in delivery
// timestamp order; the one-in-flight-request-per-order rule keeps them
// from interleaving per order.
type Local struct {
	orders     map[types.OrderId]*types.Order
	ordersTo   *bus.OrderBus // local -> exchange
	ordersFrom *bus.OrderBus // exchange -> local

	depth        *depth.Depth
	state        *State
	orderLatency models.LatencyModel
	pa           *priceaction.Engine

	trades           []types.Event
	lastFeedLatency  [2]int64
	hasFeedLatency   bool
	lastOrderLatency [3]int64
	hasOrderLatency  bool
}

// NewLocal constructs the local processor.
func NewLocal(
	d *depth.Depth,
	state *State,
	orderLatency models.LatencyModel,
	lastTradesCap int,
	ordersTo, ordersFrom *bus.OrderBus,
	pa *priceaction.Engine,
) *Local {
	return &Local{
		orders:       make(map[types.OrderId]*types.Order),
		ordersTo:     ordersTo,
		ordersFrom:   ordersFrom,
		depth:        d,
		state:        state,
		orderLatency: orderLatency,
		pa:           pa,
		trades:       make([]types.Event, 0, lastTradesCap),
	}
}

// SubmitOrder creates a new order and schedules its delivery to the
// exchange. A negative entry latency rejects the order for technical
// reasons: the rejection notice is delivered back after the latency's
// absolute value.
func (l *Local) SubmitOrder(
	orderID types.OrderId,
	side types.Side,
	price, qty float64,
	ordType types.OrdType,
	tif types.TimeInForce,
	currentTimestamp int64,
) error {
	if _, ok := l.orders[orderID]; ok {
		return types.ErrOrderIdExist
	}

	priceTick := int64(math.Round(price / l.depth.TickSize()))
	order := types.NewOrder(orderID, priceTick, l.depth.TickSize(), qty, side, ordType, tif)
	order.Req = types.StatusNew
	order.LocalTimestamp = currentTimestamp

	local := order
	l.orders[orderID] = &local

	latency := l.orderLatency.Entry(currentTimestamp, &order)
	if latency < 0 {
		order.Req = types.StatusRejected
		l.ordersFrom.Append(order, currentTimestamp-latency)
	} else {
		l.ordersTo.Append(order, currentTimestamp+latency)
	}
	return nil
}

// Modify replaces the price and quantity of an open order. It fails when
// a prior request for the order is still in flight.
func (l *Local) Modify(orderID types.OrderId, price, qty float64, currentTimestamp int64) error {
	order, ok := l.orders[orderID]
	if !ok {
		return types.ErrOrderNotFound
	}
	if order.Req != types.StatusNone {
		return types.ErrOrderRequestInProcess
	}

	// The local copy keeps its original terms until the exchange
	// confirms the replace; only the outgoing request carries them.
	order.Req = types.StatusReplaced
	order.LocalTimestamp = currentTimestamp

	req := *order
	req.PriceTick = int64(math.Round(price / l.depth.TickSize()))
	req.Qty = qty

	latency := l.orderLatency.Entry(currentTimestamp, &req)
	if latency < 0 {
		rej := *order
		rej.Req = types.StatusRejected
		l.ordersFrom.Append(rej, currentTimestamp-latency)
	} else {
		l.ordersTo.Append(req, currentTimestamp+latency)
	}
	return nil
}

// Cancel requests cancellation of an open order. It fails when a prior
// request for the order is still in flight.
func (l *Local) Cancel(orderID types.OrderId, currentTimestamp int64) error {
	order, ok := l.orders[orderID]
	if !ok {
		return types.ErrOrderNotFound
	}
	if order.Req != types.StatusNone {
		return types.ErrOrderRequestInProcess
	}

	order.Req = types.StatusCanceled
	latency := l.orderLatency.Entry(currentTimestamp, order)
	if latency < 0 {
		rej := *order
		rej.Req = types.StatusRejected
		l.ordersFrom.Append(rej, currentTimestamp-latency)
	} else {
		l.ordersTo.Append(*order, currentTimestamp+latency)
	}
	return nil
}

// ClearInactiveOrders sweeps filled, canceled and expired orders out of
// the active set. Terminal orders stay queryable until this runs.
func (l *Local) ClearInactiveOrders() {
	for id, order := range l.orders {
		switch order.Status {
		case types.StatusExpired, types.StatusFilled, types.StatusCanceled:
			delete(l.orders, id)
		}
	}
}

// Position returns the current position.
func (l *Local) Position() float64 {
	return l.state.Values().Position
}

// StateValues returns the account snapshot.
func (l *Local) StateValues() types.StateValues {
	return l.state.Values()
}

// Depth returns the locally perceived book.
func (l *Local) Depth() *depth.Depth {
	return l.depth
}

// PriceAction returns the embedded price-action model.
func (l *Local) PriceAction() *priceaction.Engine {
	return l.pa
}

// Orders returns the active order set. The map is a borrowed view valid
// only for the current event-processing step.
func (l *Local) Orders() map[types.OrderId]*types.Order {
	return l.orders
}

// LastTrades returns the trade events collected since the last clear.
func (l *Local) LastTrades() []types.Event {
	return l.trades
}

// ClearLastTrades resets the collected trade events.
func (l *Local) ClearLastTrades() {
	l.trades = l.trades[:0]
}

// FeedLatency returns the last observed (exchange ts, local ts) pair.
func (l *Local) FeedLatency() (exchTs, localTs int64, ok bool) {
	return l.lastFeedLatency[0], l.lastFeedLatency[1], l.hasFeedLatency
}

// OrderLatency returns the last observed (request, exchange, response)
// timestamps of an order round trip.
func (l *Local) OrderLatency() (req, exch, resp int64, ok bool) {
	return l.lastOrderLatency[0], l.lastOrderLatency[1], l.lastOrderLatency[2], l.hasOrderLatency
}

// EventSeenTimestamp returns when the local side observes an event.
func (l *Local) EventSeenTimestamp(ev *types.Event) (int64, bool) {
	if ev.Is(types.EventLocal) {
		return ev.LocalTs, true
	}
	return 0, false
}

// Process applies one feed event: depth updates mutate the local book,
// trade events additionally drive the price-action model. This is the
// only path by which price-action state advances.
func (l *Local) Process(ev *types.Event) {
	switch {
	case ev.Is(types.LocalBidDepthClearEvent):
		l.depth.ClearDepth(types.SideBuy, ev.Px)
	case ev.Is(types.LocalAskDepthClearEvent):
		l.depth.ClearDepth(types.SideSell, ev.Px)
	case ev.Is(types.LocalDepthClearEvent):
		l.depth.ClearDepth(types.SideNone, 0)
	case ev.Is(types.LocalBidDepthEvent) || ev.Is(types.LocalBidDepthSnapshotEvent):
		l.depth.UpdateBidDepth(ev.Px, ev.Qty, ev.LocalTs)
	case ev.Is(types.LocalAskDepthEvent) || ev.Is(types.LocalAskDepthSnapshotEvent):
		l.depth.UpdateAskDepth(ev.Px, ev.Qty, ev.LocalTs)
	case ev.Is(types.LocalTradeEvent):
		if cap(l.trades) > 0 {
			l.trades = append(l.trades, *ev)
		}
		side := types.SideSell
		if ev.Is(types.LocalBuyTradeEvent) {
			side = types.SideBuy
		}
		l.pa.OrderFlow(ev.Px, l.depth.TickSize(), ev.Qty, ev.LocalTs, side)
	}

	l.lastFeedLatency = [2]int64{ev.ExchTs, ev.LocalTs}
	l.hasFeedLatency = true
}

// ProcessRecvOrder applies every response whose delivery timestamp
// equals the current processing timestamp; later responses wait.
func (l *Local) ProcessRecvOrder(timestamp int64) {
	for l.ordersFrom.Len() > 0 {
		recvTs, _ := l.ordersFrom.EarliestTimestamp()
		if recvTs != timestamp {
			break
		}
		order, _, _ := l.ordersFrom.PopFront()

		// A rejection that never reached the matching engine carries no
		// exchange timestamp and is excluded from latency stats.
		if order.ExchTimestamp > 0 {
			l.lastOrderLatency = [3]int64{order.LocalTimestamp, order.ExchTimestamp, recvTs}
			l.hasOrderLatency = true
		}
		l.applyRecvOrder(order)
	}
}

func (l *Local) applyRecvOrder(order types.Order) {
	if order.Status == types.StatusFilled {
		l.state.ApplyFill(&order)
	}

	local, ok := l.orders[order.OrderID]
	if !ok {
		if order.Req != types.StatusRejected {
			kept := order
			l.orders[order.OrderID] = &kept
		}
		return
	}
	if order.Req == types.StatusRejected {
		if order.LocalTimestamp == local.LocalTimestamp {
			if local.Req == types.StatusNew {
				local.Req = types.StatusNone
				local.Status = types.StatusExpired
			} else {
				local.Req = types.StatusNone
			}
		}
		return
	}
	local.Update(&order)
}

// EarliestRecvOrderTimestamp returns the next response delivery time.
func (l *Local) EarliestRecvOrderTimestamp() int64 {
	if ts, ok := l.ordersFrom.EarliestTimestamp(); ok {
		return ts
	}
	return math.MaxInt64
}

// EarliestSendOrderTimestamp returns the next request delivery time.
func (l *Local) EarliestSendOrderTimestamp() int64 {
	if ts, ok := l.ordersTo.EarliestTimestamp(); ok {
		return ts
	}
	return math.MaxInt64
}
