package backtest

import (
	"math"

	"hftsim/internal/backtest/models"
	"hftsim/internal/bus"
	"hftsim/internal/depth"
	"hftsim/internal/types"
)

// Exchange is the matching side of the latency bridge. Resting orders
// fill in full or not at all; queue position inside a level is not
// modelled. Fills are triggered by trade events crossing an order's
// price and by the opposite best moving through it.
type Exchange struct {
	orders     map[types.OrderId]*types.Order
	buyOrders  map[int64]map[types.OrderId]struct{}
	sellOrders map[int64]map[types.OrderId]struct{}

	ordersTo   *bus.OrderBus // local -> exchange
	ordersFrom *bus.OrderBus // exchange -> local

	depth        *depth.Depth
	orderLatency models.LatencyModel
}

// NewExchange constructs the exchange processor.
func NewExchange(
	d *depth.Depth,
	orderLatency models.LatencyModel,
	ordersTo, ordersFrom *bus.OrderBus,
) *Exchange {
	return &Exchange{
		orders:       make(map[types.OrderId]*types.Order),
		buyOrders:    make(map[int64]map[types.OrderId]struct{}),
		sellOrders:   make(map[int64]map[types.OrderId]struct{}),
		ordersTo:     ordersTo,
		ordersFrom:   ordersFrom,
		depth:        d,
		orderLatency: orderLatency,
	}
}

// Depth returns the exchange-side book.
func (e *Exchange) Depth() *depth.Depth {
	return e.depth
}

// EventSeenTimestamp returns when the exchange observes an event.
func (e *Exchange) EventSeenTimestamp(ev *types.Event) (int64, bool) {
	if ev.Is(types.EventExch) {
		return ev.ExchTs, true
	}
	return 0, false
}

// Process applies one feed event to the exchange book and fills any
// resting orders the event proves marketable.
func (e *Exchange) Process(ev *types.Event) {
	switch {
	case ev.Is(types.ExchBidDepthClearEvent):
		e.depth.ClearDepth(types.SideBuy, ev.Px)
	case ev.Is(types.ExchAskDepthClearEvent):
		e.depth.ClearDepth(types.SideSell, ev.Px)
	case ev.Is(types.ExchDepthClearEvent):
		e.depth.ClearDepth(types.SideNone, 0)
	case ev.Is(types.ExchBidDepthEvent) || ev.Is(types.ExchBidDepthSnapshotEvent):
		prevBest, best := e.depth.UpdateBidDepth(ev.Px, ev.Qty, ev.ExchTs)
		if best > prevBest || prevBest == depth.InvalidMin {
			e.onBestBidUpdate(best, ev.ExchTs)
		}
	case ev.Is(types.ExchAskDepthEvent) || ev.Is(types.ExchAskDepthSnapshotEvent):
		prevBest, best := e.depth.UpdateAskDepth(ev.Px, ev.Qty, ev.ExchTs)
		if best < prevBest || prevBest == depth.InvalidMax {
			e.onBestAskUpdate(best, ev.ExchTs)
		}
	case ev.Is(types.ExchBuyTradeEvent):
		// A buy trade printing above a resting ask proves the ask was
		// taken out on the way up.
		tradeTick := int64(math.Round(ev.Px / e.depth.TickSize()))
		for _, order := range e.ordersAtOrBelow(e.sellOrders, tradeTick-1) {
			e.fill(order, ev.ExchTs, true, order.PriceTick)
		}
	case ev.Is(types.ExchSellTradeEvent):
		tradeTick := int64(math.Round(ev.Px / e.depth.TickSize()))
		for _, order := range e.ordersAtOrAbove(e.buyOrders, tradeTick+1) {
			e.fill(order, ev.ExchTs, true, order.PriceTick)
		}
	}
}

// ProcessRecvOrder applies every request whose delivery timestamp equals
// the current processing timestamp.
func (e *Exchange) ProcessRecvOrder(timestamp int64) {
	for e.ordersTo.Len() > 0 {
		recvTs, _ := e.ordersTo.EarliestTimestamp()
		if recvTs != timestamp {
			break
		}
		order, _, _ := e.ordersTo.PopFront()
		order.ExchTimestamp = timestamp

		switch order.Req {
		case types.StatusNew:
			e.ackNew(&order, timestamp)
		case types.StatusCanceled:
			e.ackCancel(&order, timestamp)
		case types.StatusReplaced:
			e.ackModify(&order, timestamp)
		default:
			order.Req = types.StatusRejected
			order.Status = types.StatusUnsupported
			e.respond(&order, timestamp)
		}
	}
}

// EarliestRecvOrderTimestamp returns the next request delivery time.
func (e *Exchange) EarliestRecvOrderTimestamp() int64 {
	if ts, ok := e.ordersTo.EarliestTimestamp(); ok {
		return ts
	}
	return math.MaxInt64
}

func (e *Exchange) ackNew(order *types.Order, timestamp int64) {
	if _, ok := e.orders[order.OrderID]; ok {
		order.Req = types.StatusRejected
		e.respond(order, timestamp)
		return
	}

	switch order.Side {
	case types.SideBuy:
		bestAsk := e.depth.BestAskTick()
		if order.OrderType == types.OrdTypeMarket || (bestAsk != depth.InvalidMax && order.PriceTick >= bestAsk) {
			if order.TimeInForce == types.TimeInForceGTX {
				order.Status = types.StatusExpired
				e.respond(order, timestamp)
				return
			}
			if bestAsk == depth.InvalidMax {
				order.Req = types.StatusRejected
				e.respond(order, timestamp)
				return
			}
			e.fillNow(order, timestamp, bestAsk)
			return
		}
	case types.SideSell:
		bestBid := e.depth.BestBidTick()
		if order.OrderType == types.OrdTypeMarket || (bestBid != depth.InvalidMin && order.PriceTick <= bestBid) {
			if order.TimeInForce == types.TimeInForceGTX {
				order.Status = types.StatusExpired
				e.respond(order, timestamp)
				return
			}
			if bestBid == depth.InvalidMin {
				order.Req = types.StatusRejected
				e.respond(order, timestamp)
				return
			}
			e.fillNow(order, timestamp, bestBid)
			return
		}
	default:
		order.Req = types.StatusRejected
		e.respond(order, timestamp)
		return
	}

	if order.TimeInForce == types.TimeInForceIOC || order.TimeInForce == types.TimeInForceFOK {
		order.Status = types.StatusExpired
		e.respond(order, timestamp)
		return
	}

	order.Status = types.StatusNew
	order.Maker = true
	e.rest(order)
	e.respond(order, timestamp)
}

func (e *Exchange) ackCancel(order *types.Order, timestamp int64) {
	resting, ok := e.orders[order.OrderID]
	if !ok {
		order.Req = types.StatusRejected
		e.respond(order, timestamp)
		return
	}
	e.remove(resting)
	resting.Status = types.StatusCanceled
	resting.ExchTimestamp = timestamp
	e.respond(resting, timestamp)
}

func (e *Exchange) ackModify(order *types.Order, timestamp int64) {
	resting, ok := e.orders[order.OrderID]
	if !ok {
		order.Req = types.StatusRejected
		e.respond(order, timestamp)
		return
	}
	e.remove(resting)
	resting.PriceTick = order.PriceTick
	resting.Qty = order.Qty
	resting.LeavesQty = order.Qty
	resting.LocalTimestamp = order.LocalTimestamp
	resting.ExchTimestamp = timestamp

	crossing := false
	switch resting.Side {
	case types.SideBuy:
		bestAsk := e.depth.BestAskTick()
		if bestAsk != depth.InvalidMax && resting.PriceTick >= bestAsk {
			crossing = true
			if resting.TimeInForce == types.TimeInForceGTX {
				resting.Status = types.StatusExpired
				e.respond(resting, timestamp)
				return
			}
			e.fillNow(resting, timestamp, bestAsk)
		}
	case types.SideSell:
		bestBid := e.depth.BestBidTick()
		if bestBid != depth.InvalidMin && resting.PriceTick <= bestBid {
			crossing = true
			if resting.TimeInForce == types.TimeInForceGTX {
				resting.Status = types.StatusExpired
				e.respond(resting, timestamp)
				return
			}
			e.fillNow(resting, timestamp, bestBid)
		}
	}
	if crossing {
		return
	}

	resting.Status = types.StatusReplaced
	resting.Maker = true
	e.rest(resting)
	e.respond(resting, timestamp)
}

func (e *Exchange) onBestBidUpdate(best int64, timestamp int64) {
	// The bid advancing through resting asks takes them out.
	for _, order := range e.ordersAtOrBelow(e.sellOrders, best) {
		e.fill(order, timestamp, true, order.PriceTick)
	}
}

func (e *Exchange) onBestAskUpdate(best int64, timestamp int64) {
	for _, order := range e.ordersAtOrAbove(e.buyOrders, best) {
		e.fill(order, timestamp, true, order.PriceTick)
	}
}

// fillNow executes an immediately marketable order as a taker at the
// opposite best.
func (e *Exchange) fillNow(order *types.Order, timestamp int64, execTick int64) {
	order.Maker = false
	e.fill(order, timestamp, false, execTick)
}

func (e *Exchange) fill(order *types.Order, timestamp int64, maker bool, execTick int64) {
	if maker {
		e.remove(order)
		order.Maker = true
	}
	order.ExecPriceTick = execTick
	order.ExecQty = order.LeavesQty
	order.LeavesQty = 0
	order.Status = types.StatusFilled
	order.ExchTimestamp = timestamp
	e.respond(order, timestamp)
}

func (e *Exchange) respond(order *types.Order, timestamp int64) {
	resp := *order
	if resp.Req != types.StatusRejected {
		resp.Req = types.StatusNone
	}
	latency := e.orderLatency.Response(timestamp, &resp)
	e.ordersFrom.Append(resp, timestamp+latency)
}

func (e *Exchange) rest(order *types.Order) {
	kept := *order
	kept.Req = types.StatusNone
	e.orders[kept.OrderID] = &kept

	book := e.buyOrders
	if kept.Side == types.SideSell {
		book = e.sellOrders
	}
	level, ok := book[kept.PriceTick]
	if !ok {
		level = make(map[types.OrderId]struct{})
		book[kept.PriceTick] = level
	}
	level[kept.OrderID] = struct{}{}
}

func (e *Exchange) remove(order *types.Order) {
	delete(e.orders, order.OrderID)
	book := e.buyOrders
	if order.Side == types.SideSell {
		book = e.sellOrders
	}
	if level, ok := book[order.PriceTick]; ok {
		delete(level, order.OrderID)
		if len(level) == 0 {
			delete(book, order.PriceTick)
		}
	}
}

// ordersAtOrBelow collects resting orders priced at or below bound in
// ascending price order.
func (e *Exchange) ordersAtOrBelow(book map[int64]map[types.OrderId]struct{}, bound int64) []*types.Order {
	var out []*types.Order
	for tick, level := range book {
		if tick > bound {
			continue
		}
		for id := range level {
			if order, ok := e.orders[id]; ok {
				out = append(out, order)
			}
		}
	}
	return out
}

// ordersAtOrAbove collects resting orders priced at or above bound.
func (e *Exchange) ordersAtOrAbove(book map[int64]map[types.OrderId]struct{}, bound int64) []*types.Order {
	var out []*types.Order
	for tick, level := range book {
		if tick < bound {
			continue
		}
		for id := range level {
			if order, ok := e.orders[id]; ok {
				out = append(out, order)
			}
		}
	}
	return out
}
