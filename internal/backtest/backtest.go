package backtest

import (
	"math"

	"hftsim/internal/backtest/models"
	"hftsim/internal/bus"
	"hftsim/internal/depth"
	"hftsim/internal/priceaction"
	"hftsim/internal/types"
)

// Config assembles one backtest instance.
type Config struct {
	TickSize float64
	LotSize  float64

	Asset models.AssetType
	Fees  models.FeeModel

	OrderLatency models.LatencyModel

	Intervals  []int64
	EmaPeriods []int64

	LastTradesCap int
}

// Backtest drives a single asset through its feed: it merges feed
// events, seen by the local side at their local timestamp and by the
// exchange at their exchange timestamp, with the in-flight order
// messages of both buses, and processes everything in global timestamp
// order.
type Backtest struct {
	events []types.Event

	local *Local
	exch  *Exchange

	localCursor int
	exchCursor  int

	curTs int64
}

// New creates a backtest over a timestamp-sorted event feed.
func New(cfg Config, events []types.Event) *Backtest {
	ordersTo := bus.NewOrderBus()
	ordersFrom := bus.NewOrderBus()

	pa := priceaction.NewEngine(cfg.Intervals, cfg.EmaPeriods)
	state := NewState(cfg.Asset, cfg.Fees)

	return &Backtest{
		events: events,
		local: NewLocal(
			depth.New(cfg.TickSize, cfg.LotSize),
			state,
			cfg.OrderLatency,
			cfg.LastTradesCap,
			ordersTo,
			ordersFrom,
			pa,
		),
		exch:  NewExchange(depth.New(cfg.TickSize, cfg.LotSize), cfg.OrderLatency, ordersTo, ordersFrom),
		curTs: math.MinInt64,
	}
}

// CurrentTimestamp returns the local clock of the backtest.
func (bt *Backtest) CurrentTimestamp() int64 {
	return bt.curTs
}

// Depth returns the locally perceived book.
func (bt *Backtest) Depth() *depth.Depth {
	return bt.local.Depth()
}

// Position returns the current position.
func (bt *Backtest) Position() float64 {
	return bt.local.Position()
}

// StateValues returns the account snapshot.
func (bt *Backtest) StateValues() types.StateValues {
	return bt.local.StateValues()
}

// PriceAction returns the price-action model fed by the trade stream.
func (bt *Backtest) PriceAction() *priceaction.Engine {
	return bt.local.PriceAction()
}

// Orders returns the locally known order set.
func (bt *Backtest) Orders() map[types.OrderId]*types.Order {
	return bt.local.Orders()
}

// LastTrades returns the trade events collected since the last clear.
func (bt *Backtest) LastTrades() []types.Event {
	return bt.local.LastTrades()
}

// ClearLastTrades resets the collected trade events.
func (bt *Backtest) ClearLastTrades() {
	bt.local.ClearLastTrades()
}

// ClearInactiveOrders sweeps terminal orders out of the local set.
func (bt *Backtest) ClearInactiveOrders() {
	bt.local.ClearInactiveOrders()
}

// FeedLatency returns the last observed feed timestamp pair.
func (bt *Backtest) FeedLatency() (exchTs, localTs int64, ok bool) {
	return bt.local.FeedLatency()
}

// OrderLatency returns the last observed order round-trip timestamps.
func (bt *Backtest) OrderLatency() (req, exch, resp int64, ok bool) {
	return bt.local.OrderLatency()
}

// SubmitBuyOrder submits a buy order.
func (bt *Backtest) SubmitBuyOrder(orderID types.OrderId, price, qty float64, tif types.TimeInForce, ordType types.OrdType) error {
	return bt.local.SubmitOrder(orderID, types.SideBuy, price, qty, ordType, tif, bt.curTs)
}

// SubmitSellOrder submits a sell order.
func (bt *Backtest) SubmitSellOrder(orderID types.OrderId, price, qty float64, tif types.TimeInForce, ordType types.OrdType) error {
	return bt.local.SubmitOrder(orderID, types.SideSell, price, qty, ordType, tif, bt.curTs)
}

// Modify replaces the price and quantity of an open order.
func (bt *Backtest) Modify(orderID types.OrderId, price, qty float64) error {
	return bt.local.Modify(orderID, price, qty, bt.curTs)
}

// Cancel requests cancellation of an open order.
func (bt *Backtest) Cancel(orderID types.OrderId) error {
	return bt.local.Cancel(orderID, bt.curTs)
}

// Elapse advances the local clock by the given duration, processing
// everything due in between. It returns false when the feed is
// exhausted.
func (bt *Backtest) Elapse(duration int64) bool {
	if bt.curTs == math.MinInt64 {
		if ts, ok := bt.nextLocalFeedTimestamp(); ok {
			bt.curTs = ts
		} else {
			return false
		}
	}
	return bt.GoTo(bt.curTs + duration)
}

// GoTo advances the local clock to the given timestamp.
func (bt *Backtest) GoTo(timestamp int64) bool {
	for {
		next := int64(math.MaxInt64)
		kind := stepNone

		if ts, ok := bt.nextLocalFeedTimestamp(); ok && ts < next {
			next, kind = ts, stepLocalFeed
		}
		if ts, ok := bt.nextExchFeedTimestamp(); ok && ts < next {
			next, kind = ts, stepExchFeed
		}
		if ts := bt.exch.EarliestRecvOrderTimestamp(); ts < next {
			next, kind = ts, stepExchOrder
		}
		if ts := bt.local.EarliestRecvOrderTimestamp(); ts < next {
			next, kind = ts, stepLocalOrder
		}

		if next > timestamp {
			bt.curTs = timestamp
			return kind != stepNone || bt.ordersInFlight()
		}

		switch kind {
		case stepLocalFeed:
			ev := &bt.events[bt.localCursor]
			bt.localCursor++
			bt.local.Process(ev)
		case stepExchFeed:
			ev := &bt.events[bt.exchCursor]
			bt.exchCursor++
			bt.exch.Process(ev)
		case stepExchOrder:
			bt.exch.ProcessRecvOrder(next)
		case stepLocalOrder:
			bt.local.ProcessRecvOrder(next)
		}
	}
}

type stepKind uint8

const (
	stepNone stepKind = iota
	stepLocalFeed
	stepExchFeed
	stepLocalOrder
	stepExchOrder
)

func (bt *Backtest) nextLocalFeedTimestamp() (int64, bool) {
	for bt.localCursor < len(bt.events) {
		ev := &bt.events[bt.localCursor]
		if ts, ok := bt.local.EventSeenTimestamp(ev); ok {
			return ts, true
		}
		bt.localCursor++
	}
	return 0, false
}

func (bt *Backtest) nextExchFeedTimestamp() (int64, bool) {
	for bt.exchCursor < len(bt.events) {
		ev := &bt.events[bt.exchCursor]
		if ts, ok := bt.exch.EventSeenTimestamp(ev); ok {
			return ts, true
		}
		bt.exchCursor++
	}
	return 0, false
}

func (bt *Backtest) ordersInFlight() bool {
	return bt.local.EarliestRecvOrderTimestamp() != math.MaxInt64 ||
		bt.exch.EarliestRecvOrderTimestamp() != math.MaxInt64
}
