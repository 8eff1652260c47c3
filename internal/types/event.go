package types

// Event flag bits. An event is visible to one or both sides of the
// latency bridge: exchange-side processors pick it up at ExchTs, the
// local side at LocalTs.
const (
	EventExch  uint64 = 1 << 0
	EventLocal uint64 = 1 << 1

	EventBuy  uint64 = 1 << 2
	EventSell uint64 = 1 << 3

	EventDepth         uint64 = 1 << 4
	EventTrade         uint64 = 1 << 5
	EventDepthClear    uint64 = 1 << 6
	EventDepthSnapshot uint64 = 1 << 7
)

// Composite flags used by event dispatch.
const (
	LocalBidDepthEvent         = EventLocal | EventBuy | EventDepth
	LocalAskDepthEvent         = EventLocal | EventSell | EventDepth
	LocalBidDepthClearEvent    = EventLocal | EventBuy | EventDepthClear
	LocalAskDepthClearEvent    = EventLocal | EventSell | EventDepthClear
	LocalDepthClearEvent       = EventLocal | EventDepthClear
	LocalBidDepthSnapshotEvent = EventLocal | EventBuy | EventDepthSnapshot
	LocalAskDepthSnapshotEvent = EventLocal | EventSell | EventDepthSnapshot
	LocalTradeEvent            = EventLocal | EventTrade
	LocalBuyTradeEvent         = EventLocal | EventBuy | EventTrade
	LocalSellTradeEvent        = EventLocal | EventSell | EventTrade

	ExchBidDepthEvent         = EventExch | EventBuy | EventDepth
	ExchAskDepthEvent         = EventExch | EventSell | EventDepth
	ExchBidDepthClearEvent    = EventExch | EventBuy | EventDepthClear
	ExchAskDepthClearEvent    = EventExch | EventSell | EventDepthClear
	ExchDepthClearEvent       = EventExch | EventDepthClear
	ExchBidDepthSnapshotEvent = EventExch | EventBuy | EventDepthSnapshot
	ExchAskDepthSnapshotEvent = EventExch | EventSell | EventDepthSnapshot
	ExchTradeEvent            = EventExch | EventTrade
	ExchBuyTradeEvent         = EventExch | EventBuy | EventTrade
	ExchSellTradeEvent        = EventExch | EventSell | EventTrade
)

// Event is a single feed record with both clock timestamps.
type Event struct {
	Ev      uint64
	ExchTs  int64
	LocalTs int64
	Px      float64
	Qty     float64
}

// Is reports whether every bit of flag is set on the event.
func (e *Event) Is(flag uint64) bool {
	return e.Ev&flag == flag
}
