package priceaction

import (
	"sort"

	"hftsim/internal/types"
)

// FlowQty is the accumulated buy and sell quantity at one price tick.
// Keeping both sides in a single entry guarantees that every tick seen
// on either side is present on both.
type FlowQty struct {
	Buy  float64
	Sell float64
}

// TickFlows records per-bucket volume at price. It exists only to
// compute the point of control and the top buy/sell rates at bucket
// close.
type TickFlows struct {
	qtys map[int64]FlowQty
}

// NewTickFlows creates the flow map for a new bucket, seeded with the
// bucket's first trade.
func NewTickFlows(tick int64, qty float64, side types.Side) *TickFlows {
	f := &TickFlows{qtys: make(map[int64]FlowQty)}
	f.Trade(tick, qty, side)
	return f
}

// Trade accumulates one trade at a price tick.
func (f *TickFlows) Trade(tick int64, qty float64, side types.Side) {
	q := f.qtys[tick]
	if side == types.SideBuy {
		q.Buy += qty
	} else {
		q.Sell += qty
	}
	f.qtys[tick] = q
}

// QtyAt returns the accumulated quantities at a tick.
func (f *TickFlows) QtyAt(tick int64) (FlowQty, bool) {
	q, ok := f.qtys[tick]
	return q, ok
}

// Len returns the number of distinct ticks traded in the bucket.
func (f *TickFlows) Len() int {
	return len(f.qtys)
}

// PocSellRateBuyRate computes the bucket's point of control and the top
// buy/sell rates.
//
// The sell rate compares sell volume one tick above the bucket low to
// the sell volume at the low itself; the buy rate mirrors this at the
// bucket high. Values above 1 mean volume grew away from the extreme,
// which strategies read as exhaustion or absorption.
//
// The POC buckets ticks into coarse groups of 10 raw ticks and reports
// the group with the most combined volume.
//
// Fewer than 2 distinct ticks yields the zero sentinel (0, 0, 0, 0);
// callers must skip the bucket's signal in that case.
func (f *TickFlows) PocSellRateBuyRate() (pocTick int64, pocQty, sellRate, buyRate float64) {
	ticks := make([]int64, 0, len(f.qtys))
	for tick := range f.qtys {
		ticks = append(ticks, tick)
	}
	if len(ticks) < 2 {
		return 0, 0, 0, 0
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i] < ticks[j] })

	n := len(ticks)
	sellRate = f.qtys[ticks[1]].Sell / max(f.qtys[ticks[0]].Sell, 0.01)
	buyRate = f.qtys[ticks[n-2]].Buy / max(f.qtys[ticks[n-1]].Buy, 0.01)

	coarse := make(map[int64]float64, n)
	for _, tick := range ticks {
		group := tick / 10
		q := f.qtys[tick]
		coarse[group] += q.Buy + q.Sell
		if coarse[group] > pocQty {
			pocQty = coarse[group]
			pocTick = group
		}
	}
	return pocTick, pocQty, sellRate, buyRate
}
