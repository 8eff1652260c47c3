package priceaction

import (
	"sort"

	"hftsim/internal/types"
)

// Imbalance tracks cumulative buy/sell quantity for the most recently
// seen distinct price ticks. The tick set is ordered ascending and
// capacity bounded; when it overflows, the lowest tick is evicted along
// with both of its quantities.
//
// It is fed one entry per tick change: the caller coalesces maximal runs
// of trades at the same price and side into a single push.
type Imbalance struct {
	ticks  []int64
	qtys   map[int64]FlowQty
	maxLen int
}

// NewImbalance creates a tracker holding at most maxLen ticks.
func NewImbalance(maxLen int) *Imbalance {
	return &Imbalance{
		ticks:  make([]int64, 0, maxLen),
		qtys:   make(map[int64]FlowQty, maxLen),
		maxLen: maxLen,
	}
}

// Len returns the number of tracked ticks.
func (im *Imbalance) Len() int { return len(im.ticks) }

// QtyAt returns the cumulative quantities at a tick.
func (im *Imbalance) QtyAt(tick int64) (FlowQty, bool) {
	q, ok := im.qtys[tick]
	return q, ok
}

// Push records one coalesced trade run. A run with side none (the
// initial accumulator state) is ignored.
func (im *Imbalance) Push(tick int64, qty float64, side types.Side) {
	if side == types.SideNone {
		return
	}

	pos := sort.Search(len(im.ticks), func(i int) bool { return im.ticks[i] >= tick })
	if pos < len(im.ticks) && im.ticks[pos] == tick {
		q := im.qtys[tick]
		if side == types.SideBuy {
			q.Buy += qty
		} else {
			q.Sell += qty
		}
		im.qtys[tick] = q
		return
	}

	if len(im.ticks) == im.maxLen {
		evicted := im.ticks[0]
		im.ticks = im.ticks[1:]
		delete(im.qtys, evicted)
		if pos > 0 {
			pos--
		}
	}
	im.ticks = append(im.ticks, 0)
	copy(im.ticks[pos+1:], im.ticks[pos:])
	im.ticks[pos] = tick
	if side == types.SideBuy {
		im.qtys[tick] = FlowQty{Buy: qty}
	} else {
		im.qtys[tick] = FlowQty{Sell: qty}
	}
}

// CalImbalance scans the tracked ticks and reports those where buy
// volume at a tick dominates sell volume one tick below (buy imbalance)
// or the reverse (sell imbalance). Both volumes must clear a noise floor
// and the dominant side must exceed 3x the other.
func (im *Imbalance) CalImbalance() (buyImbalance, sellImbalance []int64) {
	if len(im.ticks) < 2 {
		return nil, nil
	}
	for _, tick := range im.ticks {
		buyQty := im.qtys[tick].Buy
		sellQty := im.qtys[tick-1].Sell
		if buyQty >= 0.05 && sellQty >= 0.02 {
			if buyQty/sellQty > 3.0 {
				buyImbalance = append(buyImbalance, tick)
			}
			if sellQty/buyQty > 3.0 {
				sellImbalance = append(sellImbalance, tick)
			}
		}
	}
	return buyImbalance, sellImbalance
}
