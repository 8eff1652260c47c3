package depth

import (
	"math"

	"hftsim/internal/types"
)

// Sentinel ticks signalling an incomplete book side. Callers must check
// the best ticks against these before trading.
const (
	InvalidMin int64 = math.MinInt64
	InvalidMax int64 = math.MaxInt64
)

// Depth is an L2 order book keyed by integer price tick. It is owned and
// mutated by a single processor; readers receive it as a borrowed view.
type Depth struct {
	tickSize float64
	lotSize  float64

	bidDepth map[int64]float64
	askDepth map[int64]float64

	bestBidTick int64
	bestAskTick int64
	lowBidTick  int64
	highAskTick int64
}

// New creates an empty book with the given tick and lot size.
func New(tickSize, lotSize float64) *Depth {
	return &Depth{
		tickSize:    tickSize,
		lotSize:     lotSize,
		bidDepth:    make(map[int64]float64),
		askDepth:    make(map[int64]float64),
		bestBidTick: InvalidMin,
		bestAskTick: InvalidMax,
		lowBidTick:  InvalidMax,
		highAskTick: InvalidMin,
	}
}

// TickSize returns the price tick size.
func (d *Depth) TickSize() float64 { return d.tickSize }

// LotSize returns the quantity lot size.
func (d *Depth) LotSize() float64 { return d.lotSize }

// BestBidTick returns the best bid price in ticks, or InvalidMin.
func (d *Depth) BestBidTick() int64 { return d.bestBidTick }

// BestAskTick returns the best ask price in ticks, or InvalidMax.
func (d *Depth) BestAskTick() int64 { return d.bestAskTick }

// BestBid returns the best bid price, or NaN when the bid side is empty.
func (d *Depth) BestBid() float64 {
	if d.bestBidTick == InvalidMin {
		return math.NaN()
	}
	return float64(d.bestBidTick) * d.tickSize
}

// BestAsk returns the best ask price, or NaN when the ask side is empty.
func (d *Depth) BestAsk() float64 {
	if d.bestAskTick == InvalidMax {
		return math.NaN()
	}
	return float64(d.bestAskTick) * d.tickSize
}

// BidQtyAt returns the resting bid quantity at the given tick.
func (d *Depth) BidQtyAt(tick int64) float64 { return d.bidDepth[tick] }

// AskQtyAt returns the resting ask quantity at the given tick.
func (d *Depth) AskQtyAt(tick int64) float64 { return d.askDepth[tick] }

// UpdateBidDepth applies a bid level change and returns the previous and
// current best bid ticks.
func (d *Depth) UpdateBidDepth(px, qty float64, _ int64) (prevBest, best int64) {
	priceTick := int64(math.Round(px / d.tickSize))
	prevBest = d.bestBidTick

	if qty < d.lotSize {
		delete(d.bidDepth, priceTick)
		if priceTick == d.bestBidTick {
			d.bestBidTick = d.scanBidDown(d.bestBidTick - 1)
			if d.bestBidTick == InvalidMin {
				d.lowBidTick = InvalidMax
			}
		}
	} else {
		d.bidDepth[priceTick] = qty
		if priceTick > d.bestBidTick || d.bestBidTick == InvalidMin {
			d.bestBidTick = priceTick
		}
		if priceTick < d.lowBidTick {
			d.lowBidTick = priceTick
		}
	}
	return prevBest, d.bestBidTick
}

// UpdateAskDepth applies an ask level change and returns the previous and
// current best ask ticks.
func (d *Depth) UpdateAskDepth(px, qty float64, _ int64) (prevBest, best int64) {
	priceTick := int64(math.Round(px / d.tickSize))
	prevBest = d.bestAskTick

	if qty < d.lotSize {
		delete(d.askDepth, priceTick)
		if priceTick == d.bestAskTick {
			d.bestAskTick = d.scanAskUp(d.bestAskTick + 1)
			if d.bestAskTick == InvalidMax {
				d.highAskTick = InvalidMin
			}
		}
	} else {
		d.askDepth[priceTick] = qty
		if priceTick < d.bestAskTick || d.bestAskTick == InvalidMax {
			d.bestAskTick = priceTick
		}
		if priceTick > d.highAskTick {
			d.highAskTick = priceTick
		}
	}
	return prevBest, d.bestAskTick
}

// ClearDepth clears one side of the book, or both when side is SideNone.
// clearUpTo bounds the clear: bid levels at or above, ask levels at or
// below the given price are removed. Zero clears the whole side.
func (d *Depth) ClearDepth(side types.Side, clearUpTo float64) {
	switch side {
	case types.SideBuy:
		if clearUpTo == 0 {
			d.bidDepth = make(map[int64]float64)
			d.bestBidTick = InvalidMin
			d.lowBidTick = InvalidMax
			return
		}
		upTo := int64(math.Round(clearUpTo / d.tickSize))
		for tick := range d.bidDepth {
			if tick >= upTo {
				delete(d.bidDepth, tick)
			}
		}
		if d.bestBidTick >= upTo {
			d.bestBidTick = d.scanBidDown(upTo - 1)
			if d.bestBidTick == InvalidMin {
				d.lowBidTick = InvalidMax
			}
		}
	case types.SideSell:
		if clearUpTo == 0 {
			d.askDepth = make(map[int64]float64)
			d.bestAskTick = InvalidMax
			d.highAskTick = InvalidMin
			return
		}
		upTo := int64(math.Round(clearUpTo / d.tickSize))
		for tick := range d.askDepth {
			if tick <= upTo {
				delete(d.askDepth, tick)
			}
		}
		if d.bestAskTick <= upTo {
			d.bestAskTick = d.scanAskUp(upTo + 1)
			if d.bestAskTick == InvalidMax {
				d.highAskTick = InvalidMin
			}
		}
	default:
		d.bidDepth = make(map[int64]float64)
		d.askDepth = make(map[int64]float64)
		d.bestBidTick = InvalidMin
		d.bestAskTick = InvalidMax
		d.lowBidTick = InvalidMax
		d.highAskTick = InvalidMin
	}
}

func (d *Depth) scanBidDown(from int64) int64 {
	if d.lowBidTick == InvalidMax {
		return InvalidMin
	}
	for tick := from; tick >= d.lowBidTick; tick-- {
		if qty, ok := d.bidDepth[tick]; ok && qty >= d.lotSize {
			return tick
		}
	}
	return InvalidMin
}

func (d *Depth) scanAskUp(from int64) int64 {
	if d.highAskTick == InvalidMin {
		return InvalidMax
	}
	for tick := from; tick <= d.highAskTick; tick++ {
		if qty, ok := d.askDepth[tick]; ok && qty >= d.lotSize {
			return tick
		}
	}
	return InvalidMax
}
