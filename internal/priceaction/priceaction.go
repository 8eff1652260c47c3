package priceaction

import (
	"math"
	"sort"

	"hftsim/internal/types"
)

const (
	// tradeRetention bounds the rolling price->qty trade map to one day.
	tradeRetention = 24 * 60 * 60 * 1_000_000_000

	// defaultKeepBuckets bounds closed KLine/tick-flow history per
	// interval; older buckets are pruned at bucket close.
	defaultKeepBuckets = 512

	defaultImbalanceTicks = 30
)

type tradeAcc struct {
	Qty       float64
	Timestamp int64
}

// PriceQty is one entry of the top-trades query.
type PriceQty struct {
	Price int64
	Qty   float64
}

// Engine maintains the derived price-action model: per-interval KLine
// buckets with order-flow stats, a bounded buy/sell imbalance tracker,
// and the swing machine on the base (shortest, first) interval.
//
// It is exclusively owned by the processor feeding it events; strategy
// queries return views valid only for the current event-processing step.
type Engine struct {
	intervals  []int64
	emaPeriods []int64

	kmaps        map[int64]map[int64]*KLine
	lastOpenTime map[int64]int64
	tickFlows    map[int64]map[int64]*TickFlows

	priceTickQtys map[int64]tradeAcc

	swings    *Swings
	imbalance *Imbalance

	// Running accumulator coalescing consecutive trades at the same
	// price tick and side into one imbalance push.
	lastTick     int64
	lastTickQty  float64
	lastSide     types.Side
	lastTickTime int64

	keepBuckets int
}

// NewEngine creates an engine for the given intervals (nanoseconds,
// shortest first — the first interval drives the swing machine) and EMA
// periods.
func NewEngine(intervals, emaPeriods []int64) *Engine {
	e := &Engine{
		intervals:     intervals,
		emaPeriods:    emaPeriods,
		kmaps:         make(map[int64]map[int64]*KLine, len(intervals)),
		lastOpenTime:  make(map[int64]int64, len(intervals)),
		tickFlows:     make(map[int64]map[int64]*TickFlows, len(intervals)),
		priceTickQtys: make(map[int64]tradeAcc),
		swings:        NewSwings(),
		imbalance:     NewImbalance(defaultImbalanceTicks),
		keepBuckets:   defaultKeepBuckets,
	}
	for _, interval := range intervals {
		e.kmaps[interval] = make(map[int64]*KLine)
		e.tickFlows[interval] = make(map[int64]*TickFlows)
		e.lastOpenTime[interval] = 0
	}
	return e
}

// Intervals returns the configured intervals.
func (e *Engine) Intervals() []int64 { return e.intervals }

// Imbalance returns the rolling buy/sell imbalance tracker.
func (e *Engine) Imbalance() *Imbalance { return e.imbalance }

// Swings returns the swing machine.
func (e *Engine) Swings() *Swings { return e.swings }

// OrderFlow feeds one trade into the model. The price is converted to an
// integer tick with round(px/tickSize); consecutive trades at the same
// tick and side are coalesced into the running accumulator and pushed
// into the imbalance tracker only when the tick or side changes. Every
// configured interval is then advanced independently.
func (e *Engine) OrderFlow(px, tickSize, qty float64, timestamp int64, side types.Side) {
	tick := int64(math.Round(px / tickSize))

	if e.lastTick == tick && e.lastSide == side {
		e.lastTickQty += qty
	} else {
		e.imbalance.Push(e.lastTick, e.lastTickQty, e.lastSide)
		e.lastTick = tick
		e.lastSide = side
		e.lastTickQty = qty
		e.lastTickTime = timestamp
	}

	for _, interval := range e.intervals {
		e.updateKLine(interval, tick, qty, timestamp, side)
	}

	e.recordTrade(px, qty, timestamp)
}

// updateKLine extends the open bucket, or closes it and opens the next
// one when the trade falls past the close time. Closing finalizes the
// bucket's POC/rates, advances the EMAs with the closed flag, prunes old
// state, and drives the swing machine on the base interval.
func (e *Engine) updateKLine(interval, tick int64, qty float64, timestamp int64, side types.Side) {
	kmap := e.kmaps[interval]
	flows := e.tickFlows[interval]
	openTime := e.lastOpenTime[interval]

	if openTime == 0 {
		k := NewKLine(tick, qty, timestamp, interval, side, len(e.emaPeriods))
		e.lastOpenTime[interval] = k.OpenTime
		kmap[k.OpenTime] = k
		flows[k.OpenTime] = NewTickFlows(tick, qty, side)
		e.updateEmas(interval, tick, k.OpenTime)
		return
	}

	last := kmap[openTime]
	if last.CloseTime < timestamp {
		pocTick, pocQty, sellRate, buyRate := flows[last.OpenTime].PocSellRateBuyRate()
		last.PocPrice = pocTick
		last.PocQty = pocQty
		last.TopBuyRate = buyRate
		last.TopSellRate = sellRate

		k := NewKLine(tick, qty, timestamp, interval, side, len(e.emaPeriods))
		e.lastOpenTime[interval] = k.OpenTime
		kmap[k.OpenTime] = k
		flows[k.OpenTime] = NewTickFlows(tick, qty, side)

		e.updateEmas(interval, tick, k.OpenTime)
		e.removeOldTrades(timestamp, tradeRetention)
		e.pruneBuckets(interval, k.OpenTime)

		if interval == e.intervals[0] {
			e.swingOnClose(interval)
		}
		return
	}

	last.Update(tick, qty, timestamp, side)
	flows[last.OpenTime].Trade(tick, qty, side)
	e.updateEmas(interval, tick, last.OpenTime)
}

// updateEmas recomputes the open bucket's EMA vector from the previous
// bucket's values. The very first bucket of a series (or the bucket
// after a feed gap) seeds every EMA with the current tick.
func (e *Engine) updateEmas(interval, tick, openTime int64) {
	kmap := e.kmaps[interval]
	k := kmap[openTime]
	prev, ok := kmap[openTime-interval]
	for i, period := range e.emaPeriods {
		if !ok {
			k.Emas[i] = tick
			continue
		}
		lastEma := prev.Emas[i]
		alpha := 2.0 / (float64(period) + 1.0)
		k.Emas[i] = int64(math.Round(float64(tick-lastEma)*alpha + float64(lastEma)))
	}
}

// swingOnClose advances the swing machine with the just-closed bar of
// the base interval. It needs at least two closed bars before seeding.
func (e *Engine) swingOnClose(interval int64) {
	kmap := e.kmaps[interval]
	if len(kmap) < 3 {
		return
	}
	k, ok := kmap[e.lastOpenTime[interval]-interval]
	if !ok {
		// Feed gap: the just-closed bar is not adjacent to the cursor.
		return
	}
	e.swings.OnBarClose(k)
}

// recordTrade accumulates quantity per floor(price) for the top-trades
// query, stamping the last trade time for retention pruning.
func (e *Engine) recordTrade(px, qty float64, timestamp int64) {
	floorPrice := int64(math.Floor(px))
	acc := e.priceTickQtys[floorPrice]
	acc.Qty += qty
	acc.Timestamp = timestamp
	e.priceTickQtys[floorPrice] = acc
}

// removeOldTrades prunes the rolling trade map. Called at bucket close,
// not per trade.
func (e *Engine) removeOldTrades(now, retention int64) {
	for price, acc := range e.priceTickQtys {
		if now-acc.Timestamp > retention {
			delete(e.priceTickQtys, price)
		}
	}
}

// pruneBuckets drops closed buckets older than the keep window.
func (e *Engine) pruneBuckets(interval, newOpenTime int64) {
	cutoff := newOpenTime - int64(e.keepBuckets)*interval
	kmap := e.kmaps[interval]
	if len(kmap) <= e.keepBuckets {
		return
	}
	flows := e.tickFlows[interval]
	for openTime := range kmap {
		if openTime < cutoff {
			delete(kmap, openTime)
			delete(flows, openTime)
		}
	}
}

// TopTrades returns up to n price levels ordered by accumulated
// quantity, most recent first among equals.
func (e *Engine) TopTrades(n int) []PriceQty {
	type row struct {
		price int64
		acc   tradeAcc
	}
	rows := make([]row, 0, len(e.priceTickQtys))
	for price, acc := range e.priceTickQtys {
		rows = append(rows, row{price, acc})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].acc.Qty != rows[j].acc.Qty {
			return rows[i].acc.Qty > rows[j].acc.Qty
		}
		return rows[i].acc.Timestamp > rows[j].acc.Timestamp
	})
	if n > len(rows) {
		n = len(rows)
	}
	out := make([]PriceQty, 0, n)
	for _, r := range rows[:n] {
		out = append(out, PriceQty{Price: r.price, Qty: r.acc.Qty})
	}
	return out
}

// Kmaps returns up to n most recent buckets for an interval, keyed by
// open time, along with the open bucket's cursor. Buckets are collected
// by walking back fixed interval steps from the cursor; a gap due to
// feed silence stays absent rather than being synthesized, so callers
// must handle missing keys.
func (e *Engine) Kmaps(interval int64, n int) (map[int64]*KLine, int64) {
	kmap := e.kmaps[interval]
	out := make(map[int64]*KLine)

	if len(kmap) < n {
		n = len(kmap)
	}
	if n == 0 {
		return out, 0
	}
	openTime := e.lastOpenTime[interval]
	for i := 0; i < n; i++ {
		key := openTime - interval*int64(i)
		if k, ok := kmap[key]; ok {
			out[key] = k
		}
	}
	return out, openTime
}

// SwingPoints interleaves the trailing n entries of the high and low
// sequences in time order. Both sequences must be non-empty; otherwise
// the result is empty.
func (e *Engine) SwingPoints(n int) []SwingPoint {
	highs := e.swings.Highs()
	lows := e.swings.Lows()
	if len(highs) == 0 || len(lows) == 0 {
		return nil
	}

	count := min(len(highs), len(lows))
	if count > n {
		count = n
	}
	highsFirst := highs[len(highs)-1].OpenTime <= lows[len(lows)-1].OpenTime

	out := make([]SwingPoint, 0, 2*count)
	for i := count; i >= 1; i-- {
		if highsFirst {
			out = append(out, highs[len(highs)-i])
			out = append(out, lows[len(lows)-i])
		} else {
			out = append(out, lows[len(lows)-i])
			out = append(out, highs[len(highs)-i])
		}
	}
	return out
}

// LastAccTrades returns the in-flight coalesced trade accumulator:
// tick, quantity, timestamp and side of the current run.
func (e *Engine) LastAccTrades() (int64, float64, int64, types.Side) {
	return e.lastTick, e.lastTickQty, e.lastTickTime, e.lastSide
}
