package priceaction

import (
	"hftsim/internal/types"
)

// KLine accumulates one fixed-duration candle in integer tick units.
// The bucket covers [OpenTime, CloseTime] with
// CloseTime = floor(t/interval)*interval + interval - 1, so a trade
// stamped exactly at CloseTime still belongs to this bucket.
//
// Exactly one KLine per interval is open (mutable) at any time; closed
// buckets are immutable history.
type KLine struct {
	OpenTick  int64
	HighTick  int64
	LowTick   int64
	CloseTick int64

	BuyVolume  float64
	SellVolume float64

	OpenTime  int64
	CloseTime int64

	// Order flow, finalized at bucket close.
	PocPrice    int64
	PocQty      float64
	TopBuyRate  float64
	TopSellRate float64

	// Delta is recomputed from the volume totals on every update rather
	// than incremented, keeping float drift bounded by one subtraction.
	Delta    float64
	MaxDelta float64
	MinDelta float64

	// Emas holds one intrabar EMA value per configured period. They
	// evolve with every trade while the bucket is open and freeze when
	// it closes.
	Emas []int64
}

// NewKLine opens the bucket containing the given timestamp, seeded with
// the first trade.
func NewKLine(tick int64, qty float64, timestamp, interval int64, side types.Side, emaCount int) *KLine {
	k := &KLine{
		OpenTick:  tick,
		HighTick:  tick,
		LowTick:   tick,
		CloseTick: tick,
		OpenTime:  timestamp / interval * interval,
		CloseTime: timestamp/interval*interval + interval - 1,
		Emas:      make([]int64, emaCount),
	}
	if side == types.SideBuy {
		k.BuyVolume = qty
		k.Delta = qty
		k.MaxDelta = qty
	} else {
		k.SellVolume = qty
		k.Delta = -qty
		k.MinDelta = -qty
	}
	return k
}

// Update folds a trade into the open bucket. Trades outside
// [OpenTime, CloseTime] are ignored; detecting rollover and opening the
// next bucket is the caller's job.
func (k *KLine) Update(tick int64, qty float64, timestamp int64, side types.Side) {
	if timestamp < k.OpenTime || timestamp > k.CloseTime {
		return
	}
	k.HighTick = max(k.HighTick, tick)
	k.LowTick = min(k.LowTick, tick)
	k.CloseTick = tick
	if side == types.SideBuy {
		k.BuyVolume += qty
	} else {
		k.SellVolume += qty
	}
	k.Delta = k.BuyVolume - k.SellVolume
	k.MaxDelta = max(k.MaxDelta, k.Delta)
	k.MinDelta = min(k.MinDelta, k.Delta)
}
