package priceaction

import (
	"testing"

	"hftsim/internal/types"
)

func newTestEngine() *Engine {
	return NewEngine([]int64{testInterval}, []int64{6, 12, 24})
}

func TestOrderFlowCoalescesSameTickAndSide(t *testing.T) {
	e := newTestEngine()
	e.OrderFlow(100.0, 0.1, 1.0, 10, types.SideBuy)
	e.OrderFlow(100.0, 0.1, 2.0, 20, types.SideBuy)

	tick, qty, ts, side := e.LastAccTrades()
	if tick != 1000 || qty != 3.0 || ts != 10 || side != types.SideBuy {
		t.Fatalf("expected coalesced run {1000,3.0,10,buy}, got {%d,%v,%d,%v}", tick, qty, ts, side)
	}
	// Nothing pushed yet: the run is still open.
	if e.Imbalance().Len() != 0 {
		t.Fatalf("expected no imbalance push while run open, got %d", e.Imbalance().Len())
	}
}

func TestOrderFlowPushesRunOnTickChange(t *testing.T) {
	e := newTestEngine()
	e.OrderFlow(100.0, 0.1, 1.0, 10, types.SideBuy)
	e.OrderFlow(100.0, 0.1, 2.0, 20, types.SideBuy)
	e.OrderFlow(100.1, 0.1, 0.5, 30, types.SideBuy)

	q, ok := e.Imbalance().QtyAt(1000)
	if !ok || q.Buy != 3.0 {
		t.Fatalf("expected completed run pushed with buy=3.0, got %+v ok=%v", q, ok)
	}
	tick, qty, _, _ := e.LastAccTrades()
	if tick != 1001 || qty != 0.5 {
		t.Fatalf("expected new run {1001,0.5}, got {%d,%v}", tick, qty)
	}
}

func TestOrderFlowPushesRunOnSideChange(t *testing.T) {
	e := newTestEngine()
	e.OrderFlow(100.0, 0.1, 1.0, 10, types.SideBuy)
	e.OrderFlow(100.0, 0.1, 2.0, 20, types.SideSell)

	q, ok := e.Imbalance().QtyAt(1000)
	if !ok || q.Buy != 1.0 || q.Sell != 0 {
		t.Fatalf("expected buy run pushed on side change, got %+v ok=%v", q, ok)
	}
}

func TestUpdateKLineRollover(t *testing.T) {
	e := newTestEngine()
	e.OrderFlow(100.0, 0.1, 1.0, 10, types.SideBuy)
	e.OrderFlow(100.5, 0.1, 1.0, testInterval-1, types.SideBuy)
	// Crosses into the second bucket.
	e.OrderFlow(101.0, 0.1, 2.0, testInterval+5, types.SideSell)

	kmap, cursor := e.Kmaps(testInterval, 10)
	if cursor != testInterval {
		t.Fatalf("expected cursor at second bucket, got %d", cursor)
	}
	if len(kmap) != 2 {
		t.Fatalf("expected two buckets, got %d", len(kmap))
	}

	first := kmap[0]
	if first.CloseTick != 1005 || first.BuyVolume != 2.0 {
		t.Fatalf("expected first bucket close=1005 buy=2.0, got %+v", first)
	}
	second := kmap[testInterval]
	if second.OpenTick != 1010 || second.SellVolume != 2.0 || second.Delta != -2.0 {
		t.Fatalf("expected second bucket seeded from sell, got %+v", second)
	}
}

func TestEmaSeedsOnFirstBucket(t *testing.T) {
	e := newTestEngine()
	e.OrderFlow(100.0, 0.1, 1.0, 10, types.SideBuy)

	kmap, cursor := e.Kmaps(testInterval, 1)
	k := kmap[cursor]
	for i, ema := range k.Emas {
		if ema != 1000 {
			t.Fatalf("expected ema[%d] seeded to 1000, got %d", i, ema)
		}
	}
}

func TestEmaAdvancesFromPreviousBucket(t *testing.T) {
	e := newTestEngine()
	e.OrderFlow(100.0, 0.1, 1.0, 10, types.SideBuy)
	e.OrderFlow(107.0, 0.1, 1.0, testInterval+5, types.SideBuy)

	kmap, cursor := e.Kmaps(testInterval, 1)
	k := kmap[cursor]
	// period 6: round((1070-1000)*2/7 + 1000) = 1020
	if k.Emas[0] != 1020 {
		t.Fatalf("expected ema[0]=1020, got %d", k.Emas[0])
	}
	// period 12: round(70*2/13 + 1000) = 1011
	if k.Emas[1] != 1011 {
		t.Fatalf("expected ema[1]=1011, got %d", k.Emas[1])
	}
	// period 24: round(70*2/25 + 1000) = 1006
	if k.Emas[2] != 1006 {
		t.Fatalf("expected ema[2]=1006, got %d", k.Emas[2])
	}
}

func TestTopTrades(t *testing.T) {
	e := newTestEngine()
	e.OrderFlow(100.4, 0.1, 1.0, 10, types.SideBuy)
	e.OrderFlow(100.6, 0.1, 5.0, 20, types.SideBuy)
	e.OrderFlow(102.0, 0.1, 3.0, 30, types.SideSell)

	top := e.TopTrades(2)
	if len(top) != 2 {
		t.Fatalf("expected two rows, got %d", len(top))
	}
	// Quantities accumulate per floor(price).
	if top[0].Price != 100 || top[0].Qty != 6.0 {
		t.Fatalf("expected top row {100,6.0}, got %+v", top[0])
	}
	if top[1].Price != 102 || top[1].Qty != 3.0 {
		t.Fatalf("expected second row {102,3.0}, got %+v", top[1])
	}
}

func TestKmapsSkipsMissingBuckets(t *testing.T) {
	e := newTestEngine()
	e.OrderFlow(100.0, 0.1, 1.0, 10, types.SideBuy)
	// Feed silence spanning two whole buckets.
	e.OrderFlow(101.0, 0.1, 1.0, 3*testInterval+10, types.SideBuy)

	kmap, cursor := e.Kmaps(testInterval, 4)
	if cursor != 3*testInterval {
		t.Fatalf("expected cursor %d, got %d", int64(3*testInterval), cursor)
	}
	if len(kmap) != 1 {
		t.Fatalf("expected only the open bucket within reach, got %d", len(kmap))
	}
	if _, ok := kmap[0]; ok {
		t.Fatalf("expected first bucket out of the walk-back window")
	}
}

func TestSwingPointsEmptyUntilBothSides(t *testing.T) {
	e := newTestEngine()
	if pts := e.SwingPoints(2); pts != nil {
		t.Fatalf("expected nil swing points on empty engine, got %v", pts)
	}
}

func TestSwingPointsInterleavesFromEngineFeed(t *testing.T) {
	e := newTestEngine()
	step := int64(testInterval)

	// An impulsive rise over five buckets, then a collapse. The trades
	// inside each bucket set open/high/low/close; the final bars break
	// the extremum bar's low without violating the anchor low.
	feedBar := func(openTime, lowPx100, highPx100 int64, rising bool) {
		lo := float64(lowPx100) / 100
		hi := float64(highPx100) / 100
		if rising {
			e.OrderFlow(lo, 0.01, 1.0, openTime+1, types.SideBuy)
			e.OrderFlow(hi, 0.01, 1.0, openTime+step/2, types.SideBuy)
			e.OrderFlow(hi-0.01, 0.01, 1.0, openTime+step-1, types.SideBuy)
		} else {
			e.OrderFlow(hi, 0.01, 1.0, openTime+1, types.SideSell)
			e.OrderFlow(lo, 0.01, 1.0, openTime+step/2, types.SideSell)
			e.OrderFlow(lo+0.01, 0.01, 1.0, openTime+step-1, types.SideSell)
		}
	}

	// Rising bars; the swing machine sees each bar once the next one
	// closes, and needs three buckets of history before seeding.
	feedBar(0*step, 10000, 10100, true)
	feedBar(1*step, 10080, 10200, true)
	feedBar(2*step, 10180, 10300, true)
	feedBar(3*step, 10280, 10400, true)
	feedBar(4*step, 10380, 10500, true)
	feedBar(5*step, 10480, 10600, true)
	// Collapse: high below the extremum bar's low, low above the anchor.
	feedBar(6*step, 10150, 10300, false)
	feedBar(7*step, 10120, 10250, false)

	highs := e.Swings().Highs()
	lows := e.Swings().Lows()
	if len(highs) != 1 || len(lows) != 1 {
		t.Fatalf("expected one high and one low, got highs=%v lows=%v", highs, lows)
	}

	pts := e.SwingPoints(2)
	if len(pts) != 2 {
		t.Fatalf("expected two interleaved points, got %v", pts)
	}
	// The anchor low precedes the confirmed high.
	if pts[0].Tick >= pts[1].Tick {
		t.Fatalf("expected low before high, got %v", pts)
	}
	if pts[0].OpenTime > pts[1].OpenTime {
		t.Fatalf("expected time order, got %v", pts)
	}
}
