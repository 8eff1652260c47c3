package strategy

import (
	"math"

	"hftsim/internal/backtest"
	"hftsim/internal/types"
)

// Grid quotes a ladder of post-only orders on both sides of a
// position-skewed fair price. Orders whose price falls off the ladder
// are cancelled and replaced on the next step.
type Grid struct {
	RelativeHalfSpread   float64 // in fractions of the mid price
	RelativeGridInterval float64
	GridNum              int
	MinGridStep          float64
	Skew                 float64
	OrderQty             float64
	MaxPosition          float64

	nextOrderID types.OrderId
}

// NewGrid creates a grid strategy.
func NewGrid(relHalfSpread, relGridInterval float64, gridNum int, minGridStep, skew, orderQty, maxPosition float64) *Grid {
	return &Grid{
		RelativeHalfSpread:   relHalfSpread,
		RelativeGridInterval: relGridInterval,
		GridNum:              gridNum,
		MinGridStep:          minGridStep,
		Skew:                 skew,
		OrderQty:             orderQty,
		MaxPosition:          maxPosition,
	}
}

// OnElapse requotes the grid around the current mid.
func (g *Grid) OnElapse(bt *backtest.Backtest) error {
	d := bt.Depth()
	bestBid := d.BestBid()
	bestAsk := d.BestAsk()
	if math.IsNaN(bestBid) || math.IsNaN(bestAsk) {
		return nil
	}
	mid := (bestBid + bestAsk) / 2

	gridInterval := math.Max(roundStep(mid*g.RelativeGridInterval, g.MinGridStep), g.MinGridStep)
	halfSpread := math.Max(roundStep(mid*g.RelativeHalfSpread, g.MinGridStep), g.MinGridStep)

	position := bt.Position()
	fair := mid - g.Skew*gridInterval*(position/g.OrderQty)

	bidPrice := math.Min(fair-halfSpread, bestBid)
	askPrice := math.Max(fair+halfSpread, bestAsk)
	bidPrice = math.Floor(bidPrice/gridInterval) * gridInterval
	askPrice = math.Ceil(askPrice/gridInterval) * gridInterval

	wantBids := make(map[int64]float64, g.GridNum)
	wantAsks := make(map[int64]float64, g.GridNum)
	tickSize := d.TickSize()
	if position < g.MaxPosition {
		px := bidPrice
		for i := 0; i < g.GridNum; i++ {
			wantBids[int64(math.Round(px/tickSize))] = px
			px -= gridInterval
		}
	}
	if position > -g.MaxPosition {
		px := askPrice
		for i := 0; i < g.GridNum; i++ {
			wantAsks[int64(math.Round(px/tickSize))] = px
			px += gridInterval
		}
	}

	// Cancel live orders that fell off the ladder, and mark ladder
	// levels that are already quoted.
	for id, order := range bt.Orders() {
		if !order.Active() {
			continue
		}
		want := wantBids
		if order.Side == types.SideSell {
			want = wantAsks
		}
		if _, ok := want[order.PriceTick]; ok {
			delete(want, order.PriceTick)
			continue
		}
		if order.Req == types.StatusNone {
			if err := bt.Cancel(id); err != nil {
				return err
			}
		}
	}

	for _, px := range wantBids {
		g.nextOrderID++
		if err := bt.SubmitBuyOrder(g.nextOrderID, px, g.OrderQty, types.TimeInForceGTX, types.OrdTypeLimit); err != nil {
			return err
		}
	}
	for _, px := range wantAsks {
		g.nextOrderID++
		if err := bt.SubmitSellOrder(g.nextOrderID, px, g.OrderQty, types.TimeInForceGTX, types.OrdTypeLimit); err != nil {
			return err
		}
	}

	bt.ClearInactiveOrders()
	return nil
}

func roundStep(v, step float64) float64 {
	return math.Round(v/step) * step
}
