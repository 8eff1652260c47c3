package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"hftsim/internal/backtest/models"
	"hftsim/internal/types"
)

func newTestBacktest(events []types.Event) *Backtest {
	return New(Config{
		TickSize:      0.1,
		LotSize:       0.001,
		Asset:         models.NewLinearAsset(1.0),
		Fees:          models.NewTradingValueFeeModel(models.NewCommonFees(-0.00005, 0.0007)),
		OrderLatency:  models.NewConstantLatency(10, 10),
		Intervals:     []int64{5 * 60 * 1_000_000_000},
		EmaPeriods:    []int64{6, 12, 24},
		LastTradesCap: 16,
	}, events)
}

func bookEvents() []types.Event {
	return []types.Event{
		{Ev: types.ExchBidDepthEvent | types.LocalBidDepthEvent, ExchTs: 1000, LocalTs: 1005, Px: 99.9, Qty: 1.0},
		{Ev: types.ExchAskDepthEvent | types.LocalAskDepthEvent, ExchTs: 1001, LocalTs: 1006, Px: 100.1, Qty: 1.0},
		{Ev: types.ExchSellTradeEvent | types.LocalSellTradeEvent, ExchTs: 2000, LocalTs: 2005, Px: 99.8, Qty: 0.5},
		{Ev: types.ExchBidDepthEvent | types.LocalBidDepthEvent, ExchTs: 3000, LocalTs: 3005, Px: 99.8, Qty: 1.0},
	}
}

func TestBacktestDepthSync(t *testing.T) {
	bt := newTestBacktest(bookEvents())

	require.True(t, bt.GoTo(1500))
	require.Equal(t, int64(1500), bt.CurrentTimestamp())
	require.Equal(t, int64(999), bt.Depth().BestBidTick())
	require.Equal(t, int64(1001), bt.Depth().BestAskTick())
}

func TestBacktestMakerFillRoundTrip(t *testing.T) {
	bt := newTestBacktest(bookEvents())
	require.True(t, bt.GoTo(1500))

	// Post-only buy at the best bid. Request delivery at 1510, response
	// at 1520, fill when the sell trade at 99.8 crosses it at 2000.
	require.NoError(t, bt.SubmitBuyOrder(1, 99.9, 0.5, types.TimeInForceGTX, types.OrdTypeLimit))
	require.True(t, bt.GoTo(2500))

	order := bt.Orders()[1]
	require.Equal(t, types.StatusFilled, order.Status)
	require.True(t, order.Maker)
	require.Equal(t, int64(999), order.ExecPriceTick)

	v := bt.StateValues()
	require.InDelta(t, 0.5, v.Position, 1e-9)
	require.InDelta(t, -49.95, v.Balance, 1e-9)
	require.InDelta(t, -0.0024975, v.Fee, 1e-9)
	require.InDelta(t, 0.5, v.TradingVolume, 1e-9)
	require.Equal(t, int64(1), v.NumTrades)

	bt.ClearInactiveOrders()
	require.Empty(t, bt.Orders())

	// The local trade stream drove the price-action model too.
	tick, qty, _, side := bt.PriceAction().LastAccTrades()
	require.Equal(t, int64(998), tick)
	require.Equal(t, 0.5, qty)
	require.Equal(t, types.SideSell, side)
}

func TestBacktestGTXExpiresWhenCrossing(t *testing.T) {
	bt := newTestBacktest(bookEvents())
	require.True(t, bt.GoTo(1500))

	// A post-only buy through the ask cannot rest.
	require.NoError(t, bt.SubmitBuyOrder(1, 100.2, 0.5, types.TimeInForceGTX, types.OrdTypeLimit))
	require.True(t, bt.GoTo(1600))

	require.Equal(t, types.StatusExpired, bt.Orders()[1].Status)
}

func TestBacktestMarketOrderTakes(t *testing.T) {
	bt := newTestBacktest(bookEvents())
	require.True(t, bt.GoTo(1500))

	require.NoError(t, bt.SubmitBuyOrder(1, 0, 0.2, types.TimeInForceGTC, types.OrdTypeMarket))
	require.True(t, bt.GoTo(1600))

	order := bt.Orders()[1]
	require.Equal(t, types.StatusFilled, order.Status)
	require.False(t, order.Maker)
	// Taker execution at the best ask.
	require.Equal(t, int64(1001), order.ExecPriceTick)

	v := bt.StateValues()
	require.InDelta(t, 0.2, v.Position, 1e-9)
	require.InDelta(t, 0.0007*100.1*0.2, v.Fee, 1e-9)
}

func TestBacktestCancelRoundTrip(t *testing.T) {
	bt := newTestBacktest(bookEvents())
	require.True(t, bt.GoTo(1500))

	require.NoError(t, bt.SubmitBuyOrder(1, 99.0, 0.5, types.TimeInForceGTC, types.OrdTypeLimit))
	require.True(t, bt.GoTo(1600))
	require.Equal(t, types.StatusNew, bt.Orders()[1].Status)

	require.NoError(t, bt.Cancel(1))
	require.True(t, bt.GoTo(1700))
	require.Equal(t, types.StatusCanceled, bt.Orders()[1].Status)
	require.InDelta(t, 0.0, bt.Position(), 1e-9)
}

func TestBacktestExhaustsFeed(t *testing.T) {
	bt := newTestBacktest(bookEvents())
	require.False(t, bt.GoTo(math.MaxInt64>>1))
}

func TestBacktestOrderLatencyObserved(t *testing.T) {
	bt := newTestBacktest(bookEvents())
	require.True(t, bt.GoTo(1500))

	require.NoError(t, bt.SubmitBuyOrder(1, 99.0, 0.5, types.TimeInForceGTC, types.OrdTypeLimit))
	require.True(t, bt.GoTo(1600))

	req, exch, resp, ok := bt.OrderLatency()
	require.True(t, ok)
	require.Equal(t, int64(1500), req)
	require.Equal(t, int64(1510), exch)
	require.Equal(t, int64(1520), resp)
}
