package strategy

import (
	"testing"

	"hftsim/internal/backtest"
	"hftsim/internal/backtest/models"
	"hftsim/internal/types"
)

func newGridBacktest() *backtest.Backtest {
	events := []types.Event{
		{Ev: types.ExchBidDepthEvent | types.LocalBidDepthEvent, ExchTs: 1000, LocalTs: 1005, Px: 99.9, Qty: 1.0},
		{Ev: types.ExchAskDepthEvent | types.LocalAskDepthEvent, ExchTs: 1001, LocalTs: 1006, Px: 100.1, Qty: 1.0},
		{Ev: types.ExchBidDepthEvent | types.LocalBidDepthEvent, ExchTs: 100_000, LocalTs: 100_005, Px: 99.9, Qty: 1.0},
	}
	return backtest.New(backtest.Config{
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

func TestGridQuotesBothSides(t *testing.T) {
	bt := newGridBacktest()
	if !bt.GoTo(1500) {
		t.Fatalf("expected book events processed")
	}

	g := NewGrid(0.001, 0.0005, 5, 0.1, 0.0001, 0.01, 0.05)
	if err := g.OnElapse(bt); err != nil {
		t.Fatalf("OnElapse: %v", err)
	}

	var buys, sells int
	for _, order := range bt.Orders() {
		switch order.Side {
		case types.SideBuy:
			buys++
		case types.SideSell:
			sells++
		}
	}
	if buys != 5 || sells != 5 {
		t.Fatalf("expected 5 quotes per side, got buys=%d sells=%d", buys, sells)
	}
}

func TestGridKeepsExistingQuotes(t *testing.T) {
	bt := newGridBacktest()
	if !bt.GoTo(1500) {
		t.Fatalf("expected book events processed")
	}

	g := NewGrid(0.001, 0.0005, 5, 0.1, 0.0001, 0.01, 0.05)
	if err := g.OnElapse(bt); err != nil {
		t.Fatalf("OnElapse: %v", err)
	}
	if !bt.GoTo(2000) {
		t.Fatalf("expected order responses processed")
	}

	// Same book, same grid: the second pass must not duplicate quotes.
	if err := g.OnElapse(bt); err != nil {
		t.Fatalf("OnElapse: %v", err)
	}
	if got := len(bt.Orders()); got != 10 {
		t.Fatalf("expected stable 10 quotes, got %d", got)
	}
}
