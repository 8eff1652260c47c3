package feed

import (
	"math/rand"

	"hftsim/internal/types"
)

// GeneratorConfig shapes the synthetic feed.
type GeneratorConfig struct {
	BasePrice   float64
	TickSize    float64
	Qty         float64
	SpreadTicks int64

	StartTs     int64
	StepNs      int64
	FeedLatency int64

	Seed int64
}

// Generator produces a deterministic synthetic book-and-trade event
// stream: a seeded random walk of the mid price, with best bid/ask
// updates and an aggressor trade on every step. Exchange timestamps
// advance by StepNs; local timestamps trail by FeedLatency.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand

	midTick int64
	ts      int64
}

// NewGenerator creates a generator with the given config.
func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.SpreadTicks < 1 {
		cfg.SpreadTicks = 1
	}
	if cfg.Qty <= 0 {
		cfg.Qty = 1
	}
	return &Generator{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		midTick: int64(cfg.BasePrice / cfg.TickSize),
		ts:      cfg.StartTs,
	}
}

// Next produces the events of one step, sorted by exchange timestamp.
func (g *Generator) Next() []types.Event {
	dir := int64(1)
	side := types.SideBuy
	if g.rng.Intn(2) == 0 {
		dir = -1
		side = types.SideSell
	}
	g.midTick += dir
	g.ts += g.cfg.StepNs

	bidPx := float64(g.midTick-g.cfg.SpreadTicks) * g.cfg.TickSize
	askPx := float64(g.midTick+g.cfg.SpreadTicks) * g.cfg.TickSize
	tradePx := float64(g.midTick) * g.cfg.TickSize

	tradeFlag := types.ExchBuyTradeEvent | types.LocalBuyTradeEvent
	if side == types.SideSell {
		tradeFlag = types.ExchSellTradeEvent | types.LocalSellTradeEvent
	}

	return []types.Event{
		{
			Ev:      types.ExchBidDepthEvent | types.LocalBidDepthEvent,
			ExchTs:  g.ts,
			LocalTs: g.ts + g.cfg.FeedLatency,
			Px:      bidPx,
			Qty:     g.cfg.Qty,
		},
		{
			Ev:      types.ExchAskDepthEvent | types.LocalAskDepthEvent,
			ExchTs:  g.ts,
			LocalTs: g.ts + g.cfg.FeedLatency,
			Px:      askPx,
			Qty:     g.cfg.Qty,
		},
		{
			Ev:      tradeFlag,
			ExchTs:  g.ts + 1,
			LocalTs: g.ts + 1 + g.cfg.FeedLatency,
			Px:      tradePx,
			Qty:     g.cfg.Qty,
		},
	}
}

// Generate produces a feed of the given number of steps.
func (g *Generator) Generate(steps int) []types.Event {
	events := make([]types.Event, 0, steps*3)
	for i := 0; i < steps; i++ {
		events = append(events, g.Next()...)
	}
	return events
}
