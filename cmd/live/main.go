package main

import (
	"context"
	"flag"
	"time"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"hftsim/internal/feed"
	"hftsim/internal/ops"
	"hftsim/internal/priceaction"
	"hftsim/internal/types"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		logs.Fatalf("load config, err: %+v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		logs.Fatalf("run live observer, err: %+v", err)
	}
}

func run(ctx context.Context, cfg *ops.Config) error {
	engine := priceaction.NewEngine(cfg.PriceAction.Intervals, cfg.PriceAction.EmaPeriods)

	binance := feed.NewBinance(ctx)
	if err := binance.StartWebsocket(ctx); err != nil {
		return err
	}
	defer binance.Close()

	if err := binance.SubscribeTrade(ctx, cfg.Symbol); err != nil {
		return err
	}
	logs.Infof("subscribed trade stream: symbol=%s", cfg.Symbol)

	trades := make(chan types.Event, 1024)
	unsubscribe := binance.ObserveTrade(ctx, func(ev types.Event) {
		select {
		case trades <- ev:
		default:
			logs.Error("drop trade. reason: backpressure")
		}
	})
	defer unsubscribe()

	report := time.NewTicker(time.Minute)
	defer report.Stop()

	for {
		select {
		case <-sys.Shutdown():
			return nil
		case <-ctx.Done():
			return nil
		case ev := <-trades:
			side := types.SideSell
			if ev.Is(types.LocalBuyTradeEvent) {
				side = types.SideBuy
			}
			engine.OrderFlow(ev.Px, cfg.Market.TickSize, ev.Qty, ev.LocalTs, side)
		case <-report.C:
			tick, qty, ts, side := engine.LastAccTrades()
			logs.Infof("last trade run: tick=%d qty=%.4f ts=%d side=%s", tick, qty, ts, side)
			for _, p := range engine.SwingPoints(6) {
				logs.Infof("swing point: open_time=%d tick=%d", p.OpenTime, p.Tick)
			}
		}
	}
}
