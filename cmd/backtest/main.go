package main

import (
	"flag"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"hftsim/internal/backtest"
	"hftsim/internal/feed"
	"hftsim/internal/ops"
	"hftsim/internal/recorder"
	"hftsim/internal/strategy"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	profile := flag.Bool("profile", false, "enable pyroscope profiling")
	pyroscopeAddr := flag.String("pyroscope", "http://localhost:4040", "pyroscope server address")
	flag.Parse()

	if *profile {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "hftsim/backtest",
			ServerAddress:   *pyroscopeAddr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			logs.Fatalf("start pyroscope, err: %+v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	cfg, err := ops.Load(*configPath)
	if err != nil {
		logs.Fatalf("load config, err: %+v", err)
	}

	if err := run(cfg); err != nil {
		logs.Fatalf("run backtest, err: %+v", err)
	}
}

func run(cfg *ops.Config) error {
	gen := feed.NewGenerator(feed.GeneratorConfig{
		BasePrice:   cfg.Feed.BasePrice,
		TickSize:    cfg.Market.TickSize,
		Qty:         cfg.Feed.Qty,
		SpreadTicks: cfg.Feed.SpreadTicks,
		StepNs:      cfg.Feed.StepNs,
		FeedLatency: cfg.Feed.LatencyNs,
		Seed:        cfg.Feed.Seed,
	})
	events := gen.Generate(cfg.Feed.Steps)
	logs.Infof("generated feed: symbol=%s events=%d", cfg.Symbol, len(events))

	bt := backtest.New(cfg.BacktestConfig(), events)
	rec := recorder.New(cfg.BacktestConfig().Asset)

	grid := strategy.NewGrid(0.0002, 0.0001, 10, cfg.Market.TickSize, 0.00002, cfg.Feed.Qty, 10*cfg.Feed.Qty)

	for bt.Elapse(cfg.Recorder.IntervalNs) {
		if err := grid.OnElapse(bt); err != nil {
			return err
		}
		rec.Record(bt)
	}

	stats := rec.Stats()
	logs.Infof("peak=%.4f cum_return=%.4f trough=%.4f max_drawdown=%.4f sharpe=%.4f fee=%.4f",
		stats.Peak, stats.CumReturn, stats.Trough, stats.MaxDrawdown, stats.Sharpe, stats.Fee)

	if err := rec.ToCSV(cfg.Recorder.Prefix, cfg.Recorder.Dir); err != nil {
		return err
	}

	if cfg.Postgres.Enabled {
		sink, err := recorder.NewPostgresSink(recorder.PostgresOption{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
			SSLMode:  cfg.Postgres.SSLMode,
		})
		if err != nil {
			return err
		}
		defer sink.Close()
		if err := sink.Save(cfg.Recorder.Prefix, rec); err != nil {
			return err
		}
	}
	return nil
}
