package recorder

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/yanun0323/errors"

	"hftsim/internal/backtest/models"
	"hftsim/internal/depth"
	"hftsim/internal/types"
)

// Bot is the read surface the recorder samples.
type Bot interface {
	CurrentTimestamp() int64
	StateValues() types.StateValues
	Depth() *depth.Depth
}

// Row is one equity sample.
type Row struct {
	Timestamp     int64
	Balance       float64
	Position      float64
	Fee           float64
	TradingVolume float64
	TradingValue  float64
	NumTrades     int64
	Price         float64
}

// Stats summarizes an equity curve.
type Stats struct {
	Peak        float64
	CumReturn   float64
	Trough      float64
	MaxDrawdown float64
	Sharpe      float64
	Fee         float64
}

// Recorder samples account state on a fixed cadence and renders the
// resulting equity curve as CSV, statistics, or database rows.
type Recorder struct {
	asset models.AssetType
	rows  []Row

	lastPrice float64
}

// New creates a recorder valuing positions with the given asset model.
func New(asset models.AssetType) *Recorder {
	return &Recorder{asset: asset}
}

// Record samples the bot's current account state. The mark price is the
// book midpoint; when one side is empty the last known price carries
// over.
func (r *Recorder) Record(bot Bot) {
	d := bot.Depth()
	price := (d.BestBid() + d.BestAsk()) / 2
	if math.IsNaN(price) {
		price = r.lastPrice
	} else {
		r.lastPrice = price
	}

	v := bot.StateValues()
	r.rows = append(r.rows, Row{
		Timestamp:     bot.CurrentTimestamp(),
		Balance:       v.Balance,
		Position:      v.Position,
		Fee:           v.Fee,
		TradingVolume: v.TradingVolume,
		TradingValue:  v.TradingValue,
		NumTrades:     v.NumTrades,
		Price:         price,
	})
}

// Rows returns the collected samples.
func (r *Recorder) Rows() []Row {
	return r.rows
}

// Equity values one sample: balance plus marked position, net of fees.
func (r *Recorder) Equity(row Row) float64 {
	return row.Balance + r.asset.EquityValue(row.Price, row.Position) - row.Fee
}

// ToCSV writes the samples to <dir>/<prefix>.csv.
func (r *Recorder) ToCSV(prefix, dir string) error {
	f, err := os.Create(filepath.Join(dir, prefix+".csv"))
	if err != nil {
		return errors.Wrap(err, "create record file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"timestamp", "balance", "position", "fee",
		"trading_volume", "trading_value", "num_trades", "price",
	}); err != nil {
		return errors.Wrap(err, "write record header")
	}
	for _, row := range r.rows {
		if err := w.Write([]string{
			strconv.FormatInt(row.Timestamp, 10),
			strconv.FormatFloat(row.Balance, 'f', -1, 64),
			strconv.FormatFloat(row.Position, 'f', -1, 64),
			strconv.FormatFloat(row.Fee, 'f', -1, 64),
			strconv.FormatFloat(row.TradingVolume, 'f', -1, 64),
			strconv.FormatFloat(row.TradingValue, 'f', -1, 64),
			strconv.FormatInt(row.NumTrades, 10),
			strconv.FormatFloat(row.Price, 'f', -1, 64),
		}); err != nil {
			return errors.Wrap(err, "write record row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "flush record file")
	}
	return nil
}

// Stats computes the equity-curve summary.
func (r *Recorder) Stats() Stats {
	if len(r.rows) == 0 {
		return Stats{}
	}

	first := r.Equity(r.rows[0])
	peak := first
	trough := first
	runningPeak := first
	maxDrawdown := 0.0

	diffs := make([]float64, 0, len(r.rows)-1)
	prev := first
	for _, row := range r.rows[1:] {
		eq := r.Equity(row)
		if eq > peak {
			peak = eq
		}
		if eq < trough {
			trough = eq
		}
		if eq > runningPeak {
			runningPeak = eq
		}
		if dd := eq - runningPeak; dd < maxDrawdown {
			maxDrawdown = dd
		}
		diffs = append(diffs, eq-prev)
		prev = eq
	}

	return Stats{
		Peak:        peak,
		CumReturn:   prev - first,
		Trough:      trough,
		MaxDrawdown: maxDrawdown,
		Sharpe:      sharpe(diffs),
		Fee:         r.rows[len(r.rows)-1].Fee,
	}
}

// sharpe is the per-sample mean over standard deviation of equity
// changes, scaled by the square root of the sample count.
func sharpe(diffs []float64) float64 {
	if len(diffs) < 2 {
		return 0
	}
	mean := 0.0
	for _, d := range diffs {
		mean += d
	}
	mean /= float64(len(diffs))

	variance := 0.0
	for _, d := range diffs {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(diffs) - 1)
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(float64(len(diffs)))
}
