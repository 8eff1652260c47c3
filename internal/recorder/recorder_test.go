package recorder

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"hftsim/internal/backtest/models"
	"hftsim/internal/depth"
	"hftsim/internal/types"
)

type fakeBot struct {
	ts     int64
	values types.StateValues
	depth  *depth.Depth
}

func (b *fakeBot) CurrentTimestamp() int64        { return b.ts }
func (b *fakeBot) StateValues() types.StateValues { return b.values }
func (b *fakeBot) Depth() *depth.Depth            { return b.depth }

func newFakeBot() *fakeBot {
	d := depth.New(0.1, 0.001)
	d.UpdateBidDepth(99.9, 1.0, 0)
	d.UpdateAskDepth(100.1, 1.0, 0)
	return &fakeBot{ts: 1000, depth: d}
}

func TestRecordSamplesMid(t *testing.T) {
	bot := newFakeBot()
	r := New(models.NewLinearAsset(1.0))

	r.Record(bot)
	rows := r.Rows()
	require.Len(t, rows, 1)
	require.Equal(t, int64(1000), rows[0].Timestamp)
	require.InDelta(t, 100.0, rows[0].Price, 1e-9)
}

func TestRecordCarriesLastPriceOnEmptyBook(t *testing.T) {
	bot := newFakeBot()
	r := New(models.NewLinearAsset(1.0))
	r.Record(bot)

	bot.depth.ClearDepth(types.SideNone, 0)
	bot.ts = 2000
	r.Record(bot)

	rows := r.Rows()
	require.Len(t, rows, 2)
	require.InDelta(t, 100.0, rows[1].Price, 1e-9)
}

func TestStats(t *testing.T) {
	bot := newFakeBot()
	r := New(models.NewLinearAsset(1.0))

	// Flat, up, down: equity 0 -> 10 -> 4.
	r.Record(bot)
	bot.values.Balance = 10
	bot.ts = 2000
	r.Record(bot)
	bot.values.Balance = 4
	bot.values.Fee = 1
	bot.ts = 3000
	r.Record(bot)

	stats := r.Stats()
	require.InDelta(t, 10.0, stats.Peak, 1e-9)
	require.InDelta(t, 3.0, stats.CumReturn, 1e-9)
	require.InDelta(t, 0.0, stats.Trough, 1e-9)
	require.InDelta(t, -7.0, stats.MaxDrawdown, 1e-9)
	require.InDelta(t, 1.0, stats.Fee, 1e-9)
}

func TestStatsMarksPosition(t *testing.T) {
	bot := newFakeBot()
	r := New(models.NewLinearAsset(1.0))

	bot.values.Position = 2.0
	bot.values.Balance = -200.0
	r.Record(bot)

	// Equity = balance + position * mid - fee = -200 + 200 = 0.
	require.InDelta(t, 0.0, r.Equity(r.Rows()[0]), 1e-9)
}

func TestStatsEmpty(t *testing.T) {
	r := New(models.NewLinearAsset(1.0))
	require.Equal(t, Stats{}, r.Stats())
}

func TestToCSV(t *testing.T) {
	bot := newFakeBot()
	r := New(models.NewLinearAsset(1.0))
	bot.values.NumTrades = 3
	r.Record(bot)

	dir := t.TempDir()
	require.NoError(t, r.ToCSV("run", dir))

	f, err := os.Open(filepath.Join(dir, "run.csv"))
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, []string{
		"timestamp", "balance", "position", "fee",
		"trading_volume", "trading_value", "num_trades", "price",
	}, records[0])
	require.Equal(t, "1000", records[1][0])
	require.Equal(t, "3", records[1][6])
	require.Equal(t, "100", records[1][7])
}
