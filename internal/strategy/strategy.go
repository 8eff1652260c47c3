package strategy

import (
	"hftsim/internal/backtest"
)

// Strategy is called once per elapse step with the backtest's read and
// order surface.
type Strategy interface {
	OnElapse(bt *backtest.Backtest) error
}
