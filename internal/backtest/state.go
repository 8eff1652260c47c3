package backtest

import (
	"math"

	"hftsim/internal/backtest/models"
	"hftsim/internal/types"
)

// State accumulates balance, fee and position for one asset. Fills are
// the only mutation path.
type State struct {
	asset  models.AssetType
	fees   models.FeeModel
	values types.StateValues
}

// NewState creates an account state with the given asset and fee models.
func NewState(asset models.AssetType, fees models.FeeModel) *State {
	return &State{asset: asset, fees: fees}
}

// ApplyFill settles an executed order into the account.
func (s *State) ApplyFill(order *types.Order) {
	amount := s.asset.Amount(order.ExecPrice(), order.ExecQty)
	fee := s.fees.Amount(order, amount)

	switch order.Side {
	case types.SideBuy:
		s.values.Position += order.ExecQty
		s.values.Balance -= amount
	case types.SideSell:
		s.values.Position -= order.ExecQty
		s.values.Balance += amount
	}
	s.values.Fee += fee
	s.values.TradingVolume += order.ExecQty
	s.values.TradingValue += math.Abs(amount)
	s.values.NumTrades++
}

// Values returns the current account snapshot.
func (s *State) Values() types.StateValues {
	return s.values
}
