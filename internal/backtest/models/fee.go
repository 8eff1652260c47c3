package models

import (
	"math"

	"hftsim/internal/types"
)

// FeeModel computes the fee for a fill.
type FeeModel interface {
	Amount(order *types.Order, tradingValue float64) float64
}

// CommonFees holds maker and taker rates. Negative rates model rebates.
type CommonFees struct {
	MakerFee float64
	TakerFee float64
}

// NewCommonFees creates a maker/taker fee pair.
func NewCommonFees(maker, taker float64) CommonFees {
	return CommonFees{MakerFee: maker, TakerFee: taker}
}

// TradingValueFeeModel charges a rate on the traded value.
type TradingValueFeeModel struct {
	fees CommonFees
}

// NewTradingValueFeeModel creates a value-proportional fee model.
func NewTradingValueFeeModel(fees CommonFees) TradingValueFeeModel {
	return TradingValueFeeModel{fees: fees}
}

func (m TradingValueFeeModel) Amount(order *types.Order, tradingValue float64) float64 {
	rate := m.fees.TakerFee
	if order.Maker {
		rate = m.fees.MakerFee
	}
	return rate * math.Abs(tradingValue)
}
