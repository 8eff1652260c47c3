package models

// AssetType converts execution price and quantity into traded value and
// volume in the account's settlement terms.
type AssetType interface {
	Amount(execPrice, qty float64) float64
	EquityValue(price, position float64) float64
}

// LinearAsset settles in the quote currency: value = price * qty *
// contract size.
type LinearAsset struct {
	ContractSize float64
}

// NewLinearAsset creates a linear asset with the given contract size.
func NewLinearAsset(contractSize float64) LinearAsset {
	return LinearAsset{ContractSize: contractSize}
}

func (a LinearAsset) Amount(execPrice, qty float64) float64 {
	return a.ContractSize * execPrice * qty
}

func (a LinearAsset) EquityValue(price, position float64) float64 {
	return a.ContractSize * price * position
}

// InverseAsset settles in the base currency: value = contract size *
// qty / price.
type InverseAsset struct {
	ContractSize float64
}

// NewInverseAsset creates an inverse asset with the given contract size.
func NewInverseAsset(contractSize float64) InverseAsset {
	return InverseAsset{ContractSize: contractSize}
}

func (a InverseAsset) Amount(execPrice, qty float64) float64 {
	if execPrice == 0 {
		return 0
	}
	return a.ContractSize * qty / execPrice
}

func (a InverseAsset) EquityValue(price, position float64) float64 {
	if price == 0 {
		return 0
	}
	return a.ContractSize * position / price
}
