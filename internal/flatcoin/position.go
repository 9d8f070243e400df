package flatcoin

import "math/big"

// PositionSnapshot is the viewer's LeveragePositionData for one position NFT.
// Prices and amounts are 18-decimal fixed point as returned by the chain.
type PositionSnapshot struct {
	TokenID                       *big.Int
	AveragePrice                  *big.Int
	MarginDeposited               *big.Int
	AdditionalSize                *big.Int
	EntryCumulativeFunding        *big.Int
	ProfitLoss                    *big.Int
	AccruedFunding                *big.Int
	MarginAfterSettlement         *big.Int
	LiquidationPrice              *big.Int
	LimitOrderPriceLowerThreshold *big.Int
	LimitOrderPriceUpperThreshold *big.Int
}

// HasLimitOrder reports whether a limit order is attached to the position.
func (p PositionSnapshot) HasLimitOrder() bool {
	return nonZero(p.LimitOrderPriceLowerThreshold) || nonZero(p.LimitOrderPriceUpperThreshold)
}

func nonZero(x *big.Int) bool {
	return x != nil && x.Sign() != 0
}

// leveragePositionData matches the ABI tuple field for field so abi.ConvertType
// can convert the unpacked anonymous struct into it.
type leveragePositionData struct {
	TokenId                       *big.Int
	AveragePrice                  *big.Int
	MarginDeposited               *big.Int
	AdditionalSize                *big.Int
	EntryCumulativeFunding        *big.Int
	ProfitLoss                    *big.Int
	AccruedFunding                *big.Int
	MarginAfterSettlement         *big.Int
	LiquidationPrice              *big.Int
	LimitOrderPriceLowerThreshold *big.Int
	LimitOrderPriceUpperThreshold *big.Int
}

func (r leveragePositionData) snapshot() PositionSnapshot {
	return PositionSnapshot{
		TokenID:                       r.TokenId,
		AveragePrice:                  r.AveragePrice,
		MarginDeposited:               r.MarginDeposited,
		AdditionalSize:                r.AdditionalSize,
		EntryCumulativeFunding:        r.EntryCumulativeFunding,
		ProfitLoss:                    r.ProfitLoss,
		AccruedFunding:                r.AccruedFunding,
		MarginAfterSettlement:         r.MarginAfterSettlement,
		LiquidationPrice:              r.LiquidationPrice,
		LimitOrderPriceLowerThreshold: r.LimitOrderPriceLowerThreshold,
		LimitOrderPriceUpperThreshold: r.LimitOrderPriceUpperThreshold,
	}
}

func fromSnapshot(p PositionSnapshot) leveragePositionData {
	return leveragePositionData{
		TokenId:                       orZero(p.TokenID),
		AveragePrice:                  orZero(p.AveragePrice),
		MarginDeposited:               orZero(p.MarginDeposited),
		AdditionalSize:                orZero(p.AdditionalSize),
		EntryCumulativeFunding:        orZero(p.EntryCumulativeFunding),
		ProfitLoss:                    orZero(p.ProfitLoss),
		AccruedFunding:                orZero(p.AccruedFunding),
		MarginAfterSettlement:         orZero(p.MarginAfterSettlement),
		LiquidationPrice:              orZero(p.LiquidationPrice),
		LimitOrderPriceLowerThreshold: orZero(p.LimitOrderPriceLowerThreshold),
		LimitOrderPriceUpperThreshold: orZero(p.LimitOrderPriceUpperThreshold),
	}
}

func orZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}
