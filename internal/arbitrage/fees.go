package arbitrage

import (
	"github.com/shopspring/decimal"

	"github.com/rewired-gh/crossarb/internal/models"
)

var hundred = decimal.NewFromInt(100)

// FeeModel computes one platform's charges in USD. Notional is the dollar
// amount traded; profit is the realized gain on the position, which may be
// negative.
type FeeModel interface {
	BuyFee(notional decimal.Decimal) decimal.Decimal
	SellFee(notional, profit decimal.Decimal) decimal.Decimal
	SettleFee(profit decimal.Decimal) decimal.Decimal
}

func pctOf(amount decimal.Decimal, pct float64) decimal.Decimal {
	return amount.Mul(decimal.NewFromFloat(pct)).Div(hundred)
}

// KalshiFees charges a taker percentage of notional plus a fixed withdrawal cost.
type KalshiFees struct {
	MakerFeePct   float64 `mapstructure:"maker_fee_pct" json:"maker_fee_pct"`
	TakerFeePct   float64 `mapstructure:"taker_fee_pct" json:"taker_fee_pct"`
	WithdrawalUSD float64 `mapstructure:"withdrawal_cost_usd" json:"withdrawal_cost_usd"`
}

func (f KalshiFees) BuyFee(notional decimal.Decimal) decimal.Decimal {
	return pctOf(notional, f.TakerFeePct).Add(decimal.NewFromFloat(f.WithdrawalUSD))
}

func (f KalshiFees) SellFee(notional, _ decimal.Decimal) decimal.Decimal {
	return f.BuyFee(notional)
}

func (f KalshiFees) SettleFee(decimal.Decimal) decimal.Decimal {
	return decimal.Zero
}

// PolymarketFees charges a trading percentage of notional plus fixed gas and
// USDC bridge costs on every trade.
type PolymarketFees struct {
	TradingFeePct float64 `mapstructure:"trading_fee_pct" json:"trading_fee_pct"`
	GasUSD        float64 `mapstructure:"gas_fee_usd" json:"gas_fee_usd"`
	BridgeUSD     float64 `mapstructure:"usdc_bridge_cost_usd" json:"usdc_bridge_cost_usd"`
}

func (f PolymarketFees) BuyFee(notional decimal.Decimal) decimal.Decimal {
	return pctOf(notional, f.TradingFeePct).
		Add(decimal.NewFromFloat(f.GasUSD)).
		Add(decimal.NewFromFloat(f.BridgeUSD))
}

func (f PolymarketFees) SellFee(notional, _ decimal.Decimal) decimal.Decimal {
	return f.BuyFee(notional)
}

func (f PolymarketFees) SettleFee(decimal.Decimal) decimal.Decimal {
	return decimal.Zero
}

// PredictItFees taxes realized profit and charges a percentage of every
// dollar withdrawn. Losses are not taxed.
type PredictItFees struct {
	ProfitFeePct     float64 `mapstructure:"profit_fee_pct" json:"profit_fee_pct"`
	WithdrawalFeePct float64 `mapstructure:"withdrawal_fee_pct" json:"withdrawal_fee_pct"`
}

// BuyFee charges the withdrawal percentage on the notional, since the
// position's funds eventually leave the platform.
func (f PredictItFees) BuyFee(notional decimal.Decimal) decimal.Decimal {
	return pctOf(notional, f.WithdrawalFeePct)
}

func (f PredictItFees) SellFee(notional, profit decimal.Decimal) decimal.Decimal {
	return f.SettleFee(profit).Add(pctOf(notional, f.WithdrawalFeePct))
}

func (f PredictItFees) SettleFee(profit decimal.Decimal) decimal.Decimal {
	if !profit.IsPositive() {
		return decimal.Zero
	}
	return pctOf(profit, f.ProfitFeePct)
}

// FeeSchedule holds the fee parameters of every supported platform.
type FeeSchedule struct {
	Kalshi     KalshiFees     `mapstructure:"kalshi" json:"kalshi"`
	Polymarket PolymarketFees `mapstructure:"polymarket" json:"polymarket"`
	PredictIt  PredictItFees  `mapstructure:"predictit" json:"predictit"`
}

// DefaultFeeSchedule returns the published fee parameters.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		Kalshi:     KalshiFees{TakerFeePct: 3.0},
		Polymarket: PolymarketFees{GasUSD: 0.50, BridgeUSD: 1.00},
		PredictIt:  PredictItFees{ProfitFeePct: 10.0, WithdrawalFeePct: 5.0},
	}
}

// Models returns the FeeModel for each platform.
func (s FeeSchedule) Models() map[models.Platform]FeeModel {
	return map[models.Platform]FeeModel{
		models.PlatformKalshi:     s.Kalshi,
		models.PlatformPolymarket: s.Polymarket,
		models.PlatformPredictIt:  s.PredictIt,
	}
}
