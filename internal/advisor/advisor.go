// Package advisor implements the hold-vs-sell decision support model: given
// a current price and a quantity it projects profit for selling now, in
// three months and in six months, and picks a recommendation from a fixed
// decision table.
//
// The model is a pure function of its inputs and Params. Volatility is a
// constant, so the risk level only changes when Params change.
package advisor

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agrostack/mandi-engine/internal/crop"
	"github.com/agrostack/mandi-engine/internal/metrics"
	"github.com/agrostack/mandi-engine/internal/model"
)

// ErrInvalidParams is returned by New for an unusable model configuration.
var ErrInvalidParams = errors.New("advisor: invalid params")

// Risk levels.
const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

// Actions, one per row of the decision table.
const (
	ActionBelowBreakEven   = "below_break_even"
	ActionSellMinimizeLoss = "sell_now_minimize_loss"
	ActionPartialSale      = "partial_sale"
	ActionHoldSixMonths    = "hold_6m"
	ActionHoldThreeMonths  = "hold_3m"
	ActionSellNow          = "sell_now"
)

const (
	baseConfidence    = 75
	volatilityPenalty = 10
	lowRiskBelowPct   = 8.0
	mediumRiskUpToPct = 15.0
)

// Params are the model constants.
type Params struct {
	Volatility          float64 // fractional price band, 0.12 = ±12%
	StoragePerUnitMonth float64
	CostRatio           float64 // production cost as a fraction of current revenue
	ThreeMonthGrowth    float64 // seasonal price multiplier at 3 months
	SixMonthGrowth      float64 // seasonal price multiplier at 6 months
}

// DefaultParams returns the stock model constants.
func DefaultParams() Params {
	return Params{
		Volatility:          0.12,
		StoragePerUnitMonth: 1.5,
		CostRatio:           0.6,
		ThreeMonthGrowth:    1.05,
		SixMonthGrowth:      1.10,
	}
}

func (p Params) validate() error {
	for name, v := range map[string]float64{
		"volatility":             p.Volatility,
		"storage per unit month": p.StoragePerUnitMonth,
		"cost ratio":             p.CostRatio,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number, got %v", ErrInvalidParams, name, v)
		}
	}
	if !(p.ThreeMonthGrowth > 0) || !(p.SixMonthGrowth > 0) {
		return fmt.Errorf("%w: growth multipliers must be positive", ErrInvalidParams)
	}
	return nil
}

// Advisor projects hold-vs-sell outcomes.
type Advisor struct {
	params Params
}

// New creates an advisor.
func New(params Params) (*Advisor, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Advisor{params: params}, nil
}

// Params returns the model constants in use.
func (a *Advisor) Params() Params {
	return a.params
}

// ProjectHoldVsSell builds the report for selling quantity units now or
// after holding. Non-positive price or quantity is rejected with
// crop.ErrInvalidInput.
func (a *Advisor) ProjectHoldVsSell(currentPrice, quantity float64) (*model.HoldSellReport, error) {
	if err := crop.ValidatePrice(currentPrice); err != nil {
		return nil, err
	}
	if err := crop.ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	defer metrics.ObserveEngine("hold_sell", time.Now())

	p := a.params
	price := round2(currentPrice)
	estimatedCost := quantity * price * p.CostRatio
	breakEven := round2(estimatedCost / quantity)

	now := a.project(model.HorizonNow, price, quantity, estimatedCost, 0)
	threeMonth := a.project(model.HorizonThreeMonth, round2(price*p.ThreeMonthGrowth), quantity, estimatedCost, 3)
	sixMonth := a.project(model.HorizonSixMonth, round2(price*p.SixMonthGrowth), quantity, estimatedCost, 6)

	risk := riskLevel(p.Volatility)
	in := decisionInputs{
		currentPrice:  price,
		breakEven:     breakEven,
		price3m:       threeMonth.price,
		price6m:       sixMonth.price,
		currentProfit: now.profit,
		profit3m:      threeMonth.profit,
		profit6m:      sixMonth.profit,
		risk:          risk,
	}
	action := chooseAction(in)

	return &model.HoldSellReport{
		CurrentPrice:   decimal.NewFromFloat(price),
		Quantity:       quantity,
		EstimatedCost:  decimal.NewFromFloat(estimatedCost).Round(2),
		BreakEvenPrice: decimal.NewFromFloat(breakEven),
		CurrentProfit:  decimal.NewFromFloat(now.profit),
		Projections:    []model.HoldSellProjection{now.row(), threeMonth.row(), sixMonth.row()},
		RiskLevel:      risk,
		Confidence:     confidence(p.Volatility),
		Action:         action,
		Recommendation: recommendationText(action, in),
	}, nil
}

type projection struct {
	horizon   string
	price     float64
	low, high float64
	storage   float64
	profit    float64
}

func (a *Advisor) project(horizon string, price, quantity, estimatedCost float64, months int) projection {
	storage := quantity * a.params.StoragePerUnitMonth * float64(months)
	return projection{
		horizon: horizon,
		price:   price,
		low:     round2(price * (1 - a.params.Volatility)),
		high:    round2(price * (1 + a.params.Volatility)),
		storage: storage,
		profit:  round2(quantity*price - estimatedCost - storage),
	}
}

func (p projection) row() model.HoldSellProjection {
	return model.HoldSellProjection{
		Horizon:        p.horizon,
		ProjectedPrice: decimal.NewFromFloat(p.price),
		PriceRangeLow:  decimal.NewFromFloat(p.low),
		PriceRangeHigh: decimal.NewFromFloat(p.high),
		StorageCost:    decimal.NewFromFloat(p.storage).Round(2),
		NetProfit:      decimal.NewFromFloat(p.profit),
	}
}

type decisionInputs struct {
	currentPrice, breakEven           float64
	price3m, price6m                  float64
	currentProfit, profit3m, profit6m float64
	risk                              string
}

// chooseAction walks the decision table in order; the first matching row
// wins. The conditions overlap, so order matters.
func chooseAction(in decisionInputs) string {
	switch {
	case in.currentPrice < in.breakEven:
		return ActionBelowBreakEven
	case in.price3m < in.breakEven && in.price6m < in.breakEven:
		return ActionSellMinimizeLoss
	case in.risk == RiskHigh:
		return ActionPartialSale
	case in.profit6m > in.profit3m && in.profit6m > in.currentProfit:
		return ActionHoldSixMonths
	case in.profit3m > in.currentProfit:
		return ActionHoldThreeMonths
	default:
		return ActionSellNow
	}
}

func recommendationText(action string, in decisionInputs) string {
	switch action {
	case ActionBelowBreakEven:
		return fmt.Sprintf("Current price (₹%.2f) is below break-even (₹%.2f/kg). Consider reducing costs or waiting.",
			in.currentPrice, in.breakEven)
	case ActionSellMinimizeLoss:
		return "Projected prices remain below break-even. Sell now to minimize losses."
	case ActionPartialSale:
		return "High market volatility. Consider selling 50% now and holding the rest."
	case ActionHoldSixMonths:
		return fmt.Sprintf("Holding for 6 months yields the highest net profit (₹%.2f vs ₹%.2f now), even after storage costs.",
			in.profit6m, in.currentProfit)
	case ActionHoldThreeMonths:
		return fmt.Sprintf("Selling after 3 months offers better returns (₹%.2f vs ₹%.2f now) with moderate risk.",
			in.profit3m, in.currentProfit)
	default:
		return "Selling now is your best option. Projected gains don't justify storage costs."
	}
}

func riskLevel(volatility float64) string {
	pct := volatility * 100
	switch {
	case pct < lowRiskBelowPct:
		return RiskLow
	case pct <= mediumRiskUpToPct:
		return RiskMedium
	default:
		return RiskHigh
	}
}

func confidence(volatility float64) int {
	c := baseConfidence
	if volatility*100 > mediumRiskUpToPct {
		c -= volatilityPenalty
	}
	return max(0, min(100, c))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
