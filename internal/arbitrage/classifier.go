// Package arbitrage decides whether a matched pair of markets offers a
// fee-adjusted trade, either directional (buy the cheaper side, sell the
// dearer one) or inverse (buy "yes" on two opposite outcomes).
package arbitrage

import (
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/rewired-gh/crossarb/internal/models"
)

const (
	// MinTradablePrice and MaxTradablePrice bound prices worth trading;
	// outside them fees dominate any edge.
	MinTradablePrice = 0.05
	MaxTradablePrice = 0.95
	// MinSpread is the smallest directional price gap considered.
	MinSpread = 0.05
	// InverseSumLow and InverseSumHigh bound pA+pB for opposite outcomes.
	InverseSumLow  = 0.95
	InverseSumHigh = 1.05
	// InverseMinSimilarity is required of a supplied similarity score.
	InverseMinSimilarity = 0.95
	// PositionSize is the notional of each evaluated trade in USD.
	PositionSize = 1000

	DefaultMonitorBandPct = 2.0

	// priceEps absorbs float error in sums and differences of cent prices.
	priceEps = 1e-9
)

// Input is one pair of markets to classify.
type Input struct {
	PlatformA, PlatformB models.Platform
	PriceA, PriceB       float64
	DescA, DescB         string
	Similarity           *float64
}

// InputFromMatch builds an Input from a semantic match.
func InputFromMatch(m models.EventMatch) Input {
	sim := m.Similarity
	return Input{
		PlatformA:  m.A.Platform,
		PlatformB:  m.B.Platform,
		PriceA:     m.A.Price,
		PriceB:     m.B.Price,
		DescA:      m.A.Description,
		DescB:      m.B.Description,
		Similarity: &sim,
	}
}

// Classifier evaluates inputs against per-platform fee models and thresholds.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	fees           map[models.Platform]FeeModel
	minProfitPct   float64
	monitorBandPct float64
	position       decimal.Decimal
}

// NewClassifier creates a Classifier. A negative monitor band selects
// DefaultMonitorBandPct; zero disables near-miss flagging.
func NewClassifier(fees map[models.Platform]FeeModel, minProfitPct, monitorBandPct float64) *Classifier {
	if monitorBandPct < 0 {
		monitorBandPct = DefaultMonitorBandPct
	}
	return &Classifier{
		fees:           fees,
		minProfitPct:   minProfitPct,
		monitorBandPct: monitorBandPct,
		position:       decimal.NewFromInt(PositionSize),
	}
}

// Classify returns the best opportunity for in, or nil when there is none.
// Invalid inputs also yield nil.
func (c *Classifier) Classify(in Input) *models.ArbitrageOpportunity {
	if !tradable(in.PriceA) || !tradable(in.PriceB) {
		return nil
	}
	feeA, okA := c.fees[in.PlatformA]
	feeB, okB := c.fees[in.PlatformB]
	if !okA || !okB {
		return nil
	}

	grade := gradeFor(in.Similarity)

	if IsInverseMarket(in.DescA, in.DescB, in.PriceA, in.PriceB, in.Similarity) {
		opp := c.inverse(in, feeA, feeB, grade)
		if opp.IsProfitable || opp.MonitorFlag {
			return opp
		}
		return nil
	}

	if math.Abs(in.PriceA-in.PriceB) < MinSpread-priceEps {
		return nil
	}

	var best *models.ArbitrageOpportunity
	if in.PriceA < in.PriceB {
		best = pick(best, c.directional(in, models.DirectionBuyASellB, feeA, feeB, grade))
	}
	if in.PriceB < in.PriceA {
		best = pick(best, c.directional(in, models.DirectionBuyBSellA, feeB, feeA, grade))
	}
	return best
}

func pick(best, cand *models.ArbitrageOpportunity) *models.ArbitrageOpportunity {
	if !cand.IsProfitable && !cand.MonitorFlag {
		return best
	}
	if best == nil || cand.NetProfitPct > best.NetProfitPct {
		return cand
	}
	return best
}

func tradable(p float64) bool {
	return p >= MinTradablePrice && p <= MaxTradablePrice
}

// directional buys on the cheaper platform and sells on the dearer one.
func (c *Classifier) directional(in Input, dir models.Direction, buyFees, sellFees FeeModel, grade models.Grade) *models.ArbitrageOpportunity {
	buyPrice, sellPrice := in.PriceA, in.PriceB
	if dir == models.DirectionBuyBSellA {
		buyPrice, sellPrice = in.PriceB, in.PriceA
	}

	cost := c.position.Mul(decimal.NewFromFloat(buyPrice))
	revenue := c.position.Mul(decimal.NewFromFloat(sellPrice))
	gross := revenue.Sub(cost)

	buyFee := buyFees.BuyFee(cost)
	sellFee := sellFees.SellFee(revenue, gross)
	fees := buyFee.Add(sellFee)
	capital := cost.Add(fees)

	feesA, feesB := buyFee, sellFee
	if dir == models.DirectionBuyBSellA {
		feesA, feesB = sellFee, buyFee
	}
	return c.build(in, dir, gross, fees, capital, feesA, feesB, grade)
}

// inverse buys "yes" on both platforms; exactly one pays out PositionSize.
func (c *Classifier) inverse(in Input, feeModelA, feeModelB FeeModel, grade models.Grade) *models.ArbitrageOpportunity {
	costA := c.position.Mul(decimal.NewFromFloat(in.PriceA))
	costB := c.position.Mul(decimal.NewFromFloat(in.PriceB))
	costs := costA.Add(costB)
	gross := c.position.Sub(costs)

	// Each leg is charged as if it were the winning one.
	feesA := feeModelA.BuyFee(costA).Add(feeModelA.SettleFee(c.position.Sub(costA)))
	feesB := feeModelB.BuyFee(costB).Add(feeModelB.SettleFee(c.position.Sub(costB)))
	fees := feesA.Add(feesB)
	capital := costs.Add(fees)

	return c.build(in, models.DirectionInverse, gross, fees, capital, feesA, feesB, grade)
}

func (c *Classifier) build(in Input, dir models.Direction, gross, fees, capital, feesA, feesB decimal.Decimal, grade models.Grade) *models.ArbitrageOpportunity {
	net := gross.Sub(fees)
	var grossPct, netPct float64
	if capital.IsPositive() {
		grossPct = gross.Div(capital).Mul(hundred).InexactFloat64()
		netPct = net.Div(capital).Mul(hundred).InexactFloat64()
	}

	profitable := netPct >= c.minProfitPct
	monitor := !profitable && c.monitorBandPct > 0 && netPct >= c.minProfitPct-c.monitorBandPct

	return &models.ArbitrageOpportunity{
		Direction:       dir,
		PlatformA:       in.PlatformA,
		PlatformB:       in.PlatformB,
		PriceA:          in.PriceA,
		PriceB:          in.PriceB,
		NetProfitPct:    netPct,
		GrossProfitPct:  grossPct,
		NetProfit:       net.InexactFloat64(),
		RequiredCapital: capital.InexactFloat64(),
		FeesA:           feesA.InexactFloat64(),
		FeesB:           feesB.InexactFloat64(),
		TotalFees:       fees.InexactFloat64(),
		IsProfitable:    profitable,
		IsInverse:       dir == models.DirectionInverse,
		QualityGrade:    grade,
		MonitorFlag:     monitor,
	}
}

// QualityGrade maps match similarity to a confidence grade.
func QualityGrade(similarity float64) models.Grade {
	switch {
	case similarity >= 0.95:
		return models.GradeA
	case similarity >= 0.90:
		return models.GradeB
	case similarity >= 0.85:
		return models.GradeC
	default:
		return models.GradeD
	}
}

// gradeFor treats an unknown similarity as the lowest grade.
func gradeFor(similarity *float64) models.Grade {
	if similarity == nil {
		return models.GradeD
	}
	return QualityGrade(*similarity)
}

// oppositePattern is a pair of word families of which each description must
// hold exactly one side.
type oppositePattern [2][]string

var wordPatterns = []oppositePattern{
	{{"democrat", "democrats", "democratic", "dem", "dems"}, {"republican", "republicans", "gop", "rep", "reps"}},
	{{"over"}, {"under"}},
	{{"win", "wins"}, {"lose", "loses"}},
}

func words(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		set[w] = struct{}{}
	}
	return set
}

func hasAny(set map[string]struct{}, family []string) bool {
	for _, w := range family {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

func exclusive(a0, a1, b0, b1 bool) bool {
	return (a0 && !a1 && b1 && !b0) || (a1 && !a0 && b0 && !b1)
}

// HasOppositePattern reports whether the two descriptions name opposite
// outcomes of the same question.
func HasOppositePattern(descA, descB string) bool {
	wa, wb := words(descA), words(descB)
	for _, p := range wordPatterns {
		if exclusive(hasAny(wa, p[0]), hasAny(wa, p[1]), hasAny(wb, p[0]), hasAny(wb, p[1])) {
			return true
		}
	}

	la := strings.ToLower(strings.TrimSpace(descA))
	lb := strings.ToLower(strings.TrimSpace(descB))
	yesA, noA := strings.HasSuffix(la, "- yes"), strings.HasSuffix(la, "- no")
	yesB, noB := strings.HasSuffix(lb, "- yes"), strings.HasSuffix(lb, "- no")
	return exclusive(yesA, noA, yesB, noB)
}

// IsInverseMarket reports whether two markets are opposite outcomes of one
// exhaustive event. Prices must sum to about 1, the descriptions must carry an
// opposite-outcome pattern and a supplied similarity must be at least
// InverseMinSimilarity.
func IsInverseMarket(descA, descB string, priceA, priceB float64, similarity *float64) bool {
	sum := priceA + priceB
	if sum < InverseSumLow-priceEps || sum > InverseSumHigh+priceEps {
		return false
	}
	if similarity != nil && *similarity < InverseMinSimilarity {
		return false
	}
	return HasOppositePattern(descA, descB)
}
