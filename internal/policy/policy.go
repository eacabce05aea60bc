// Package policy computes settlement policy bands and classifies offer percentages.
// Everything here is pure; thresholds come from configuration.
package policy

import (
	"fmt"
	"math"
	"time"

	"settlement-engine/internal/config"
	"settlement-engine/internal/domain"
)

// Band is the inclusive [Min, Max] settlement percentage an agent may offer
// without supervisor sign-off.
type Band struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type Evaluator struct {
	secured       Band
	unsecured     Band
	maxDueHorizon time.Duration
	highValue     int64
}

func NewEvaluator(cfg config.PolicyConfig) *Evaluator {
	return &Evaluator{
		secured:       Band{Min: cfg.SecuredMin, Max: cfg.SecuredMax},
		unsecured:     Band{Min: cfg.UnsecuredMin, Max: cfg.UnsecuredMax},
		maxDueHorizon: cfg.MaxDueHorizon(),
		highValue:     cfg.HighValueThresholdCents,
	}
}

// EvaluatePolicy returns the band that applies to the loan.
func (e *Evaluator) EvaluatePolicy(loan *domain.Loan) Band {
	if loan.IsSecured {
		return e.secured
	}
	return e.unsecured
}

// Classify places pct relative to [min, max]. Bounds are inclusive.
func Classify(pct, min, max float64) (domain.PolicyClassification, error) {
	if math.IsNaN(pct) || pct < 0 || pct > 100 {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidPercentage, pct)
	}
	switch {
	case pct < min:
		return domain.PolicyBelowMinimum, nil
	case pct > max:
		return domain.PolicyAboveMaximum, nil
	default:
		return domain.PolicyWithinPolicy, nil
	}
}

// ClassifyForLoan is EvaluatePolicy followed by Classify.
func (e *Evaluator) ClassifyForLoan(loan *domain.Loan, pct float64) (domain.PolicyClassification, Band, error) {
	band := e.EvaluatePolicy(loan)
	c, err := Classify(pct, band.Min, band.Max)
	return c, band, err
}

// IsHighValue flags offers the supervisor queue should highlight.
func (e *Evaluator) IsHighValue(amountCents int64) bool {
	return e.highValue > 0 && amountCents > e.highValue
}

// DueDateAllowed reports whether due is within the horizon measured from createdAt.
func (e *Evaluator) DueDateAllowed(createdAt, due time.Time) bool {
	return !due.After(createdAt.Add(e.maxDueHorizon))
}

func (e *Evaluator) MaxDueHorizon() time.Duration {
	return e.maxDueHorizon
}
