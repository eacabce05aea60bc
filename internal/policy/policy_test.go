package policy

import (
	"math"
	"testing"
	"time"

	"settlement-engine/internal/config"
	"settlement-engine/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvaluator() *Evaluator {
	return NewEvaluator(config.PolicyConfig{
		SecuredMin:              40,
		SecuredMax:              70,
		UnsecuredMin:            35,
		UnsecuredMax:            65,
		MaxDueHorizonDays:       90,
		HighValueThresholdCents: 1000000,
	})
}

func TestEvaluatePolicy(t *testing.T) {
	e := testEvaluator()
	assert.Equal(t, Band{Min: 40, Max: 70}, e.EvaluatePolicy(&domain.Loan{IsSecured: true}))
	assert.Equal(t, Band{Min: 35, Max: 65}, e.EvaluatePolicy(&domain.Loan{IsSecured: false}))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		pct  float64
		want domain.PolicyClassification
	}{
		{"Inside", 50, domain.PolicyWithinPolicy},
		{"At minimum", 35, domain.PolicyWithinPolicy},
		{"At maximum", 65, domain.PolicyWithinPolicy},
		{"Below", 34.99, domain.PolicyBelowMinimum},
		{"Above", 65.01, domain.PolicyAboveMaximum},
		{"Zero", 0, domain.PolicyBelowMinimum},
		{"Hundred", 100, domain.PolicyAboveMaximum},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.pct, 35, 65)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []float64{-0.01, 100.01, math.NaN()} {
		_, err := Classify(bad, 35, 65)
		assert.ErrorIs(t, err, domain.ErrInvalidPercentage)
	}
}

func TestClassifyForLoan(t *testing.T) {
	e := testEvaluator()
	c, band, err := e.ClassifyForLoan(&domain.Loan{IsSecured: true}, 68)
	require.NoError(t, err)
	assert.Equal(t, domain.PolicyWithinPolicy, c)
	assert.Equal(t, 70.0, band.Max)

	c, _, err = e.ClassifyForLoan(&domain.Loan{IsSecured: false}, 68)
	require.NoError(t, err)
	assert.Equal(t, domain.PolicyAboveMaximum, c)
}

func TestIsHighValue(t *testing.T) {
	e := testEvaluator()
	assert.False(t, e.IsHighValue(1000000))
	assert.True(t, e.IsHighValue(1000001))
}

func TestDueDateAllowed(t *testing.T) {
	e := testEvaluator()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, e.DueDateAllowed(created, created.Add(90*24*time.Hour)))
	assert.False(t, e.DueDateAllowed(created, created.Add(90*24*time.Hour+time.Second)))
	assert.Equal(t, 90*24*time.Hour, e.MaxDueHorizon())
}
