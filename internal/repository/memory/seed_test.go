package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"settlement-engine/internal/domain"
)

func TestLoadLoans(t *testing.T) {
	s := NewStore()
	n, err := s.LoadLoans(strings.NewReader(`
loans:
  - id: LN-1
    customer_name: Dana Reyes
    customer_email: dana@example.com
    loan_type: PERSONAL
    balance_cents: 1000000
  - id: LN-2
    loan_type: MORTGAGE
    balance_cents: 250000
    is_secured: true
`))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	loan, err := s.Loans().GetByID(context.Background(), "LN-2")
	require.NoError(t, err)
	assert.True(t, loan.IsSecured)
	assert.Equal(t, domain.LoanTypeMortgage, loan.Type)
	assert.Equal(t, int64(250000), loan.BalanceCents)
}

func TestLoadLoans_Invalid(t *testing.T) {
	s := NewStore()

	_, err := s.LoadLoans(strings.NewReader("loans:\n  - customer_name: nobody\n"))
	assert.Error(t, err)

	_, err = s.LoadLoans(strings.NewReader("loans:\n  - id: LN-9\n    balance_cents: -5\n"))
	assert.Error(t, err)
	_, err = s.Loans().GetByID(context.Background(), "LN-9")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	n, err := s.LoadLoans(strings.NewReader(""))
	assert.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.LoadLoansFile("does/not/exist.yaml")
	assert.Error(t, err)
}
