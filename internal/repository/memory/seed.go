package memory

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"settlement-engine/internal/domain"
)

type seedFile struct {
	Loans []seedLoan `yaml:"loans"`
}

type seedLoan struct {
	ID            string `yaml:"id"`
	CustomerID    string `yaml:"customer_id"`
	CustomerName  string `yaml:"customer_name"`
	CustomerEmail string `yaml:"customer_email"`
	CustomerPhone string `yaml:"customer_phone"`
	LoanType      string `yaml:"loan_type"`
	BalanceCents  int64  `yaml:"balance_cents"`
	IsSecured     bool   `yaml:"is_secured"`
}

// LoadLoans reads a YAML list of loans and puts each one in the store.
func (s *Store) LoadLoans(r io.Reader) (int, error) {
	var f seedFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && err != io.EOF {
		return 0, fmt.Errorf("decode loan seed: %w", err)
	}
	for i, l := range f.Loans {
		if l.ID == "" {
			return 0, fmt.Errorf("loan seed entry %d has no id", i)
		}
		if l.BalanceCents < 0 {
			return 0, fmt.Errorf("loan %s has a negative balance", l.ID)
		}
	}
	for _, l := range f.Loans {
		s.PutLoan(domain.Loan{
			ID:            l.ID,
			CustomerID:    l.CustomerID,
			CustomerName:  l.CustomerName,
			CustomerEmail: l.CustomerEmail,
			CustomerPhone: l.CustomerPhone,
			Type:          domain.LoanType(l.LoanType),
			BalanceCents:  l.BalanceCents,
			IsSecured:     l.IsSecured,
		})
	}
	return len(f.Loans), nil
}

func (s *Store) LoadLoansFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open loan seed: %w", err)
	}
	defer f.Close()
	return s.LoadLoans(f)
}
