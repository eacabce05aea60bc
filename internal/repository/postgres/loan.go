package postgres

import (
	"context"
	"database/sql"

	"settlement-engine/internal/domain"
	"settlement-engine/internal/repository"
)

type loanRepository struct {
	db *sql.DB
}

func NewLoanRepository(db *sql.DB) repository.LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	l := &domain.Loan{}
	query := `SELECT id, customer_id, customer_name, customer_email, customer_phone, loan_type, balance_cents, is_secured FROM loans WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&l.ID, &l.CustomerID, &l.CustomerName, &l.CustomerEmail, &l.CustomerPhone, &l.Type, &l.BalanceCents, &l.IsSecured)
	if err != nil {
		return nil, storageErr("get loan "+id, err)
	}
	return l, nil
}
