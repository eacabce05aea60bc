package domain

type LoanType string

const (
	LoanTypePersonal   LoanType = "PERSONAL"
	LoanTypeMortgage   LoanType = "MORTGAGE"
	LoanTypeBusiness   LoanType = "BUSINESS"
	LoanTypeCreditCard LoanType = "CREDIT_CARD"
)

// Loan is reference data owned by the loan ledger. The engine only reads it.
type Loan struct {
	ID            string   `json:"id"`
	CustomerID    string   `json:"customer_id"`
	CustomerName  string   `json:"customer_name"`
	CustomerEmail string   `json:"customer_email"`
	CustomerPhone string   `json:"customer_phone"`
	Type          LoanType `json:"loan_type"`
	BalanceCents  int64    `json:"balance_cents"`
	IsSecured     bool     `json:"is_secured"`
}
