package repository

import (
	"context"

	"settlement-engine/internal/domain"
)

// LoanRepository is the read-only view of the external loan ledger.
type LoanRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Loan, error)
}

// OfferRepository holds offers. Get/List return copies; Update may only touch lifecycle
// fields through domain.OfferMutation.
type OfferRepository interface {
	Create(ctx context.Context, offer *domain.Offer) error
	GetByID(ctx context.Context, id string) (*domain.Offer, error)
	ListByLoan(ctx context.Context, loanID string) ([]domain.Offer, error)
	ListByStatus(ctx context.Context, status domain.OfferStatus) ([]domain.Offer, error)
	Update(ctx context.Context, id string, m domain.OfferMutation) (*domain.Offer, error)
}

// AuditRepository is append-only. There is deliberately no update or delete.
type AuditRepository interface {
	Record(ctx context.Context, event *domain.AuditEvent) error
	ListByOffer(ctx context.Context, offerID string) ([]domain.AuditEvent, error)
	LastByOffer(ctx context.Context, offerID string) (*domain.AuditEvent, error)
}

type ResponseRepository interface {
	Create(ctx context.Context, resp *domain.CustomerResponse) error
	GetByOffer(ctx context.Context, offerID string) (*domain.CustomerResponse, error)
}

type CommunicationRepository interface {
	Create(ctx context.Context, c *domain.Communication) error
	UpdateDelivery(ctx context.Context, id string, status domain.DeliveryStatus, errMsg string) error
	ListByOffer(ctx context.Context, offerID string) ([]domain.Communication, error)
}

// Tx is the set of repositories bound to one store transaction.
type Tx interface {
	Offers() OfferRepository
	Audit() AuditRepository
	Responses() ResponseRepository
	Communications() CommunicationRepository
}

// Store is the authoritative holder of offers and their audit trail. Reads through the
// embedded Tx see committed state; WithinTx commits every write made by fn or none.
type Store interface {
	Tx
	Loans() LoanRepository
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
