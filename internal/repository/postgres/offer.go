package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"settlement-engine/internal/domain"
	"settlement-engine/internal/repository"
)

const offerColumns = `id, loan_id, agent_id, settlement_percentage, settlement_amount_cents, balance_at_creation_cents,
	status, classification, high_value, justification_notes, due_date, created_at, sent_at, response_at, expired_at,
	supervisor_id, supervisor_comments, parent_offer_id, channel, updated_at`

type offerRepository struct {
	q         querier
	forUpdate bool
}

func NewOfferRepository(db *sql.DB) repository.OfferRepository {
	return &offerRepository{q: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffer(row rowScanner) (*domain.Offer, error) {
	o := &domain.Offer{}
	err := row.Scan(&o.ID, &o.LoanID, &o.AgentID, &o.SettlementPercentage, &o.SettlementAmountCents, &o.BalanceAtCreationCents,
		&o.Status, &o.Classification, &o.HighValue, &o.JustificationNotes, &o.DueDate, &o.CreatedAt, &o.SentAt, &o.ResponseAt, &o.ExpiredAt,
		&o.SupervisorID, &o.SupervisorComments, &o.ParentOfferID, &o.Channel, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *offerRepository) Create(ctx context.Context, o *domain.Offer) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	query := `INSERT INTO settlement_offers (` + offerColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`
	_, err := r.q.ExecContext(ctx, query, o.ID, o.LoanID, o.AgentID, o.SettlementPercentage, o.SettlementAmountCents, o.BalanceAtCreationCents,
		o.Status, o.Classification, o.HighValue, o.JustificationNotes, o.DueDate, o.CreatedAt, o.SentAt, o.ResponseAt, o.ExpiredAt,
		o.SupervisorID, o.SupervisorComments, o.ParentOfferID, o.Channel, o.UpdatedAt)
	if err != nil {
		return storageErr("create offer", err)
	}
	return nil
}

func (r *offerRepository) GetByID(ctx context.Context, id string) (*domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM settlement_offers WHERE id = $1`
	if r.forUpdate {
		query += ` FOR UPDATE`
	}
	o, err := scanOffer(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, storageErr("get offer "+id, err)
	}
	return o, nil
}

func (r *offerRepository) ListByLoan(ctx context.Context, loanID string) ([]domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM settlement_offers WHERE loan_id = $1 ORDER BY created_at, seq`
	return r.list(ctx, "list offers by loan", query, loanID)
}

func (r *offerRepository) ListByStatus(ctx context.Context, status domain.OfferStatus) ([]domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM settlement_offers WHERE status = $1 ORDER BY created_at, seq`
	return r.list(ctx, "list offers by status", query, status)
}

func (r *offerRepository) list(ctx context.Context, op, query string, arg any) ([]domain.Offer, error) {
	rows, err := r.q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	offers := []domain.Offer{}
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		offers = append(offers, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return offers, nil
}

// Update writes the non-nil lifecycle fields of m. Terms columns are never part of the SET list.
func (r *offerRepository) Update(ctx context.Context, id string, m domain.OfferMutation) (*domain.Offer, error) {
	query := `UPDATE settlement_offers SET
	            status = COALESCE($1, status),
	            sent_at = COALESCE($2, sent_at),
	            response_at = COALESCE($3, response_at),
	            expired_at = COALESCE($4, expired_at),
	            supervisor_id = COALESCE($5, supervisor_id),
	            supervisor_comments = COALESCE($6, supervisor_comments),
	            channel = COALESCE($7, channel),
	            updated_at = $8
	          WHERE id = $9
	          RETURNING ` + offerColumns
	at := m.UpdatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	o, err := scanOffer(r.q.QueryRowContext(ctx, query,
		nullString(m.Status), m.SentAt, m.ResponseAt, m.ExpiredAt, m.SupervisorID, m.SupervisorComments, nullString(m.Channel),
		at, id))
	if err != nil {
		return nil, storageErr("update offer "+id, err)
	}
	return o, nil
}

// nullString flattens typed string pointers (status, channel) into something the driver accepts.
func nullString[T ~string](v *T) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*v), Valid: true}
}
