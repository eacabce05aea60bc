package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"settlement-engine/internal/domain"
	"settlement-engine/internal/repository"
)

type responseRepository struct {
	q querier
}

func NewResponseRepository(db *sql.DB) repository.ResponseRepository {
	return &responseRepository{q: db}
}

// Create relies on the UNIQUE(offer_id) constraint to keep one response per offer.
func (r *responseRepository) Create(ctx context.Context, resp *domain.CustomerResponse) error {
	if resp.ID == "" {
		resp.ID = uuid.New().String()
	}
	query := `INSERT INTO customer_responses (id, offer_id, type, counter_percentage, counter_amount_cents, counter_due_date, reason, notes, recorded_by, responded_at, child_offer_id)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.ExecContext(ctx, query, resp.ID, resp.OfferID, resp.Type, resp.CounterPercentage, resp.CounterAmountCents,
		resp.CounterDueDate, resp.Reason, resp.Notes, resp.RecordedBy, resp.RespondedAt, resp.ChildOfferID)
	if err != nil {
		return storageErr("create response", err)
	}
	return nil
}

func (r *responseRepository) GetByOffer(ctx context.Context, offerID string) (*domain.CustomerResponse, error) {
	resp := &domain.CustomerResponse{}
	query := `SELECT id, offer_id, type, counter_percentage, counter_amount_cents, counter_due_date, reason, notes, recorded_by, responded_at, child_offer_id
	          FROM customer_responses WHERE offer_id = $1`
	err := r.q.QueryRowContext(ctx, query, offerID).Scan(&resp.ID, &resp.OfferID, &resp.Type, &resp.CounterPercentage, &resp.CounterAmountCents,
		&resp.CounterDueDate, &resp.Reason, &resp.Notes, &resp.RecordedBy, &resp.RespondedAt, &resp.ChildOfferID)
	if err != nil {
		return nil, storageErr("get response for "+offerID, err)
	}
	return resp, nil
}
