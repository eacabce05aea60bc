package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"settlement-engine/internal/domain"
	"settlement-engine/internal/repository"
)

type communicationRepository struct {
	q querier
}

func NewCommunicationRepository(db *sql.DB) repository.CommunicationRepository {
	return &communicationRepository{q: db}
}

func (r *communicationRepository) Create(ctx context.Context, c *domain.Communication) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	query := `INSERT INTO offer_communications (id, offer_id, channel, recipient, subject, body, delivery_status, error, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.ExecContext(ctx, query, c.ID, c.OfferID, c.Channel, c.Recipient, c.Subject, c.Body, c.DeliveryStatus, c.Error, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return storageErr("create communication", err)
	}
	return nil
}

func (r *communicationRepository) UpdateDelivery(ctx context.Context, id string, status domain.DeliveryStatus, errMsg string) error {
	query := `UPDATE offer_communications SET delivery_status = $1, error = $2, updated_at = $3 WHERE id = $4`
	res, err := r.q.ExecContext(ctx, query, status, errMsg, time.Now().UTC(), id)
	if err != nil {
		return storageErr("update communication", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("update communication", err)
	}
	if n == 0 {
		return fmt.Errorf("communication %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *communicationRepository) ListByOffer(ctx context.Context, offerID string) ([]domain.Communication, error) {
	query := `SELECT id, offer_id, channel, recipient, subject, body, delivery_status, error, created_at, updated_at
	          FROM offer_communications WHERE offer_id = $1 ORDER BY created_at, seq`
	rows, err := r.q.QueryContext(ctx, query, offerID)
	if err != nil {
		return nil, storageErr("list communications", err)
	}
	defer rows.Close()

	comms := []domain.Communication{}
	for rows.Next() {
		var c domain.Communication
		if err := rows.Scan(&c.ID, &c.OfferID, &c.Channel, &c.Recipient, &c.Subject, &c.Body, &c.DeliveryStatus, &c.Error, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, storageErr("list communications", err)
		}
		comms = append(comms, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list communications", err)
	}
	return comms, nil
}
