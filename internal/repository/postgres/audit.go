package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"settlement-engine/internal/domain"
	"settlement-engine/internal/repository"
)

const auditColumns = `id, offer_id, loan_id, actor_id, actor_role, action, from_status, to_status, comment, occurred_at, prev_hash, hash`

type auditRepository struct {
	q querier
}

func NewAuditRepository(db *sql.DB) repository.AuditRepository {
	return &auditRepository{q: db}
}

func (r *auditRepository) Record(ctx context.Context, e *domain.AuditEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	query := `INSERT INTO offer_audit_events (` + auditColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.ExecContext(ctx, query, e.ID, e.OfferID, e.LoanID, e.ActorID, e.ActorRole, e.Action,
		e.FromStatus, e.ToStatus, e.Comment, e.Timestamp, e.PrevHash, e.Hash)
	if err != nil {
		return storageErr("record audit event", err)
	}
	return nil
}

func scanEvent(row rowScanner) (*domain.AuditEvent, error) {
	e := &domain.AuditEvent{}
	if err := row.Scan(&e.ID, &e.OfferID, &e.LoanID, &e.ActorID, &e.ActorRole, &e.Action,
		&e.FromStatus, &e.ToStatus, &e.Comment, &e.Timestamp, &e.PrevHash, &e.Hash); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *auditRepository) ListByOffer(ctx context.Context, offerID string) ([]domain.AuditEvent, error) {
	query := `SELECT ` + auditColumns + ` FROM offer_audit_events WHERE offer_id = $1 ORDER BY seq`
	rows, err := r.q.QueryContext(ctx, query, offerID)
	if err != nil {
		return nil, storageErr("list audit events", err)
	}
	defer rows.Close()

	events := []domain.AuditEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, storageErr("list audit events", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list audit events", err)
	}
	return events, nil
}

func (r *auditRepository) LastByOffer(ctx context.Context, offerID string) (*domain.AuditEvent, error) {
	query := `SELECT ` + auditColumns + ` FROM offer_audit_events WHERE offer_id = $1 ORDER BY seq DESC LIMIT 1`
	e, err := scanEvent(r.q.QueryRowContext(ctx, query, offerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("last audit event", err)
	}
	return e, nil
}
