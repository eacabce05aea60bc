package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"settlement-engine/internal/domain"
	"settlement-engine/internal/logger"
	"settlement-engine/internal/repository"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Offers() repository.OfferRepository { return NewOfferRepository(s.db) }

func (s *Store) Audit() repository.AuditRepository { return NewAuditRepository(s.db) }

func (s *Store) Responses() repository.ResponseRepository { return NewResponseRepository(s.db) }

func (s *Store) Communications() repository.CommunicationRepository {
	return NewCommunicationRepository(s.db)
}

func (s *Store) Loans() repository.LoanRepository { return NewLoanRepository(s.db) }

// WithinTx runs fn inside one database transaction. Offer reads made through the tx lock
// their rows (SELECT ... FOR UPDATE) until commit.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	logger.DatabaseCall("BEGIN", "offers")
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin", err)
	}
	if err := fn(&txRepos{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.Error("Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	logger.DatabaseResult("COMMIT", 0, nil)
	return nil
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return storageErr("migrate", err)
	}
	return nil
}

type txRepos struct {
	tx *sql.Tx
}

func (r *txRepos) Offers() repository.OfferRepository {
	return &offerRepository{q: r.tx, forUpdate: true}
}

func (r *txRepos) Audit() repository.AuditRepository { return &auditRepository{q: r.tx} }

func (r *txRepos) Responses() repository.ResponseRepository { return &responseRepository{q: r.tx} }

func (r *txRepos) Communications() repository.CommunicationRepository {
	return &communicationRepository{q: r.tx}
}

const uniqueViolation = "23505"

// storageErr maps driver failures onto the domain sentinels.
func storageErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w: %s", op, domain.ErrInvalidTransition, pqErr.Constraint)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStorageUnavailable, err)
}

const schema = `
CREATE TABLE IF NOT EXISTS loans (
	id              TEXT PRIMARY KEY,
	customer_id     TEXT NOT NULL,
	customer_name   TEXT NOT NULL DEFAULT '',
	customer_email  TEXT NOT NULL DEFAULT '',
	customer_phone  TEXT NOT NULL DEFAULT '',
	loan_type       TEXT NOT NULL,
	balance_cents   BIGINT NOT NULL,
	is_secured      BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS settlement_offers (
	seq                       BIGSERIAL,
	id                        TEXT PRIMARY KEY,
	loan_id                   TEXT NOT NULL REFERENCES loans(id),
	agent_id                  TEXT NOT NULL,
	settlement_percentage     DOUBLE PRECISION NOT NULL,
	settlement_amount_cents   BIGINT NOT NULL,
	balance_at_creation_cents BIGINT NOT NULL,
	status                    TEXT NOT NULL,
	classification            TEXT NOT NULL,
	high_value                BOOLEAN NOT NULL DEFAULT FALSE,
	justification_notes       TEXT NOT NULL DEFAULT '',
	due_date                  TIMESTAMPTZ NOT NULL,
	created_at                TIMESTAMPTZ NOT NULL,
	sent_at                   TIMESTAMPTZ,
	response_at               TIMESTAMPTZ,
	expired_at                TIMESTAMPTZ,
	supervisor_id             TEXT,
	supervisor_comments       TEXT NOT NULL DEFAULT '',
	parent_offer_id           TEXT REFERENCES settlement_offers(id),
	channel                   TEXT,
	updated_at                TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_settlement_offers_loan ON settlement_offers (loan_id, created_at, seq);
CREATE INDEX IF NOT EXISTS idx_settlement_offers_status ON settlement_offers (status);

CREATE TABLE IF NOT EXISTS offer_audit_events (
	seq          BIGSERIAL PRIMARY KEY,
	id           TEXT NOT NULL UNIQUE,
	offer_id     TEXT NOT NULL REFERENCES settlement_offers(id),
	loan_id      TEXT NOT NULL,
	actor_id     TEXT NOT NULL,
	actor_role   TEXT NOT NULL,
	action       TEXT NOT NULL,
	from_status  TEXT NOT NULL DEFAULT '',
	to_status    TEXT NOT NULL,
	comment      TEXT NOT NULL DEFAULT '',
	occurred_at  TIMESTAMPTZ NOT NULL,
	prev_hash    TEXT NOT NULL DEFAULT '',
	hash         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_offer_audit_events_offer ON offer_audit_events (offer_id, seq);

CREATE TABLE IF NOT EXISTS customer_responses (
	id                   TEXT PRIMARY KEY,
	offer_id             TEXT NOT NULL UNIQUE REFERENCES settlement_offers(id),
	type                 TEXT NOT NULL,
	counter_percentage   DOUBLE PRECISION,
	counter_amount_cents BIGINT,
	counter_due_date     TIMESTAMPTZ,
	reason               TEXT NOT NULL DEFAULT '',
	notes                TEXT NOT NULL DEFAULT '',
	recorded_by          TEXT NOT NULL,
	responded_at         TIMESTAMPTZ NOT NULL,
	child_offer_id       TEXT
);

CREATE TABLE IF NOT EXISTS offer_communications (
	seq             BIGSERIAL,
	id              TEXT PRIMARY KEY,
	offer_id        TEXT NOT NULL REFERENCES settlement_offers(id),
	channel         TEXT NOT NULL,
	recipient       TEXT NOT NULL,
	subject         TEXT NOT NULL DEFAULT '',
	body            TEXT NOT NULL DEFAULT '',
	delivery_status TEXT NOT NULL,
	error           TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);
`
