package postgres_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"settlement-engine/internal/domain"
	"settlement-engine/internal/repository"
	"settlement-engine/internal/repository/postgres"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var offerCols = []string{"id", "loan_id", "agent_id", "settlement_percentage", "settlement_amount_cents", "balance_at_creation_cents",
	"status", "classification", "high_value", "justification_notes", "due_date", "created_at", "sent_at", "response_at", "expired_at",
	"supervisor_id", "supervisor_comments", "parent_offer_id", "channel", "updated_at"}

func offerRow(id, status string, created time.Time, sentAt any, channel any) []driver.Value {
	return []driver.Value{id, "loan-1", "agent-1", 50.0, int64(5000), int64(10000),
		status, "WITHIN_POLICY", false, "", created.Add(72 * time.Hour), created, sentAt, nil, nil,
		nil, "", nil, channel, created}
}

func TestOfferRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewOfferRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		offer := &domain.Offer{
			LoanID:                 "loan-1",
			AgentID:                "agent-1",
			SettlementPercentage:   50,
			SettlementAmountCents:  5000,
			BalanceAtCreationCents: 10000,
			Status:                 domain.OfferStatusDraft,
			Classification:         domain.PolicyWithinPolicy,
			DueDate:                now.Add(72 * time.Hour),
			CreatedAt:              now,
		}

		mock.ExpectExec("INSERT INTO settlement_offers").
			WithArgs(sqlmock.AnyArg(), "loan-1", "agent-1", 50.0, int64(5000), int64(10000), "DRAFT", "WITHIN_POLICY", false, "",
				offer.DueDate, now, nil, nil, nil, nil, "", nil, nil, now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Create(ctx, offer)
		assert.NoError(t, err)
		assert.NotEmpty(t, offer.ID)
		assert.Equal(t, now, offer.UpdatedAt)
	})

	t.Run("DriverFailure", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO settlement_offers").WillReturnError(errors.New("connection reset"))
		err := repo.Create(ctx, &domain.Offer{ID: "o2", CreatedAt: now})
		assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewOfferRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		sent := now.Add(time.Hour)
		rows := sqlmock.NewRows(offerCols).AddRow(offerRow("o1", "SENT", now, sent, "EMAIL")...)
		mock.ExpectQuery("SELECT (.+) FROM settlement_offers WHERE id = \\$1").
			WithArgs("o1").
			WillReturnRows(rows)

		offer, err := repo.GetByID(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, domain.OfferStatusSent, offer.Status)
		require.NotNil(t, offer.SentAt)
		assert.Equal(t, sent, *offer.SentAt)
		require.NotNil(t, offer.Channel)
		assert.Equal(t, domain.ChannelEmail, *offer.Channel)
		assert.Nil(t, offer.ParentOfferID)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM settlement_offers WHERE id = \\$1").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(offerCols))

		_, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferRepository_ListByLoan(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewOfferRepository(db)
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(offerCols).
		AddRow(offerRow("o1", "COUNTER_OFFER", now, now, "EMAIL")...).
		AddRow(offerRow("o2", "DRAFT", now.Add(time.Minute), nil, nil)...)
	mock.ExpectQuery("SELECT (.+) FROM settlement_offers WHERE loan_id = \\$1 ORDER BY created_at, seq").
		WithArgs("loan-1").
		WillReturnRows(rows)

	offers, err := repo.ListByLoan(context.Background(), "loan-1")
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Equal(t, "o1", offers[0].ID)
	assert.Equal(t, "o2", offers[1].ID)
	assert.Nil(t, offers[1].Channel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOfferRepository_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewOfferRepository(db)
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	sentAt := now.Add(time.Hour)
	status := domain.OfferStatusSent
	channel := domain.ChannelSMS

	mock.ExpectQuery("UPDATE settlement_offers SET").
		WithArgs("SENT", sentAt, nil, nil, nil, nil, "SMS", sqlmock.AnyArg(), "o1").
		WillReturnRows(sqlmock.NewRows(offerCols).AddRow(offerRow("o1", "SENT", now, sentAt, "SMS")...))

	updated, err := repo.Update(context.Background(), "o1", domain.OfferMutation{Status: &status, SentAt: &sentAt, Channel: &channel})
	require.NoError(t, err)
	assert.Equal(t, domain.OfferStatusSent, updated.Status)
	assert.Equal(t, int64(5000), updated.SettlementAmountCents)

	stamp := now.Add(2 * time.Hour)
	mock.ExpectQuery("UPDATE settlement_offers SET").
		WithArgs("SENT", sentAt, nil, nil, nil, nil, "SMS", stamp, "o1").
		WillReturnRows(sqlmock.NewRows(offerCols).AddRow(offerRow("o1", "SENT", now, sentAt, "SMS")...))
	_, err = repo.Update(context.Background(), "o1", domain.OfferMutation{Status: &status, SentAt: &sentAt, Channel: &channel, UpdatedAt: stamp})
	require.NoError(t, err)

	mock.ExpectQuery("UPDATE settlement_offers SET").WillReturnRows(sqlmock.NewRows(offerCols))
	_, err = repo.Update(context.Background(), "missing", domain.OfferMutation{Status: &status})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	store := postgres.NewStore(db)
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	t.Run("Commit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM settlement_offers WHERE id = \\$1 FOR UPDATE").
			WithArgs("o1").
			WillReturnRows(sqlmock.NewRows(offerCols).AddRow(offerRow("o1", "DRAFT", now, nil, nil)...))
		mock.ExpectExec("INSERT INTO offer_audit_events").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := store.WithinTx(ctx, func(tx repository.Tx) error {
			o, err := tx.Offers().GetByID(ctx, "o1")
			if err != nil {
				return err
			}
			return tx.Audit().Record(ctx, &domain.AuditEvent{OfferID: o.ID, LoanID: o.LoanID, Action: domain.ActionCancel, Timestamp: now})
		})
		assert.NoError(t, err)
	})

	t.Run("RollbackOnError", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO offer_communications").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := store.WithinTx(ctx, func(tx repository.Tx) error {
			if err := tx.Communications().Create(ctx, &domain.Communication{OfferID: "o1", Channel: domain.ChannelEmail, CreatedAt: now}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("BeginFailure", func(t *testing.T) {
		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))
		err := store.WithinTx(ctx, func(tx repository.Tx) error { return nil })
		assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResponseRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewResponseRepository(db)
	ctx := context.Background()
	resp := &domain.CustomerResponse{OfferID: "o1", Type: domain.ResponseAccepted, RecordedBy: "agent-1", RespondedAt: time.Now()}

	mock.ExpectExec("INSERT INTO customer_responses").WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Create(ctx, resp))

	mock.ExpectExec("INSERT INTO customer_responses").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "customer_responses_offer_id_key"})
	err = repo.Create(ctx, &domain.CustomerResponse{OfferID: "o1", Type: domain.ResponseRejected})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_LastByOffer(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewAuditRepository(db)
	ctx := context.Background()
	cols := []string{"id", "offer_id", "loan_id", "actor_id", "actor_role", "action", "from_status", "to_status", "comment", "occurred_at", "prev_hash", "hash"}

	mock.ExpectQuery("SELECT (.+) FROM offer_audit_events WHERE offer_id = \\$1 ORDER BY seq DESC LIMIT 1").
		WithArgs("o1").
		WillReturnRows(sqlmock.NewRows(cols))
	last, err := repo.LastByOffer(ctx, "o1")
	require.NoError(t, err)
	assert.Nil(t, last)

	mock.ExpectQuery("SELECT (.+) FROM offer_audit_events WHERE offer_id = \\$1 ORDER BY seq").
		WithArgs("o1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("e1", "o1", "loan-1", "agent-1", "agent", "CREATE", "", "DRAFT", "", time.Now(), "", "h1").
			AddRow("e2", "o1", "loan-1", "agent-1", "agent", "SEND", "DRAFT", "SENT", "", time.Now(), "h1", "h2"))
	events, err := repo.ListByOffer(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.ActionSend, events[1].Action)
	assert.Equal(t, "h1", events[1].PrevHash)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommunicationRepository_UpdateDelivery(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewCommunicationRepository(db)
	ctx := context.Background()

	mock.ExpectExec("UPDATE offer_communications SET delivery_status").
		WithArgs("DELIVERED", "", sqlmock.AnyArg(), "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.UpdateDelivery(ctx, "c1", domain.DeliveryDelivered, ""))

	mock.ExpectExec("UPDATE offer_communications SET delivery_status").WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.UpdateDelivery(ctx, "missing", domain.DeliveryFailed, "bounced")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoanRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewLoanRepository(db)
	mock.ExpectQuery("SELECT (.+) FROM loans WHERE id = \\$1").
		WithArgs("loan-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "customer_name", "customer_email", "customer_phone", "loan_type", "balance_cents", "is_secured"}).
			AddRow("loan-1", "cust-1", "Dana Ruiz", "dana@example.com", "+15550100", "PERSONAL", int64(2000000), false))

	loan, err := repo.GetByID(context.Background(), "loan-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2000000), loan.BalanceCents)
	assert.Equal(t, domain.LoanTypePersonal, loan.Type)
	assert.False(t, loan.IsSecured)
	assert.NoError(t, mock.ExpectationsWereMet())
}
