package audit

import (
	"context"
	"testing"
	"time"

	"settlement-engine/internal/domain"
	"settlement-engine/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildChain(t *testing.T) []domain.AuditEvent {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	base := time.Date(2026, 6, 1, 8, 30, 0, 123456789, time.UTC)

	steps := []struct {
		action   domain.Action
		from, to domain.OfferStatus
	}{
		{domain.ActionCreate, "", domain.OfferStatusDraft},
		{domain.ActionSend, domain.OfferStatusDraft, domain.OfferStatusSent},
		{domain.ActionAccept, domain.OfferStatusSent, domain.OfferStatusAccepted},
	}
	for i, s := range steps {
		e := &domain.AuditEvent{
			OfferID:    "o1",
			LoanID:     "loan-1",
			ActorID:    "agent-7",
			ActorRole:  domain.RoleAgent,
			Action:     s.action,
			FromStatus: s.from,
			ToStatus:   s.to,
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, Append(ctx, store.Audit(), e))
	}

	events, err := store.Audit().ListByOffer(ctx, "o1")
	require.NoError(t, err)
	return events
}

func TestAppend_LinksEvents(t *testing.T) {
	events := buildChain(t)
	require.Len(t, events, 3)

	assert.Empty(t, events[0].PrevHash)
	assert.Equal(t, events[0].Hash, events[1].PrevHash)
	assert.Equal(t, events[1].Hash, events[2].PrevHash)
	assert.Len(t, events[0].Hash, 64)
	assert.Equal(t, 0, events[0].Timestamp.Nanosecond()%1000)

	assert.NoError(t, VerifyChain(events))
	assert.NoError(t, VerifyChain(nil))
}

func TestVerifyChain_DetectsTampering(t *testing.T) {
	t.Run("Edited", func(t *testing.T) {
		events := buildChain(t)
		events[1].ToStatus = domain.OfferStatusCancelled
		assert.ErrorIs(t, VerifyChain(events), ErrChainBroken)
	})

	t.Run("Removed", func(t *testing.T) {
		events := buildChain(t)
		assert.ErrorIs(t, VerifyChain([]domain.AuditEvent{events[0], events[2]}), ErrChainBroken)
	})

	t.Run("Reordered", func(t *testing.T) {
		events := buildChain(t)
		events[1], events[2] = events[2], events[1]
		assert.ErrorIs(t, VerifyChain(events), ErrChainBroken)
	})
}

func TestDigest_StableAcrossTimezones(t *testing.T) {
	ts := time.Date(2026, 6, 1, 8, 30, 0, 0, time.UTC)
	e := domain.AuditEvent{ID: "e1", OfferID: "o1", Action: domain.ActionCreate, Timestamp: ts}
	h1, err := Digest(e)
	require.NoError(t, err)

	e.Timestamp = ts.In(time.FixedZone("EST", -5*3600))
	h2, err := Digest(e)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}
