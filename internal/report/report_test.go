package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"settlement-engine/internal/domain"
)

func sampleOffer() domain.Offer {
	created := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	sent := created.Add(time.Hour)
	return domain.Offer{
		ID:                     "o1",
		LoanID:                 "L-1",
		AgentID:                "agent-3",
		SettlementPercentage:   45,
		SettlementAmountCents:  450000,
		BalanceAtCreationCents: 1000000,
		Status:                 domain.OfferStatusSent,
		Classification:         domain.PolicyWithinPolicy,
		CreatedAt:              created,
		SentAt:                 &sent,
		DueDate:                created.AddDate(0, 0, 30),
	}
}

func TestBuildOfferLetterPDF(t *testing.T) {
	offer := sampleOffer()
	loan := &domain.Loan{ID: "L-1", CustomerName: "Dana Ruiz", Type: domain.LoanTypePersonal}

	data, err := BuildOfferLetterPDF(&offer, loan, offer.CreatedAt)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	assert.Equal(t, "settlement-offer-o1.pdf", LetterFilename(&offer))
}

func TestBuildHistoryXLSX(t *testing.T) {
	parent := sampleOffer()
	parent.Status = domain.OfferStatusCounterOffer
	child := sampleOffer()
	child.ID = "o2"
	child.ParentOfferID = &parent.ID
	child.Status = domain.OfferStatusDraft

	history := []domain.OfferHistory{
		{
			Offer:    parent,
			Response: &domain.CustomerResponse{OfferID: "o1", Type: domain.ResponseCounter},
			Events: []domain.AuditEvent{
				{OfferID: "o1", Action: domain.ActionCreate, ToStatus: domain.OfferStatusDraft, Timestamp: parent.CreatedAt},
				{OfferID: "o1", Action: domain.ActionSend, FromStatus: domain.OfferStatusDraft, ToStatus: domain.OfferStatusSent, Timestamp: parent.CreatedAt},
			},
		},
		{
			Offer:  child,
			Events: []domain.AuditEvent{{OfferID: "o2", Action: domain.ActionCreate, ToStatus: domain.OfferStatusDraft, Timestamp: child.CreatedAt}},
		},
	}

	data, err := BuildHistoryXLSX("L-1", history)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	offers, err := f.GetRows("offers")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(offers), 3)
	assert.Equal(t, "Offer ID", offers[0][0])
	assert.Equal(t, "o1", offers[1][0])
	assert.Equal(t, "COUNTER", offers[1][11])
	assert.Equal(t, "o2", offers[2][0])
	assert.Equal(t, "o1", offers[2][1])

	events, err := f.GetRows("events")
	require.NoError(t, err)
	assert.Len(t, events, 4)
	assert.Equal(t, "SEND", events[2][4])
}
