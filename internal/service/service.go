package service

import (
	"context"
	"time"

	"settlement-engine/internal/domain"
	"settlement-engine/internal/policy"
)

// NegotiationService is the settlement offer engine. Every mutating call validates the actor,
// serialises on the offer, and commits the offer change together with its audit event.
type NegotiationService interface {
	CreateOffer(ctx context.Context, req CreateOfferRequest) (*domain.Offer, error)
	Send(ctx context.Context, offerID string, actor domain.Actor, channel domain.Channel) (*domain.Offer, *domain.Communication, error)
	RecordResponse(ctx context.Context, offerID string, actor domain.Actor, details ResponseDetails) (*domain.Offer, *domain.Offer, error) // parent, counter child
	SupervisorDecision(ctx context.Context, offerID string, actor domain.Actor, decision Decision, comment string) (*domain.Offer, error)
	Cancel(ctx context.Context, offerID string, actor domain.Actor, comment string) (*domain.Offer, error)
	Expire(ctx context.Context, offerID string) (*domain.Offer, error)
	ExpireDueOffers(ctx context.Context) (*SweepResult, error)

	GetOffer(ctx context.Context, offerID string) (*domain.Offer, error)
	GetHistory(ctx context.Context, loanID string) ([]domain.OfferHistory, error)
	ListPendingApprovals(ctx context.Context) ([]ReviewItem, error)
	Summary(ctx context.Context) (*Summary, error)

	OfferLetter(ctx context.Context, offerID string) ([]byte, error)
	HistoryWorkbook(ctx context.Context, loanID string) ([]byte, error)
}

type CreateOfferRequest struct {
	LoanID        string
	Agent         domain.Actor
	Percentage    float64
	DueDate       time.Time
	Justification string
}

// ResponseDetails describes the customer's answer to a sent offer. For a counter, at least one
// of CounterPercentage and CounterAmountCents is required; the amount wins when both are set.
type ResponseDetails struct {
	Type               domain.ResponseType
	CounterPercentage  *float64
	CounterAmountCents *int64
	CounterDueDate     *time.Time
	Reason             string
	Notes              string
}

type Decision string

const (
	DecisionApprove  Decision = "APPROVE"
	DecisionReject   Decision = "REJECT"
	DecisionSendBack Decision = "SEND_BACK"
)

func (d Decision) action() (domain.Action, bool) {
	switch d {
	case DecisionApprove:
		return domain.ActionApprove, true
	case DecisionReject:
		return domain.ActionReject, true
	case DecisionSendBack:
		return domain.ActionSendBack, true
	}
	return "", false
}

// SweepResult reports one expiry sweep.
type SweepResult struct {
	Scanned    int      `json:"scanned"`
	Expired    int      `json:"expired"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	ExpiredIDs []string `json:"expired_ids"`
}

// ReviewItem is one entry in the supervisor approval queue.
type ReviewItem struct {
	Offer          domain.Offer                `json:"offer"`
	Loan           *domain.Loan                `json:"loan,omitempty"`
	Band           policy.Band                 `json:"band"`
	Classification domain.PolicyClassification `json:"classification"`
	HighValue      bool                        `json:"high_value"`
}

// Summary is the portfolio view shown on the dashboard.
type Summary struct {
	TotalOffers         int                        `json:"total_offers"`
	ByStatus            map[domain.OfferStatus]int `json:"by_status"`
	PendingApprovals    int                        `json:"pending_approvals"`
	AcceptedCount       int                        `json:"accepted_count"`
	AcceptedAmountCents int64                      `json:"accepted_amount_cents"`
	AveragePercentage   float64                    `json:"average_percentage"`
	AcceptanceRate      float64                    `json:"acceptance_rate"`
}

// Clock supplies the engine's notion of now.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func SystemClock() Clock { return systemClock{} }
