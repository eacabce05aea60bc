package domain

import (
	"math"
	"time"
)

type OfferStatus string

const (
	OfferStatusDraft                OfferStatus = "DRAFT"
	OfferStatusPendingApproval      OfferStatus = "PENDING_APPROVAL"
	OfferStatusSent                 OfferStatus = "SENT"
	OfferStatusAccepted             OfferStatus = "ACCEPTED"
	OfferStatusRejected             OfferStatus = "REJECTED"
	OfferStatusCounterOffer         OfferStatus = "COUNTER_OFFER"
	OfferStatusRejectedBySupervisor OfferStatus = "REJECTED_BY_SUPERVISOR"
	OfferStatusExpired              OfferStatus = "EXPIRED"
	OfferStatusCancelled            OfferStatus = "CANCELLED"
)

// AllOfferStatuses lists every status in lifecycle order.
func AllOfferStatuses() []OfferStatus {
	return []OfferStatus{
		OfferStatusDraft,
		OfferStatusPendingApproval,
		OfferStatusSent,
		OfferStatusAccepted,
		OfferStatusRejected,
		OfferStatusCounterOffer,
		OfferStatusRejectedBySupervisor,
		OfferStatusExpired,
		OfferStatusCancelled,
	}
}

// Valid reports whether s is one of the known statuses.
func (s OfferStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no action can move an offer out of s.
// COUNTER_OFFER counts as resolved: the negotiation continues on the child offer.
func (s OfferStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

type PolicyClassification string

const (
	PolicyWithinPolicy PolicyClassification = "WITHIN_POLICY"
	PolicyBelowMinimum PolicyClassification = "BELOW_MINIMUM"
	PolicyAboveMaximum PolicyClassification = "ABOVE_MAXIMUM"
)

// Offer is the settlement offer aggregate. Terms (percentage, amount, balance basis)
// are written once at creation; only the lifecycle fields change afterwards.
type Offer struct {
	ID                     string               `json:"id"`
	LoanID                 string               `json:"loan_id"`
	AgentID                string               `json:"agent_id"`
	SettlementPercentage   float64              `json:"settlement_percentage"`
	SettlementAmountCents  int64                `json:"settlement_amount_cents"`
	BalanceAtCreationCents int64                `json:"balance_at_creation_cents"`
	Status                 OfferStatus          `json:"status"`
	Classification         PolicyClassification `json:"classification"`
	HighValue              bool                 `json:"high_value"`
	JustificationNotes     string               `json:"justification_notes"`
	DueDate                time.Time            `json:"due_date"`
	CreatedAt              time.Time            `json:"created_at"`
	SentAt                 *time.Time           `json:"sent_at,omitempty"`
	ResponseAt             *time.Time           `json:"response_at,omitempty"`
	ExpiredAt              *time.Time           `json:"expired_at,omitempty"`
	SupervisorID           *string              `json:"supervisor_id,omitempty"`
	SupervisorComments     string               `json:"supervisor_comments"`
	ParentOfferID          *string              `json:"parent_offer_id,omitempty"`
	Channel                *Channel             `json:"channel,omitempty"`
	UpdatedAt              time.Time            `json:"updated_at"`
}

// Clone returns a deep copy so callers never share pointers with the store.
func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	c := *o
	c.SentAt = cloneTime(o.SentAt)
	c.ResponseAt = cloneTime(o.ResponseAt)
	c.ExpiredAt = cloneTime(o.ExpiredAt)
	c.SupervisorID = cloneString(o.SupervisorID)
	c.ParentOfferID = cloneString(o.ParentOfferID)
	if o.Channel != nil {
		ch := *o.Channel
		c.Channel = &ch
	}
	return &c
}

// Apply copies the lifecycle fields of m onto the offer. Settlement terms are not part of
// OfferMutation and therefore cannot be changed here.
func (o *Offer) Apply(m OfferMutation, at time.Time) {
	if m.Status != nil {
		o.Status = *m.Status
	}
	if m.SentAt != nil {
		o.SentAt = cloneTime(m.SentAt)
	}
	if m.ResponseAt != nil {
		o.ResponseAt = cloneTime(m.ResponseAt)
	}
	if m.ExpiredAt != nil {
		o.ExpiredAt = cloneTime(m.ExpiredAt)
	}
	if m.SupervisorID != nil {
		o.SupervisorID = cloneString(m.SupervisorID)
	}
	if m.SupervisorComments != nil {
		o.SupervisorComments = *m.SupervisorComments
	}
	if m.Channel != nil {
		ch := *m.Channel
		o.Channel = &ch
	}
	o.UpdatedAt = at
}

// OfferMutation lists the only fields a transition may change.
type OfferMutation struct {
	Status             *OfferStatus
	SentAt             *time.Time
	ResponseAt         *time.Time
	ExpiredAt          *time.Time
	SupervisorID       *string
	SupervisorComments *string
	Channel            *Channel
	// UpdatedAt is the transition time. Zero lets the store pick its own clock.
	UpdatedAt time.Time
}

type ResponseType string

const (
	ResponseAccepted ResponseType = "ACCEPTED"
	ResponseRejected ResponseType = "REJECTED"
	ResponseCounter  ResponseType = "COUNTER"
)

func (t ResponseType) Valid() bool {
	switch t {
	case ResponseAccepted, ResponseRejected, ResponseCounter:
		return true
	}
	return false
}

// CustomerResponse is the single formal response that resolves a sent offer.
type CustomerResponse struct {
	ID                 string       `json:"id"`
	OfferID            string       `json:"offer_id"`
	Type               ResponseType `json:"type"`
	CounterPercentage  *float64     `json:"counter_percentage,omitempty"`
	CounterAmountCents *int64       `json:"counter_amount_cents,omitempty"`
	CounterDueDate     *time.Time   `json:"counter_due_date,omitempty"`
	Reason             string       `json:"reason"`
	Notes              string       `json:"notes"`
	RecordedBy         string       `json:"recorded_by"`
	RespondedAt        time.Time    `json:"responded_at"`
	ChildOfferID       *string      `json:"child_offer_id,omitempty"`
}

// Clone returns a deep copy of the response.
func (r *CustomerResponse) Clone() *CustomerResponse {
	if r == nil {
		return nil
	}
	c := *r
	if r.CounterPercentage != nil {
		v := *r.CounterPercentage
		c.CounterPercentage = &v
	}
	if r.CounterAmountCents != nil {
		v := *r.CounterAmountCents
		c.CounterAmountCents = &v
	}
	c.CounterDueDate = cloneTime(r.CounterDueDate)
	c.ChildOfferID = cloneString(r.ChildOfferID)
	return &c
}

// SettlementAmountCents computes pct% of balance, rounded half away from zero to the cent.
func SettlementAmountCents(balanceCents int64, pct float64) int64 {
	return int64(math.Round(float64(balanceCents) * pct / 100))
}

// SettlementPercentage is the inverse of SettlementAmountCents. It is left unrounded so that
// SettlementAmountCents(balance, SettlementPercentage(balance, amount)) == amount.
func SettlementPercentage(balanceCents, amountCents int64) float64 {
	if balanceCents == 0 {
		return 0
	}
	return float64(amountCents) * 100 / float64(balanceCents)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
