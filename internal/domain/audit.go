package domain

import "time"

type ActorRole string

const (
	RoleAgent      ActorRole = "agent"
	RoleSupervisor ActorRole = "supervisor"
	RoleSystem     ActorRole = "system"
)

// Actor is the caller-supplied identity performing an action.
type Actor struct {
	ID   string    `json:"id"`
	Role ActorRole `json:"role"`
}

// SystemActor is used by the expiry sweep.
var SystemActor = Actor{ID: "system", Role: RoleSystem}

// AuditEvent is an immutable record of one offer transition.
// FromStatus is empty for the creation event.
type AuditEvent struct {
	ID         string      `json:"id"`
	OfferID    string      `json:"offer_id"`
	LoanID     string      `json:"loan_id"`
	ActorID    string      `json:"actor_id"`
	ActorRole  ActorRole   `json:"actor_role"`
	Action     Action      `json:"action"`
	FromStatus OfferStatus `json:"from_status"`
	ToStatus   OfferStatus `json:"to_status"`
	Comment    string      `json:"comment,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	PrevHash   string      `json:"prev_hash"`
	Hash       string      `json:"hash"`
}
