package domain

import "fmt"

type Action string

const (
	ActionCreate   Action = "CREATE"
	ActionApprove  Action = "APPROVE"
	ActionReject   Action = "REJECT"
	ActionSendBack Action = "SEND_BACK"
	ActionSend     Action = "SEND"
	ActionAccept   Action = "RECORD_ACCEPTED"
	ActionDecline  Action = "RECORD_REJECTED"
	ActionCounter  Action = "RECORD_COUNTER"
	ActionExpire   Action = "EXPIRE"
	ActionCancel   Action = "CANCEL"
)

// transitions is the complete state machine. Every status must have a row, terminal
// statuses have an empty one. Draft+Approve is deliberately absent: it is handled as an
// idempotent no-op by the engine rather than a state change.
var transitions = map[OfferStatus]map[Action]OfferStatus{
	OfferStatusDraft: {
		ActionSend:   OfferStatusSent,
		ActionCancel: OfferStatusCancelled,
	},
	OfferStatusPendingApproval: {
		ActionApprove:  OfferStatusDraft,
		ActionReject:   OfferStatusRejectedBySupervisor,
		ActionSendBack: OfferStatusDraft,
		ActionCancel:   OfferStatusCancelled,
	},
	OfferStatusSent: {
		ActionAccept:  OfferStatusAccepted,
		ActionDecline: OfferStatusRejected,
		ActionCounter: OfferStatusCounterOffer,
		ActionExpire:  OfferStatusExpired,
		ActionCancel:  OfferStatusCancelled,
	},
	OfferStatusAccepted:             {},
	OfferStatusRejected:             {},
	OfferStatusCounterOffer:         {},
	OfferStatusRejectedBySupervisor: {},
	OfferStatusExpired:              {},
	OfferStatusCancelled:            {},
}

func init() {
	for _, s := range AllOfferStatuses() {
		if _, ok := transitions[s]; !ok {
			panic(fmt.Sprintf("domain: status %s missing from transition table", s))
		}
	}
	if len(transitions) != len(AllOfferStatuses()) {
		panic("domain: transition table has statuses not listed in AllOfferStatuses")
	}
}

// NextStatus returns the status reached by applying action to from, or ErrInvalidTransition.
func NextStatus(from OfferStatus, action Action) (OfferStatus, error) {
	row, ok := transitions[from]
	if !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, from)
	}
	to, ok := row[action]
	if !ok {
		return "", fmt.Errorf("%w: %s not allowed from %s", ErrInvalidTransition, action, from)
	}
	return to, nil
}

// InitialStatus is the status a new offer starts in for a given policy classification.
func InitialStatus(c PolicyClassification) OfferStatus {
	if c == PolicyWithinPolicy {
		return OfferStatusDraft
	}
	return OfferStatusPendingApproval
}
