// Package audit seals offer audit events into a per-offer SHA-256 hash chain.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"settlement-engine/internal/domain"
	"settlement-engine/internal/repository"
)

// ErrChainBroken is returned by VerifyChain when an event was altered, removed or reordered.
var ErrChainBroken = errors.New("audit: hash chain broken")

// digestInput is everything in an event except its own hash. Field order is fixed by the
// struct, which keeps the JSON canonical.
type digestInput struct {
	ID         string             `json:"id"`
	OfferID    string             `json:"offer_id"`
	LoanID     string             `json:"loan_id"`
	ActorID    string             `json:"actor_id"`
	ActorRole  domain.ActorRole   `json:"actor_role"`
	Action     domain.Action      `json:"action"`
	FromStatus domain.OfferStatus `json:"from_status"`
	ToStatus   domain.OfferStatus `json:"to_status"`
	Comment    string             `json:"comment"`
	Timestamp  string             `json:"timestamp"`
	PrevHash   string             `json:"prev_hash"`
}

// Digest returns the hex SHA-256 of the event's canonical JSON.
func Digest(e domain.AuditEvent) (string, error) {
	b, err := json.Marshal(digestInput{
		ID:         e.ID,
		OfferID:    e.OfferID,
		LoanID:     e.LoanID,
		ActorID:    e.ActorID,
		ActorRole:  e.ActorRole,
		Action:     e.Action,
		FromStatus: e.FromStatus,
		ToStatus:   e.ToStatus,
		Comment:    e.Comment,
		Timestamp:  e.Timestamp.UTC().Format(time.RFC3339Nano),
		PrevHash:   e.PrevHash,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Seal links e to prev (nil for the first event of an offer) and computes its hash.
// Timestamps are truncated to microseconds so a round trip through PostgreSQL still verifies.
func Seal(e *domain.AuditEvent, prev *domain.AuditEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.Timestamp = e.Timestamp.UTC().Truncate(time.Microsecond)
	e.PrevHash = ""
	if prev != nil {
		e.PrevHash = prev.Hash
	}
	h, err := Digest(*e)
	if err != nil {
		return fmt.Errorf("seal audit event: %w", err)
	}
	e.Hash = h
	return nil
}

// Append seals e against the offer's latest event and records it through repo.
func Append(ctx context.Context, repo repository.AuditRepository, e *domain.AuditEvent) error {
	prev, err := repo.LastByOffer(ctx, e.OfferID)
	if err != nil {
		return err
	}
	if err := Seal(e, prev); err != nil {
		return err
	}
	return repo.Record(ctx, e)
}

// VerifyChain checks one offer's events, oldest first.
func VerifyChain(events []domain.AuditEvent) error {
	prevHash := ""
	for i, e := range events {
		if e.PrevHash != prevHash {
			return fmt.Errorf("%w: event %d (%s) does not link to its predecessor", ErrChainBroken, i, e.ID)
		}
		h, err := Digest(e)
		if err != nil {
			return err
		}
		if h != e.Hash {
			return fmt.Errorf("%w: event %d (%s) content does not match its hash", ErrChainBroken, i, e.ID)
		}
		prevHash = e.Hash
	}
	return nil
}
