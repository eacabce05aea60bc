// Package memory is the in-process Store used by the default configuration and by tests.
// All state lives behind one RWMutex; every value handed out is a copy.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"settlement-engine/internal/domain"
	"settlement-engine/internal/repository"
)

type Store struct {
	mu sync.RWMutex

	offers      map[string]*domain.Offer
	offerOrder  []string
	loanOffers  map[string][]string
	events      map[string][]domain.AuditEvent
	responses   map[string]*domain.CustomerResponse
	comms       map[string]*domain.Communication
	offerComms  map[string][]string
	loans       map[string]*domain.Loan
	unavailable bool
	failCommit  bool

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		offers:     make(map[string]*domain.Offer),
		loanOffers: make(map[string][]string),
		events:     make(map[string][]domain.AuditEvent),
		responses:  make(map[string]*domain.CustomerResponse),
		comms:      make(map[string]*domain.Communication),
		offerComms: make(map[string][]string),
		loans:      make(map[string]*domain.Loan),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// PutLoan inserts or replaces a loan in the in-memory ledger.
func (s *Store) PutLoan(loan domain.Loan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := loan
	s.loans[loan.ID] = &l
}

// SetUnavailable makes every subsequent call fail with ErrStorageUnavailable.
func (s *Store) SetUnavailable(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = v
}

// FailOnCommit makes WithinTx roll back after fn succeeds, as a backend losing the commit would.
func (s *Store) FailOnCommit(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCommit = v
}

func (s *Store) Offers() repository.OfferRepository { return &offerRepo{s: s} }

func (s *Store) Audit() repository.AuditRepository { return &auditRepo{s: s} }

func (s *Store) Responses() repository.ResponseRepository { return &responseRepo{s: s} }

func (s *Store) Communications() repository.CommunicationRepository { return &commRepo{s: s} }

func (s *Store) Loans() repository.LoanRepository { return &loanRepo{s: s} }

// WithinTx runs fn with the store locked exclusively. Writes are applied in place and
// undone in reverse order if fn (or the commit) fails.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return unavailable()
	}

	t := &txn{}
	err := fn(&txRepos{s: s, tx: t})
	if err == nil && s.failCommit {
		err = fmt.Errorf("%w: commit failed", domain.ErrStorageUnavailable)
	}
	if err != nil {
		t.rollback()
		return err
	}
	return nil
}

func unavailable() error {
	return fmt.Errorf("%w: memory store offline", domain.ErrStorageUnavailable)
}

type txn struct {
	undo []func()
}

func (t *txn) onRollback(f func()) {
	if t != nil {
		t.undo = append(t.undo, f)
	}
}

func (t *txn) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

type txRepos struct {
	s  *Store
	tx *txn
}

func (r *txRepos) Offers() repository.OfferRepository { return &offerRepo{s: r.s, tx: r.tx} }

func (r *txRepos) Audit() repository.AuditRepository { return &auditRepo{s: r.s, tx: r.tx} }

func (r *txRepos) Responses() repository.ResponseRepository {
	return &responseRepo{s: r.s, tx: r.tx}
}

func (r *txRepos) Communications() repository.CommunicationRepository {
	return &commRepo{s: r.s, tx: r.tx}
}

// lock takes the store lock unless the call runs inside WithinTx, which already holds it.
func (s *Store) lock(tx *txn, write bool) (func(), error) {
	if tx != nil {
		return func() {}, nil
	}
	if write {
		s.mu.Lock()
		if s.unavailable {
			s.mu.Unlock()
			return nil, unavailable()
		}
		return s.mu.Unlock, nil
	}
	s.mu.RLock()
	if s.unavailable {
		s.mu.RUnlock()
		return nil, unavailable()
	}
	return s.mu.RUnlock, nil
}

type loanRepo struct {
	s *Store
}

func (r *loanRepo) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	unlock, err := r.s.lock(nil, false)
	if err != nil {
		return nil, err
	}
	defer unlock()
	l, ok := r.s.loans[id]
	if !ok {
		return nil, fmt.Errorf("loan %s: %w", id, domain.ErrNotFound)
	}
	c := *l
	return &c, nil
}

type offerRepo struct {
	s  *Store
	tx *txn
}

func (r *offerRepo) Create(ctx context.Context, offer *domain.Offer) error {
	unlock, err := r.s.lock(r.tx, true)
	if err != nil {
		return err
	}
	defer unlock()

	if offer.ID == "" {
		offer.ID = uuid.New().String()
	}
	if _, exists := r.s.offers[offer.ID]; exists {
		return fmt.Errorf("offer %s: %w: duplicate id", offer.ID, domain.ErrInvalidRequest)
	}
	if offer.UpdatedAt.IsZero() {
		offer.UpdatedAt = offer.CreatedAt
	}

	s := r.s
	id, loanID := offer.ID, offer.LoanID
	s.offers[id] = offer.Clone()
	s.offerOrder = append(s.offerOrder, id)
	s.loanOffers[loanID] = append(s.loanOffers[loanID], id)
	r.tx.onRollback(func() {
		delete(s.offers, id)
		s.offerOrder = s.offerOrder[:len(s.offerOrder)-1]
		s.loanOffers[loanID] = s.loanOffers[loanID][:len(s.loanOffers[loanID])-1]
		if len(s.loanOffers[loanID]) == 0 {
			delete(s.loanOffers, loanID)
		}
	})
	return nil
}

func (r *offerRepo) GetByID(ctx context.Context, id string) (*domain.Offer, error) {
	unlock, err := r.s.lock(r.tx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()
	o, ok := r.s.offers[id]
	if !ok {
		return nil, fmt.Errorf("offer %s: %w", id, domain.ErrNotFound)
	}
	return o.Clone(), nil
}

func (r *offerRepo) ListByLoan(ctx context.Context, loanID string) ([]domain.Offer, error) {
	unlock, err := r.s.lock(r.tx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()
	ids := r.s.loanOffers[loanID]
	out := make([]domain.Offer, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.s.offers[id].Clone())
	}
	return out, nil
}

func (r *offerRepo) ListByStatus(ctx context.Context, status domain.OfferStatus) ([]domain.Offer, error) {
	unlock, err := r.s.lock(r.tx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()
	var out []domain.Offer
	for _, id := range r.s.offerOrder {
		if o := r.s.offers[id]; o.Status == status {
			out = append(out, *o.Clone())
		}
	}
	return out, nil
}

func (r *offerRepo) Update(ctx context.Context, id string, m domain.OfferMutation) (*domain.Offer, error) {
	unlock, err := r.s.lock(r.tx, true)
	if err != nil {
		return nil, err
	}
	defer unlock()
	o, ok := r.s.offers[id]
	if !ok {
		return nil, fmt.Errorf("offer %s: %w", id, domain.ErrNotFound)
	}
	prev := o.Clone()
	at := m.UpdatedAt
	if at.IsZero() {
		at = r.s.now()
	}
	o.Apply(m, at)
	s := r.s
	r.tx.onRollback(func() { s.offers[id] = prev })
	return o.Clone(), nil
}

type auditRepo struct {
	s  *Store
	tx *txn
}

func (r *auditRepo) Record(ctx context.Context, event *domain.AuditEvent) error {
	unlock, err := r.s.lock(r.tx, true)
	if err != nil {
		return err
	}
	defer unlock()
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	s, offerID := r.s, event.OfferID
	s.events[offerID] = append(s.events[offerID], *event)
	r.tx.onRollback(func() {
		s.events[offerID] = s.events[offerID][:len(s.events[offerID])-1]
		if len(s.events[offerID]) == 0 {
			delete(s.events, offerID)
		}
	})
	return nil
}

func (r *auditRepo) ListByOffer(ctx context.Context, offerID string) ([]domain.AuditEvent, error) {
	unlock, err := r.s.lock(r.tx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()
	evs := r.s.events[offerID]
	out := make([]domain.AuditEvent, len(evs))
	copy(out, evs)
	return out, nil
}

// LastByOffer returns nil, nil for an offer with no events yet.
func (r *auditRepo) LastByOffer(ctx context.Context, offerID string) (*domain.AuditEvent, error) {
	unlock, err := r.s.lock(r.tx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()
	evs := r.s.events[offerID]
	if len(evs) == 0 {
		return nil, nil
	}
	last := evs[len(evs)-1]
	return &last, nil
}

type responseRepo struct {
	s  *Store
	tx *txn
}

func (r *responseRepo) Create(ctx context.Context, resp *domain.CustomerResponse) error {
	unlock, err := r.s.lock(r.tx, true)
	if err != nil {
		return err
	}
	defer unlock()
	if _, exists := r.s.responses[resp.OfferID]; exists {
		return fmt.Errorf("offer %s: %w: response already recorded", resp.OfferID, domain.ErrInvalidTransition)
	}
	if resp.ID == "" {
		resp.ID = uuid.New().String()
	}
	s, offerID := r.s, resp.OfferID
	s.responses[offerID] = resp.Clone()
	r.tx.onRollback(func() { delete(s.responses, offerID) })
	return nil
}

func (r *responseRepo) GetByOffer(ctx context.Context, offerID string) (*domain.CustomerResponse, error) {
	unlock, err := r.s.lock(r.tx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()
	resp, ok := r.s.responses[offerID]
	if !ok {
		return nil, fmt.Errorf("response for offer %s: %w", offerID, domain.ErrNotFound)
	}
	return resp.Clone(), nil
}

type commRepo struct {
	s  *Store
	tx *txn
}

func (r *commRepo) Create(ctx context.Context, c *domain.Communication) error {
	unlock, err := r.s.lock(r.tx, true)
	if err != nil {
		return err
	}
	defer unlock()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	s, id, offerID := r.s, c.ID, c.OfferID
	cp := *c
	s.comms[id] = &cp
	s.offerComms[offerID] = append(s.offerComms[offerID], id)
	r.tx.onRollback(func() {
		delete(s.comms, id)
		s.offerComms[offerID] = s.offerComms[offerID][:len(s.offerComms[offerID])-1]
		if len(s.offerComms[offerID]) == 0 {
			delete(s.offerComms, offerID)
		}
	})
	return nil
}

func (r *commRepo) UpdateDelivery(ctx context.Context, id string, status domain.DeliveryStatus, errMsg string) error {
	unlock, err := r.s.lock(r.tx, true)
	if err != nil {
		return err
	}
	defer unlock()
	c, ok := r.s.comms[id]
	if !ok {
		return fmt.Errorf("communication %s: %w", id, domain.ErrNotFound)
	}
	prev := *c
	c.DeliveryStatus = status
	c.Error = errMsg
	c.UpdatedAt = r.s.now()
	s := r.s
	r.tx.onRollback(func() { s.comms[id] = &prev })
	return nil
}

func (r *commRepo) ListByOffer(ctx context.Context, offerID string) ([]domain.Communication, error) {
	unlock, err := r.s.lock(r.tx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()
	ids := r.s.offerComms[offerID]
	out := make([]domain.Communication, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.s.comms[id])
	}
	return out, nil
}
