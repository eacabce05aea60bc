package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"settlement-engine/internal/audit"
	"settlement-engine/internal/config"
	"settlement-engine/internal/domain"
	"settlement-engine/internal/lock"
	"settlement-engine/internal/logger"
	"settlement-engine/internal/metrics"
	"settlement-engine/internal/notify"
	"settlement-engine/internal/policy"
	"settlement-engine/internal/report"
	"settlement-engine/internal/repository"
)

type negotiationService struct {
	store          repository.Store
	policy         *policy.Evaluator
	locks          *lock.Manager
	dispatcher     notify.Dispatcher
	clock          Clock
	defaultChannel domain.Channel
	attachLetter   bool
}

func NewNegotiationService(
	store repository.Store,
	evaluator *policy.Evaluator,
	locks *lock.Manager,
	dispatcher notify.Dispatcher,
	cfg config.EngineConfig,
	clock Clock,
) NegotiationService {
	if clock == nil {
		clock = SystemClock()
	}
	return &negotiationService{
		store:          store,
		policy:         evaluator,
		locks:          locks,
		dispatcher:     dispatcher,
		clock:          clock,
		defaultChannel: domain.Channel(cfg.DefaultChannel),
		attachLetter:   cfg.AttachLetter,
	}
}

func (s *negotiationService) now() time.Time {
	return s.clock.Now().UTC()
}

func (s *negotiationService) CreateOffer(ctx context.Context, req CreateOfferRequest) (offer *domain.Offer, err error) {
	logger.EnterMethod("negotiationService.CreateOffer", "loanID", req.LoanID, "agentID", req.Agent.ID, "pct", req.Percentage)
	defer s.finish("negotiationService.CreateOffer", domain.ActionCreate, time.Now(), &err)

	if err := requireRole(req.Agent, domain.RoleAgent); err != nil {
		return nil, err
	}
	if req.LoanID == "" || req.Agent.ID == "" {
		return nil, fmt.Errorf("%w: loan and agent are required", domain.ErrInvalidRequest)
	}
	if req.DueDate.IsZero() {
		return nil, fmt.Errorf("%w: due date is required", domain.ErrInvalidRequest)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loan, err := s.store.Loans().GetByID(ctx, req.LoanID)
	if err != nil {
		return nil, err
	}

	class, _, err := s.policy.ClassifyForLoan(loan, req.Percentage)
	if err != nil {
		return nil, err
	}
	justification := strings.TrimSpace(req.Justification)
	if class != domain.PolicyWithinPolicy && justification == "" {
		return nil, fmt.Errorf("%w: %.2f%% is %s", domain.ErrMissingJustification, req.Percentage, class)
	}

	amount := domain.SettlementAmountCents(loan.BalanceCents, req.Percentage)
	offer = &domain.Offer{
		ID:                     uuid.New().String(),
		LoanID:                 loan.ID,
		AgentID:                req.Agent.ID,
		SettlementPercentage:   req.Percentage,
		SettlementAmountCents:  amount,
		BalanceAtCreationCents: loan.BalanceCents,
		Status:                 domain.InitialStatus(class),
		Classification:         class,
		HighValue:              s.policy.IsHighValue(amount),
		JustificationNotes:     justification,
		DueDate:                req.DueDate.UTC(),
	}

	// The creation time is read inside the transaction so a loan's offers commit in clock order.
	txCtx := context.WithoutCancel(ctx)
	err = s.store.WithinTx(txCtx, func(tx repository.Tx) error {
		now := s.now()
		if !req.DueDate.After(now) {
			return fmt.Errorf("%w: due date must be in the future", domain.ErrInvalidRequest)
		}
		offer.CreatedAt = now
		offer.UpdatedAt = now
		return s.insertOffer(txCtx, tx, offer, req.Agent, "")
	})
	if err != nil {
		return nil, err
	}
	return offer.Clone(), nil
}

// insertOffer stores a new offer and its creation event.
func (s *negotiationService) insertOffer(ctx context.Context, tx repository.Tx, offer *domain.Offer, actor domain.Actor, comment string) error {
	if err := tx.Offers().Create(ctx, offer); err != nil {
		return err
	}
	event := &domain.AuditEvent{
		OfferID:   offer.ID,
		LoanID:    offer.LoanID,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Action:    domain.ActionCreate,
		ToStatus:  offer.Status,
		Comment:   comment,
		Timestamp: offer.CreatedAt,
	}
	if err := audit.Append(ctx, tx.Audit(), event); err != nil {
		return err
	}
	logger.Transition(offer.ID, string(domain.ActionCreate), "", string(offer.Status), actor.ID)
	return nil
}

func (s *negotiationService) Send(ctx context.Context, offerID string, actor domain.Actor, channel domain.Channel) (offer *domain.Offer, comm *domain.Communication, err error) {
	logger.EnterMethod("negotiationService.Send", "offerID", offerID, "channel", channel)
	defer s.finish("negotiationService.Send", domain.ActionSend, time.Now(), &err)

	if err := requireRole(actor, domain.RoleAgent); err != nil {
		return nil, nil, err
	}
	if channel == "" {
		channel = s.defaultChannel
	}
	if !channel.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown channel %q", domain.ErrInvalidRequest, channel)
	}

	var loan *domain.Loan
	err = s.withOfferLock(ctx, offerID, func(ctx context.Context) error {
		current, err := s.store.Offers().GetByID(ctx, offerID)
		if err != nil {
			return err
		}
		loan, err = s.store.Loans().GetByID(ctx, current.LoanID)
		if err != nil {
			return err
		}

		return s.store.WithinTx(ctx, func(tx repository.Tx) error {
			o, err := tx.Offers().GetByID(ctx, offerID)
			if err != nil {
				return err
			}
			if _, err := domain.NextStatus(o.Status, domain.ActionSend); err != nil {
				return err
			}
			if !s.policy.DueDateAllowed(o.CreatedAt, o.DueDate) {
				return fmt.Errorf("%w: due %s is more than %s after creation", domain.ErrDueDateTooFar,
					o.DueDate.Format(time.RFC3339), s.policy.MaxDueHorizon())
			}

			now := s.now()
			ch := channel
			offer, err = s.transition(ctx, tx, o, actor, domain.ActionSend, "", domain.OfferMutation{SentAt: &now, Channel: &ch})
			if err != nil {
				return err
			}

			msg := notify.ComposeOfferMessage(offer, loan, channel)
			comm = &domain.Communication{
				ID:             uuid.New().String(),
				OfferID:        offer.ID,
				Channel:        channel,
				Recipient:      msg.Recipient,
				Subject:        msg.Subject,
				Body:           msg.Body,
				DeliveryStatus: domain.DeliveryPending,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			return tx.Communications().Create(ctx, comm)
		})
	})
	if err != nil {
		return nil, nil, err
	}

	s.dispatch(context.WithoutCancel(ctx), offer, loan, comm)
	return offer, comm, nil
}

// dispatch delivers a committed communication and records the outcome on it. Delivery
// problems never fail the send.
func (s *negotiationService) dispatch(ctx context.Context, offer *domain.Offer, loan *domain.Loan, comm *domain.Communication) {
	log := logger.WithOffer(offer.ID, offer.AgentID, string(domain.RoleAgent))
	msg := domain.Message{
		OfferID:       offer.ID,
		Recipient:     comm.Recipient,
		RecipientName: loan.CustomerName,
		Subject:       comm.Subject,
		Body:          comm.Body,
	}
	if s.attachLetter && comm.Channel == domain.ChannelEmail {
		letter, err := report.BuildOfferLetterPDF(offer, loan, s.now())
		if err != nil {
			log.Warn("Offer letter not attached", "error", err)
		} else {
			msg.Attachments = append(msg.Attachments, domain.Attachment{
				Filename:    report.LetterFilename(offer),
				ContentType: report.ContentTypePDF,
				Content:     letter,
			})
		}
	}

	status, sendErr := s.dispatcher.Send(ctx, comm.Channel, msg)
	errMsg := ""
	if sendErr != nil {
		status = domain.DeliveryFailed
		errMsg = sendErr.Error()
		log.Warn("Offer delivery failed", "channel", comm.Channel, "error", sendErr)
	}
	metrics.IncDispatch(string(comm.Channel), string(status))

	if err := s.store.Communications().UpdateDelivery(ctx, comm.ID, status, errMsg); err != nil {
		log.Error("Failed to record delivery status", "communication_id", comm.ID, "status", status, "error", err)
		return
	}
	comm.DeliveryStatus = status
	comm.Error = errMsg
	comm.UpdatedAt = s.now()
}

func (s *negotiationService) RecordResponse(ctx context.Context, offerID string, actor domain.Actor, details ResponseDetails) (parent *domain.Offer, child *domain.Offer, err error) {
	logger.EnterMethod("negotiationService.RecordResponse", "offerID", offerID, "type", details.Type)
	action := responseAction(details.Type)
	defer s.finish("negotiationService.RecordResponse", action, time.Now(), &err)

	if err := requireRole(actor, domain.RoleAgent); err != nil {
		return nil, nil, err
	}
	if !details.Type.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown response type %q", domain.ErrInvalidRequest, details.Type)
	}
	if details.Type == domain.ResponseCounter {
		if details.CounterPercentage == nil && details.CounterAmountCents == nil {
			return nil, nil, fmt.Errorf("%w: counter needs a percentage or an amount", domain.ErrInvalidRequest)
		}
		if details.CounterDueDate == nil || details.CounterDueDate.IsZero() {
			return nil, nil, fmt.Errorf("%w: counter needs a due date", domain.ErrInvalidRequest)
		}
	}

	err = s.withOfferLock(ctx, offerID, func(ctx context.Context) error {
		current, err := s.store.Offers().GetByID(ctx, offerID)
		if err != nil {
			return err
		}
		var loan *domain.Loan
		if details.Type == domain.ResponseCounter {
			if loan, err = s.store.Loans().GetByID(ctx, current.LoanID); err != nil {
				return err
			}
		}

		return s.store.WithinTx(ctx, func(tx repository.Tx) error {
			o, err := tx.Offers().GetByID(ctx, offerID)
			if err != nil {
				return err
			}
			if _, err := domain.NextStatus(o.Status, action); err != nil {
				return err
			}

			now := s.now()
			if details.Type == domain.ResponseCounter {
				if !details.CounterDueDate.After(now) {
					return fmt.Errorf("%w: counter due date must be in the future", domain.ErrInvalidRequest)
				}
				if child, err = s.buildCounterOffer(o, loan, details, now); err != nil {
					return err
				}
			}

			resp := &domain.CustomerResponse{
				ID:                 uuid.New().String(),
				OfferID:            o.ID,
				Type:               details.Type,
				CounterPercentage:  details.CounterPercentage,
				CounterAmountCents: details.CounterAmountCents,
				CounterDueDate:     details.CounterDueDate,
				Reason:             details.Reason,
				Notes:              details.Notes,
				RecordedBy:         actor.ID,
				RespondedAt:        now,
			}
			if child != nil {
				resp.ChildOfferID = &child.ID
			}
			if err := tx.Responses().Create(ctx, resp); err != nil {
				return err
			}

			parent, err = s.transition(ctx, tx, o, actor, action, details.Reason, domain.OfferMutation{ResponseAt: &now})
			if err != nil {
				return err
			}
			if child != nil {
				return s.insertOffer(ctx, tx, child, actor, "counter-offer of "+o.ID)
			}
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return parent, child.Clone(), nil
}

// buildCounterOffer derives the child offer from the customer's counter terms. The balance
// basis is the parent's balance at creation, never the current loan balance.
func (s *negotiationService) buildCounterOffer(parent *domain.Offer, loan *domain.Loan, d ResponseDetails, now time.Time) (*domain.Offer, error) {
	basis := parent.BalanceAtCreationCents
	var pct float64
	var amount int64
	if d.CounterAmountCents != nil {
		amount = *d.CounterAmountCents
		pct = domain.SettlementPercentage(basis, amount)
		if basis == 0 && amount != 0 {
			return nil, fmt.Errorf("%w: counter amount on a zero balance", domain.ErrInvalidPercentage)
		}
	} else {
		pct = *d.CounterPercentage
		amount = domain.SettlementAmountCents(basis, pct)
	}

	class, _, err := s.policy.ClassifyForLoan(loan, pct)
	if err != nil {
		return nil, err
	}
	// The customer's own proposal is the exception reason when the agent left no notes.
	justification := joinNotes(d.Reason, d.Notes)
	if class != domain.PolicyWithinPolicy && justification == "" {
		justification = "Customer counter-offer on " + parent.ID
	}

	createdAt := now
	if !createdAt.After(parent.CreatedAt) {
		createdAt = parent.CreatedAt.Add(time.Microsecond)
	}
	parentID := parent.ID
	return &domain.Offer{
		ID:                     uuid.New().String(),
		LoanID:                 parent.LoanID,
		AgentID:                parent.AgentID,
		SettlementPercentage:   pct,
		SettlementAmountCents:  amount,
		BalanceAtCreationCents: basis,
		Status:                 domain.InitialStatus(class),
		Classification:         class,
		HighValue:              s.policy.IsHighValue(amount),
		JustificationNotes:     justification,
		DueDate:                d.CounterDueDate.UTC(),
		CreatedAt:              createdAt,
		UpdatedAt:              createdAt,
		ParentOfferID:          &parentID,
	}, nil
}

func (s *negotiationService) SupervisorDecision(ctx context.Context, offerID string, actor domain.Actor, decision Decision, comment string) (offer *domain.Offer, err error) {
	logger.EnterMethod("negotiationService.SupervisorDecision", "offerID", offerID, "decision", decision)
	action, ok := decision.action()
	defer s.finish("negotiationService.SupervisorDecision", action, time.Now(), &err)

	if err := requireRole(actor, domain.RoleSupervisor); err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: unknown decision %q", domain.ErrInvalidRequest, decision)
	}
	comment = strings.TrimSpace(comment)

	err = s.withOfferLock(ctx, offerID, func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(tx repository.Tx) error {
			o, err := tx.Offers().GetByID(ctx, offerID)
			if err != nil {
				return err
			}
			if action == domain.ActionApprove && o.Status == domain.OfferStatusDraft {
				offer = o
				return nil
			}
			if _, err := domain.NextStatus(o.Status, action); err != nil {
				return err
			}
			if action == domain.ActionReject && comment == "" {
				return domain.ErrMissingComment
			}

			m := domain.OfferMutation{SupervisorID: &actor.ID}
			if comment != "" {
				m.SupervisorComments = &comment
			}
			offer, err = s.transition(ctx, tx, o, actor, action, comment, m)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

func (s *negotiationService) Cancel(ctx context.Context, offerID string, actor domain.Actor, comment string) (offer *domain.Offer, err error) {
	logger.EnterMethod("negotiationService.Cancel", "offerID", offerID)
	defer s.finish("negotiationService.Cancel", domain.ActionCancel, time.Now(), &err)

	if err := requireRole(actor, domain.RoleAgent, domain.RoleSupervisor); err != nil {
		return nil, err
	}
	comment = strings.TrimSpace(comment)

	err = s.withOfferLock(ctx, offerID, func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(tx repository.Tx) error {
			o, err := tx.Offers().GetByID(ctx, offerID)
			if err != nil {
				return err
			}
			if _, err := domain.NextStatus(o.Status, domain.ActionCancel); err != nil {
				return err
			}
			var m domain.OfferMutation
			if actor.Role == domain.RoleSupervisor {
				m.SupervisorID = &actor.ID
				if comment != "" {
					m.SupervisorComments = &comment
				}
			}
			offer, err = s.transition(ctx, tx, o, actor, domain.ActionCancel, comment, m)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

func (s *negotiationService) Expire(ctx context.Context, offerID string) (offer *domain.Offer, err error) {
	logger.EnterMethod("negotiationService.Expire", "offerID", offerID)
	defer s.finish("negotiationService.Expire", domain.ActionExpire, time.Now(), &err)

	err = s.withOfferLock(ctx, offerID, func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(tx repository.Tx) error {
			o, err := tx.Offers().GetByID(ctx, offerID)
			if err != nil {
				return err
			}
			if _, err := domain.NextStatus(o.Status, domain.ActionExpire); err != nil {
				return err
			}
			now := s.now()
			if !now.After(o.DueDate) {
				return fmt.Errorf("%w: offer %s is not due until %s", domain.ErrInvalidTransition, o.ID, o.DueDate.Format(time.RFC3339))
			}
			offer, err = s.transition(ctx, tx, o, domain.SystemActor, domain.ActionExpire, "", domain.OfferMutation{ExpiredAt: &now})
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

// ExpireDueOffers expires every sent offer past its due date. Offers that changed status
// or are locked by a concurrent action are skipped; running it again is harmless.
func (s *negotiationService) ExpireDueOffers(ctx context.Context) (*SweepResult, error) {
	logger.EnterMethod("negotiationService.ExpireDueOffers")
	sent, err := s.store.Offers().ListByStatus(ctx, domain.OfferStatusSent)
	if err != nil {
		return nil, err
	}

	res := &SweepResult{ExpiredIDs: []string{}}
	now := s.now()
	var errs []error
	for _, o := range sent {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++
		if !now.After(o.DueDate) {
			continue
		}
		_, err := s.Expire(ctx, o.ID)
		switch {
		case err == nil:
			res.Expired++
			res.ExpiredIDs = append(res.ExpiredIDs, o.ID)
		case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrBusy):
			res.Skipped++
		default:
			res.Failed++
			errs = append(errs, fmt.Errorf("expire %s: %w", o.ID, err))
		}
	}
	metrics.AddExpired(res.Expired)
	logger.ExitMethod("negotiationService.ExpireDueOffers", "scanned", res.Scanned, "expired", res.Expired, "skipped", res.Skipped, "failed", res.Failed)
	return res, errors.Join(errs...)
}

// transition moves o along action, applies the lifecycle mutation and appends the audit event.
// The caller has already checked the action is allowed.
func (s *negotiationService) transition(ctx context.Context, tx repository.Tx, o *domain.Offer, actor domain.Actor, action domain.Action, comment string, m domain.OfferMutation) (*domain.Offer, error) {
	to, err := domain.NextStatus(o.Status, action)
	if err != nil {
		return nil, err
	}
	now := s.now()
	m.Status = &to
	m.UpdatedAt = now
	updated, err := tx.Offers().Update(ctx, o.ID, m)
	if err != nil {
		return nil, err
	}
	event := &domain.AuditEvent{
		OfferID:    o.ID,
		LoanID:     o.LoanID,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		FromStatus: o.Status,
		ToStatus:   to,
		Comment:    comment,
		Timestamp:  now,
	}
	if err := audit.Append(ctx, tx.Audit(), event); err != nil {
		return nil, err
	}
	logger.Transition(o.ID, string(action), string(o.Status), string(to), actor.ID)
	return updated, nil
}

// withOfferLock runs fn holding the offer's lock. Once the lock is held fn runs to completion
// even if the caller goes away.
func (s *negotiationService) withOfferLock(ctx context.Context, offerID string, fn func(ctx context.Context) error) error {
	if offerID == "" {
		return fmt.Errorf("%w: offer id is required", domain.ErrInvalidRequest)
	}
	release, err := s.locks.Acquire(ctx, offerID)
	if err != nil {
		if errors.Is(err, domain.ErrBusy) {
			metrics.IncLockBusy()
		}
		return err
	}
	defer release()
	return fn(context.WithoutCancel(ctx))
}

// finish records metrics and the exit log line for an engine action.
func (s *negotiationService) finish(method string, action domain.Action, start time.Time, errp *error) {
	err := *errp
	if err == nil {
		metrics.ObserveAction(string(action), metrics.ResultSuccess, time.Since(start))
		logger.ExitMethod(method)
		return
	}
	expected := IsRejection(err)
	result := metrics.ResultError
	if expected {
		result = metrics.ResultRejected
	}
	metrics.ObserveAction(string(action), result, time.Since(start))
	logger.ExitMethodWithError(method, err, expected)
}

// IsRejection reports whether err is a business-rule rejection rather than an infrastructure failure.
func IsRejection(err error) bool {
	for _, target := range []error{
		domain.ErrInvalidPercentage,
		domain.ErrMissingJustification,
		domain.ErrMissingComment,
		domain.ErrDueDateTooFar,
		domain.ErrInvalidTransition,
		domain.ErrNotFound,
		domain.ErrBusy,
		domain.ErrForbidden,
		domain.ErrInvalidRequest,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func requireRole(actor domain.Actor, allowed ...domain.ActorRole) error {
	for _, r := range allowed {
		if actor.Role == r {
			return nil
		}
	}
	return fmt.Errorf("%w: role %q", domain.ErrForbidden, actor.Role)
}

func responseAction(t domain.ResponseType) domain.Action {
	switch t {
	case domain.ResponseAccepted:
		return domain.ActionAccept
	case domain.ResponseRejected:
		return domain.ActionDecline
	case domain.ResponseCounter:
		return domain.ActionCounter
	}
	return ""
}

func joinNotes(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "; ")
}
