package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"settlement-engine/internal/domain"
	"settlement-engine/internal/report"
)

// historyFetchLimit bounds concurrent per-offer reads when assembling a loan history.
const historyFetchLimit = 4

func (s *negotiationService) GetOffer(ctx context.Context, offerID string) (*domain.Offer, error) {
	if offerID == "" {
		return nil, fmt.Errorf("%w: offer id is required", domain.ErrInvalidRequest)
	}
	return s.store.Offers().GetByID(ctx, offerID)
}

// GetHistory returns the loan's offers in creation order, each with its response, audit
// events and communications.
func (s *negotiationService) GetHistory(ctx context.Context, loanID string) ([]domain.OfferHistory, error) {
	offers, err := s.store.Offers().ListByLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if len(offers) == 0 {
		if _, err := s.store.Loans().GetByID(ctx, loanID); err != nil {
			return nil, err
		}
		return []domain.OfferHistory{}, nil
	}

	history := make([]domain.OfferHistory, len(offers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(historyFetchLimit)
	for i := range offers {
		i := i
		g.Go(func() error {
			h := domain.OfferHistory{Offer: offers[i]}
			resp, err := s.store.Responses().GetByOffer(gctx, offers[i].ID)
			switch {
			case err == nil:
				h.Response = resp
			case !errors.Is(err, domain.ErrNotFound):
				return err
			}
			if h.Events, err = s.store.Audit().ListByOffer(gctx, offers[i].ID); err != nil {
				return err
			}
			if h.Communications, err = s.store.Communications().ListByOffer(gctx, offers[i].ID); err != nil {
				return err
			}
			history[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return history, nil
}

// ListPendingApprovals is the supervisor queue: high-value offers first, then oldest first.
func (s *negotiationService) ListPendingApprovals(ctx context.Context) ([]ReviewItem, error) {
	pending, err := s.store.Offers().ListByStatus(ctx, domain.OfferStatusPendingApproval)
	if err != nil {
		return nil, err
	}

	loans := make(map[string]*domain.Loan)
	items := make([]ReviewItem, 0, len(pending))
	for _, o := range pending {
		loan, ok := loans[o.LoanID]
		if !ok {
			loan, err = s.store.Loans().GetByID(ctx, o.LoanID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			loans[o.LoanID] = loan
		}
		item := ReviewItem{
			Offer:          o,
			Loan:           loan,
			Classification: o.Classification,
			HighValue:      o.HighValue,
		}
		if loan != nil {
			item.Band = s.policy.EvaluatePolicy(loan)
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].HighValue && !items[j].HighValue
	})
	return items, nil
}

func (s *negotiationService) Summary(ctx context.Context) (*Summary, error) {
	sum := &Summary{ByStatus: make(map[domain.OfferStatus]int)}
	var pctTotal float64
	for _, status := range domain.AllOfferStatuses() {
		offers, err := s.store.Offers().ListByStatus(ctx, status)
		if err != nil {
			return nil, err
		}
		sum.ByStatus[status] = len(offers)
		sum.TotalOffers += len(offers)
		for _, o := range offers {
			pctTotal += o.SettlementPercentage
			if status == domain.OfferStatusAccepted {
				sum.AcceptedAmountCents += o.SettlementAmountCents
			}
		}
	}
	sum.PendingApprovals = sum.ByStatus[domain.OfferStatusPendingApproval]
	sum.AcceptedCount = sum.ByStatus[domain.OfferStatusAccepted]
	if sum.TotalOffers > 0 {
		sum.AveragePercentage = pctTotal / float64(sum.TotalOffers)
	}
	answered := sum.AcceptedCount + sum.ByStatus[domain.OfferStatusRejected] + sum.ByStatus[domain.OfferStatusCounterOffer]
	if answered > 0 {
		sum.AcceptanceRate = float64(sum.AcceptedCount) / float64(answered)
	}
	return sum, nil
}

// OfferLetter renders the customer letter for an offer.
func (s *negotiationService) OfferLetter(ctx context.Context, offerID string) ([]byte, error) {
	offer, err := s.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	loan, err := s.store.Loans().GetByID(ctx, offer.LoanID)
	if err != nil {
		return nil, err
	}
	issued := s.now()
	if offer.SentAt != nil {
		issued = *offer.SentAt
	}
	return report.BuildOfferLetterPDF(offer, loan, issued)
}

// HistoryWorkbook exports GetHistory as XLSX.
func (s *negotiationService) HistoryWorkbook(ctx context.Context, loanID string) ([]byte, error) {
	history, err := s.GetHistory(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return report.BuildHistoryXLSX(loanID, history)
}
