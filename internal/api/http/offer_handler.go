package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"settlement-engine/internal/domain"
	"settlement-engine/internal/logger"
	"settlement-engine/internal/report"
	"settlement-engine/internal/service"
)

const maxBodyBytes = 1 << 20

// OfferHandler exposes the negotiation engine over JSON.
type OfferHandler struct {
	svc service.NegotiationService
}

func NewOfferHandler(svc service.NegotiationService) *OfferHandler {
	return &OfferHandler{svc: svc}
}

type createOfferBody struct {
	Percentage    *float64  `json:"percentage"`
	DueDate       time.Time `json:"due_date"`
	Justification string    `json:"justification"`
}

type sendBody struct {
	Channel domain.Channel `json:"channel"`
}

type sendResult struct {
	Offer         *domain.Offer         `json:"offer"`
	Communication *domain.Communication `json:"communication"`
}

type responseBody struct {
	Type               domain.ResponseType `json:"type"`
	CounterPercentage  *float64            `json:"counter_percentage"`
	CounterAmountCents *int64              `json:"counter_amount_cents"`
	CounterDueDate     *time.Time          `json:"counter_due_date"`
	Reason             string              `json:"reason"`
	Notes              string              `json:"notes"`
}

type responseResult struct {
	Offer        *domain.Offer `json:"offer"`
	CounterOffer *domain.Offer `json:"counter_offer,omitempty"`
}

type decisionBody struct {
	Decision service.Decision `json:"decision"`
	Comment  string           `json:"comment"`
}

type commentBody struct {
	Comment string `json:"comment"`
}

type sweepResult struct {
	*service.SweepResult
	Error string `json:"error,omitempty"`
}

var errMalformedBody = errors.New("malformed request body")

// decodeBody reads a JSON body into v. An empty body is accepted when optional is set.
func decodeBody(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return nil
}

// actorOrFail returns the authenticated actor. It is always present behind the auth middleware.
func actorOrFail(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeErrorCode(w, http.StatusUnauthorized, "unauthenticated", "no actor on request")
	}
	return actor, ok
}

func badRequest(w http.ResponseWriter, err error) {
	writeErrorCode(w, http.StatusBadRequest, "malformed_body", err.Error())
}

func (h *OfferHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *OfferHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	var body createOfferBody
	if err := decodeBody(r, &body, false); err != nil {
		badRequest(w, err)
		return
	}
	if body.Percentage == nil {
		writeError(w, fmt.Errorf("%w: percentage is required", domain.ErrInvalidRequest))
		return
	}

	offer, err := h.svc.CreateOffer(r.Context(), service.CreateOfferRequest{
		LoanID:        mux.Vars(r)["loanID"],
		Agent:         actor,
		Percentage:    *body.Percentage,
		DueDate:       body.DueDate,
		Justification: body.Justification,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/offers/"+offer.ID)
	writeJSON(w, http.StatusCreated, offer)
}

func (h *OfferHandler) SendOffer(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	var body sendBody
	if err := decodeBody(r, &body, true); err != nil {
		badRequest(w, err)
		return
	}
	offer, comm, err := h.svc.Send(r.Context(), mux.Vars(r)["id"], actor, body.Channel)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sendResult{Offer: offer, Communication: comm})
}

func (h *OfferHandler) RecordResponse(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	var body responseBody
	if err := decodeBody(r, &body, false); err != nil {
		badRequest(w, err)
		return
	}
	parent, child, err := h.svc.RecordResponse(r.Context(), mux.Vars(r)["id"], actor, service.ResponseDetails{
		Type:               body.Type,
		CounterPercentage:  body.CounterPercentage,
		CounterAmountCents: body.CounterAmountCents,
		CounterDueDate:     body.CounterDueDate,
		Reason:             body.Reason,
		Notes:              body.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, responseResult{Offer: parent, CounterOffer: child})
}

func (h *OfferHandler) SupervisorDecision(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	var body decisionBody
	if err := decodeBody(r, &body, false); err != nil {
		badRequest(w, err)
		return
	}
	offer, err := h.svc.SupervisorDecision(r.Context(), mux.Vars(r)["id"], actor, body.Decision, body.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

func (h *OfferHandler) CancelOffer(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	var body commentBody
	if err := decodeBody(r, &body, true); err != nil {
		badRequest(w, err)
		return
	}
	offer, err := h.svc.Cancel(r.Context(), mux.Vars(r)["id"], actor, body.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

// ExpireDueOffers runs the expiry sweep on demand. Per-offer failures are reported next to
// the counts rather than failing the request.
func (h *OfferHandler) ExpireDueOffers(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ExpireDueOffers(r.Context())
	if res == nil {
		writeError(w, err)
		return
	}
	out := sweepResult{SweepResult: res}
	if err != nil {
		logger.Warn("Expiry sweep finished with failures", "error", err)
		out.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OfferHandler) GetOffer(w http.ResponseWriter, r *http.Request) {
	offer, err := h.svc.GetOffer(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

func (h *OfferHandler) LoanHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.svc.GetHistory(r.Context(), mux.Vars(r)["loanID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *OfferHandler) HistoryWorkbook(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanID"]
	data, err := h.svc.HistoryWorkbook(r.Context(), loanID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeFile(w, report.ContentTypeXLSX, fmt.Sprintf("loan-%s-history.xlsx", loanID), data)
}

func (h *OfferHandler) OfferLetter(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	data, err := h.svc.OfferLetter(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeFile(w, report.ContentTypePDF, report.LetterFilename(&domain.Offer{ID: id}), data)
}

func (h *OfferHandler) PendingReviews(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListPendingApprovals(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *OfferHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Summary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func writeFile(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.Warn("Failed to write file response", "filename", filename, "error", err)
	}
}
