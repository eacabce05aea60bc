package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"settlement-engine/internal/security"
	"settlement-engine/internal/service"
)

// RouterOptions carries the optional endpoints mounted next to the offer API.
type RouterOptions struct {
	MetricsPath    string
	MetricsHandler http.Handler
}

// NewRouter builds the JSON API. Route names key the security table in config.
func NewRouter(svc service.NegotiationService, tokens security.TokenManager, opts RouterOptions) *mux.Router {
	h := NewOfferHandler(svc)
	auth := NewAuthMiddleware(tokens)

	router := mux.NewRouter()
	router.Use(loggingMiddleware)
	router.Use(auth.Middleware)

	router.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet).Name("healthz")
	if opts.MetricsHandler != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, opts.MetricsHandler).Methods(http.MethodGet).Name("metrics")
	}

	router.HandleFunc("/loans/{loanID}/offers", h.CreateOffer).Methods(http.MethodPost).Name("createOffer")
	router.HandleFunc("/loans/{loanID}/history", h.LoanHistory).Methods(http.MethodGet).Name("loanHistory")
	router.HandleFunc("/loans/{loanID}/history.xlsx", h.HistoryWorkbook).Methods(http.MethodGet).Name("historyWorkbook")

	router.HandleFunc("/offers/{id}", h.GetOffer).Methods(http.MethodGet).Name("getOffer")
	router.HandleFunc("/offers/{id}/letter.pdf", h.OfferLetter).Methods(http.MethodGet).Name("offerLetter")
	router.HandleFunc("/offers/{id}/send", h.SendOffer).Methods(http.MethodPost).Name("sendOffer")
	router.HandleFunc("/offers/{id}/responses", h.RecordResponse).Methods(http.MethodPost).Name("recordResponse")
	router.HandleFunc("/offers/{id}/decisions", h.SupervisorDecision).Methods(http.MethodPost).Name("supervisorDecision")
	router.HandleFunc("/offers/{id}/cancel", h.CancelOffer).Methods(http.MethodPost).Name("cancelOffer")

	router.HandleFunc("/reviews/pending", h.PendingReviews).Methods(http.MethodGet).Name("pendingReviews")
	router.HandleFunc("/summary", h.Summary).Methods(http.MethodGet).Name("summary")
	router.HandleFunc("/sweeps/expiry", h.ExpireDueOffers).Methods(http.MethodPost).Name("expireDueOffers")

	return router
}
