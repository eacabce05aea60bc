package domain

import "fmt"

// FormatCents renders an amount as dollars with thousands separators, e.g. $12,345.67.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	dollars := fmt.Sprintf("%d", cents/100)
	for i := len(dollars) - 3; i > 0; i -= 3 {
		dollars = dollars[:i] + "," + dollars[i:]
	}
	return fmt.Sprintf("%s$%s.%02d", sign, dollars, cents%100)
}

// OfferHistory is one offer of a loan's negotiation together with everything recorded about it.
type OfferHistory struct {
	Offer          Offer             `json:"offer"`
	Response       *CustomerResponse `json:"response,omitempty"`
	Events         []AuditEvent      `json:"events"`
	Communications []Communication   `json:"communications"`
}
