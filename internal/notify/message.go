package notify

import (
	"fmt"

	"settlement-engine/internal/domain"
)

// RecipientFor returns the customer contact used for channel.
func RecipientFor(loan *domain.Loan, channel domain.Channel) string {
	if channel == domain.ChannelEmail {
		return loan.CustomerEmail
	}
	return loan.CustomerPhone
}

// ComposeOfferMessage builds the customer-facing text for a sent offer.
func ComposeOfferMessage(offer *domain.Offer, loan *domain.Loan, channel domain.Channel) domain.Message {
	subject := fmt.Sprintf("Settlement offer for loan %s", loan.ID)
	name := loan.CustomerName
	if name == "" {
		name = "Customer"
	}
	body := fmt.Sprintf("Dear %s,\n\nWe are offering to settle your loan %s for %s (%.2f%% of the balance of %s).\nThis offer is valid until %s.",
		name, loan.ID, domain.FormatCents(offer.SettlementAmountCents), offer.SettlementPercentage,
		domain.FormatCents(offer.BalanceAtCreationCents), offer.DueDate.Format("January 2, 2006"))
	if channel == domain.ChannelSMS {
		body = fmt.Sprintf("Settlement offer on loan %s: pay %s by %s. Reply or call us to accept.",
			loan.ID, domain.FormatCents(offer.SettlementAmountCents), offer.DueDate.Format("2006-01-02"))
	}
	return domain.Message{
		OfferID:       offer.ID,
		Recipient:     RecipientFor(loan, channel),
		RecipientName: loan.CustomerName,
		Subject:       subject,
		Body:          body,
	}
}
