// Package report renders settlement documents: the customer offer letter (PDF) and the
// negotiation history workbook (XLSX).
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"settlement-engine/internal/domain"
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// LetterFilename is the attachment name used for an offer letter.
func LetterFilename(offer *domain.Offer) string {
	return fmt.Sprintf("settlement-offer-%s.pdf", offer.ID)
}

// BuildOfferLetterPDF renders the letter sent to the customer with the offer.
func BuildOfferLetterPDF(offer *domain.Offer, loan *domain.Loan, issuedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.SetTitle(fmt.Sprintf("Settlement offer %s", offer.ID), false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 8, "Settlement Offer")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", issuedAt.Format("January 2, 2006")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Customer: %s", loan.CustomerName))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Loan: %s (%s)", loan.ID, loan.Type))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Reference: %s", offer.ID))
	pdf.Ln(10)

	pdf.MultiCell(0, 5, fmt.Sprintf(
		"We are prepared to accept %s in full settlement of the outstanding balance of %s on the loan above. "+
			"This represents %.2f%% of the balance. The offer remains open until %s; after that date it expires "+
			"without further notice.",
		domain.FormatCents(offer.SettlementAmountCents), domain.FormatCents(offer.BalanceAtCreationCents),
		offer.SettlementPercentage, offer.DueDate.Format("January 2, 2006")), "", "L", false)
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(70, 6, "Outstanding balance", "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 6, domain.FormatCents(offer.BalanceAtCreationCents), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)
	pdf.CellFormat(70, 6, "Settlement amount", "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 6, domain.FormatCents(offer.SettlementAmountCents), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)
	pdf.CellFormat(70, 6, "Pay by", "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 6, offer.DueDate.Format("2006-01-02"), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render offer letter: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildHistoryXLSX exports a loan's negotiation: one row per offer, one row per audit event.
func BuildHistoryXLSX(loanID string, history []domain.OfferHistory) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	offersSheet := "offers"
	eventsSheet := "events"
	if err := f.SetSheetName("Sheet1", offersSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(eventsSheet); err != nil {
		return nil, err
	}

	offerHeader := []any{"Offer ID", "Parent", "Agent", "Status", "Classification", "Percentage", "Amount", "Balance",
		"Created", "Sent", "Due", "Response", "Supervisor", "Supervisor comments", "Justification"}
	if err := f.SetSheetRow(offersSheet, "A1", &offerHeader); err != nil {
		return nil, err
	}
	eventHeader := []any{"Offer ID", "Timestamp", "Actor", "Role", "Action", "From", "To", "Comment", "Hash"}
	if err := f.SetSheetRow(eventsSheet, "A1", &eventHeader); err != nil {
		return nil, err
	}

	eventRow := 2
	for i, h := range history {
		o := h.Offer
		response := ""
		if h.Response != nil {
			response = string(h.Response.Type)
		}
		row := []any{o.ID, deref(o.ParentOfferID), o.AgentID, string(o.Status), string(o.Classification),
			o.SettlementPercentage, float64(o.SettlementAmountCents) / 100, float64(o.BalanceAtCreationCents) / 100,
			o.CreatedAt.Format(time.RFC3339), formatTime(o.SentAt), o.DueDate.Format("2006-01-02"), response,
			deref(o.SupervisorID), o.SupervisorComments, o.JustificationNotes}
		if err := f.SetSheetRow(offersSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}

		for _, e := range h.Events {
			row := []any{e.OfferID, e.Timestamp.Format(time.RFC3339), e.ActorID, string(e.ActorRole), string(e.Action),
				string(e.FromStatus), string(e.ToStatus), e.Comment, e.Hash}
			if err := f.SetSheetRow(eventsSheet, fmt.Sprintf("A%d", eventRow), &row); err != nil {
				return nil, err
			}
			eventRow++
		}
	}
	_ = f.SetCellValue(offersSheet, fmt.Sprintf("A%d", len(history)+3), "Loan")
	_ = f.SetCellValue(offersSheet, fmt.Sprintf("B%d", len(history)+3), loanID)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write history workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
