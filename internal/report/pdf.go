// Package report renders settlement summaries for download.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/phpdave11/gofpdf"

	"conto/internal/core"
	"conto/internal/settlement"
)

// Names are the display names of the two parties.
type Names struct {
	Person1 string
	Person2 string
}

func (n Names) of(p core.Party) string {
	if p == core.PartyPerson2 {
		return n.Person2
	}
	return n.Person1
}

// SettlementPDF writes a one-page breakdown of r to w.
func SettlementPDF(w io.Writer, r settlement.Result, p core.ProportionSettings, names Names, generated time.Time) error {
	r = r.Rounded()

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Settlement", false)
	pdf.SetCreator("conto", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Settlement")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, "Generated "+generated.Format("2006-01-02 15:04"))
	pdf.Ln(6)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Shared expenses split %s %s%% / %s %s%%",
		names.Person1, trimPercent(p.P1), names.Person2, trimPercent(p.P2))))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.MultiCell(0, 8, tr(headline(r, names)), "", "L", false)
	pdf.Ln(4)

	const labelW, colW, rowH = 70.0, 55.0, 8.0

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(labelW, rowH, "", "1", 0, "L", true, 0, "")
	pdf.CellFormat(colW, rowH, tr(names.Person1), "1", 0, "R", true, 0, "")
	pdf.CellFormat(colW, rowH, tr(names.Person2), "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	for _, row := range []struct {
		label  string
		p1, p2 float64
	}{
		{"Individual expenses", r.Person1Individual, r.Person2Individual},
		{"Share of shared expenses", r.Person1ShareOfShared, r.Person2ShareOfShared},
		{"Should pay", r.Person1ShouldPay, r.Person2ShouldPay},
		{"Actually paid", r.Person1ActuallyPaid, r.Person2ActuallyPaid},
		{"Net position", r.Person1NetPosition, r.Person2NetPosition},
	} {
		pdf.CellFormat(labelW, rowH, row.label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW, rowH, core.FormatAmount(row.p1), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colW, rowH, core.FormatAmount(row.p2), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range []string{
		fmt.Sprintf("Shared total: %s (%d transactions)", core.FormatAmount(r.SharedTotal), r.SharedCount),
		fmt.Sprintf("Total spending: %s", core.FormatAmount(r.TotalSpending)),
		fmt.Sprintf("Individual transactions: %d / %d", r.Person1Count, r.Person2Count),
	} {
		pdf.Cell(0, 6, line)
		pdf.Ln(6)
	}
	if r.UnclassifiedCount > 0 {
		pdf.SetTextColor(180, 60, 0)
		pdf.Cell(0, 6, fmt.Sprintf("%d unclassified transactions (%s) are not included until categorized.",
			r.UnclassifiedCount, core.FormatAmount(r.UnclassifiedTotal)))
		pdf.Ln(6)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render settlement pdf: %w", err)
	}
	return nil
}

func headline(r settlement.Result, names Names) string {
	payer, ok := r.Payer()
	if !ok {
		return "All settled up."
	}
	return fmt.Sprintf("%s owes %s %s", names.of(payer), names.of(payer.Other()), core.FormatAmount(r.FinalSettlement))
}

func trimPercent(v float64) string {
	s := core.FormatAmount(v)
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}
