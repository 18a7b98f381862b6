package certificates

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// RetirementData carries the fields printed on a retirement certificate.
type RetirementData struct {
	CertificateNumber string
	Holder            string
	Amount            int64
	Reason            string
	RetiredAt         time.Time
}

// Generator renders compliance certificates as PDF.
type Generator interface {
	RenderRetirement(w io.Writer, data RetirementData) error
}

type pdfGenerator struct{}

func NewGenerator() Generator {
	return &pdfGenerator{}
}

func (g *pdfGenerator) RenderRetirement(w io.Writer, data RetirementData) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 26)
	pdf.CellFormat(0, 20, "Certificate of Credit Retirement", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, "Green Hydrogen Credit Platform", "", 1, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 13)
	pdf.CellFormat(0, 9, fmt.Sprintf("Certificate No. %s", data.CertificateNumber), "", 1, "C", false, 0, "")
	pdf.Ln(6)
	pdf.MultiCell(0, 8, fmt.Sprintf(
		"This certifies that account %s has permanently retired %d green hydrogen credit(s) on %s.",
		data.Holder, data.Amount, data.RetiredAt.UTC().Format("2 January 2006 15:04 UTC"),
	), "", "C", false)
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 12)
	pdf.MultiCell(0, 8, fmt.Sprintf("Stated purpose: %s", data.Reason), "", "C", false)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Retired credits are burned from the holder's balance and cannot be transferred or reinstated.", "", 1, "C", false, 0, "")

	return pdf.Output(w)
}
