package interfaces

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"condoledger/internal/ledger/application"
)

// BuildLedgerPDF renders a printable debt ledger.
func BuildLedgerPDF(ledger *application.Ledger) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Debt Ledger")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Condominium: %d", ledger.CondominiumID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s", ledger.PeriodLabel))
	pdf.Ln(5)
	source := "reconstructed from live balances"
	if ledger.FromSnapshot {
		source = "prior month closing snapshot"
	}
	pdf.Cell(0, 6, fmt.Sprintf("Opening balances: %s", source))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(24, 6, "Apartment", "1", 0, "C", false, 0, "")
	pdf.CellFormat(36, 6, "Owner", "1", 0, "C", false, 0, "")
	pdf.CellFormat(26, 6, "Opening", "1", 0, "C", false, 0, "")
	pdf.CellFormat(26, 6, "Quota", "1", 0, "C", false, 0, "")
	pdf.CellFormat(26, 6, "Payments", "1", 0, "C", false, 0, "")
	pdf.CellFormat(26, 6, "Payments Bs", "1", 0, "C", false, 0, "")
	pdf.CellFormat(26, 6, "Closing", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, row := range ledger.Rows {
		pdf.CellFormat(24, 6, row.ApartmentCode, "1", 0, "C", false, 0, "")
		pdf.CellFormat(36, 6, row.Owner, "1", 0, "L", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%.2f", row.OpeningUSD), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%.2f", row.QuotaUSD), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%.2f", row.PaymentsUSD), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%.2f", row.PaymentsBs), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%.2f", row.ClosingUSD), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 6, "Totals", "1", 0, "L", false, 0, "")
	pdf.CellFormat(26, 6, "", "1", 0, "R", false, 0, "")
	pdf.CellFormat(26, 6, fmt.Sprintf("%.2f", ledger.TotalQuotaUSD), "1", 0, "R", false, 0, "")
	pdf.CellFormat(26, 6, fmt.Sprintf("%.2f", ledger.TotalPaymentsUSD), "1", 0, "R", false, 0, "")
	pdf.CellFormat(26, 6, fmt.Sprintf("%.2f", ledger.TotalPaymentsBs), "1", 0, "R", false, 0, "")
	pdf.CellFormat(26, 6, fmt.Sprintf("%.2f", ledger.TotalClosingUSD), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildLedgerXLSX renders the ledger as a workbook.
func BuildLedgerXLSX(ledger *application.Ledger) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "ledger"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Debt Ledger")
	_ = f.SetCellValue(sheet, "A2", "Condominium")
	_ = f.SetCellValue(sheet, "B2", ledger.CondominiumID)
	_ = f.SetCellValue(sheet, "A3", "Period")
	_ = f.SetCellValue(sheet, "B3", ledger.PeriodLabel)
	_ = f.SetCellValue(sheet, "A4", "From snapshot")
	_ = f.SetCellValue(sheet, "B4", ledger.FromSnapshot)

	headers := []string{"Apartment", "Owner", "Opening USD", "Quota USD", "Payments USD", "Payments Bs", "Closing USD"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 6)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, row := range ledger.Rows {
		r := i + 7
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", r), row.ApartmentCode)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", r), row.Owner)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", r), row.OpeningUSD)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", r), row.QuotaUSD)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", r), row.PaymentsUSD)
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", r), row.PaymentsBs)
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", r), row.ClosingUSD)
	}
	totalRow := len(ledger.Rows) + 7
	_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", totalRow), "Totals")
	_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", totalRow), ledger.TotalQuotaUSD)
	_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", totalRow), ledger.TotalPaymentsUSD)
	_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", totalRow), ledger.TotalPaymentsBs)
	_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", totalRow), ledger.TotalClosingUSD)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
