package statement

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]any) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, cell := range row {
			ref, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue(sheet, ref, cell); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestParseWorkbookWithHeader(t *testing.T) {
	r := buildWorkbook(t, [][]any{
		{"BANCO MERCANTIL"},
		{"ESTADO DE CUENTA MARZO"},
		{"FECHA", "REFERENCIA", "DESCRIPCION", "MONTO"},
		{"05/03/2025", "001234567890", "TRANSFERENCIA RECIBIDA", "1.234,56"},
		{"06/03/2025", "001234567891", "COMISIÓN MANTENIMIENTO", "12,00"},
		{"07/03/2025", "000000000000000", "SALDO", "99,99"},
	})
	result, err := ParseWorkbook(r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(result.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(result.Transactions))
	}

	first := result.Transactions[0]
	if first.Reference != "001234567890" {
		t.Fatalf("reference = %q", first.Reference)
	}
	if first.Amount != 1234.56 {
		t.Fatalf("amount = %v", first.Amount)
	}
	want := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	if !first.Date.Equal(want) {
		t.Fatalf("date = %v", first.Date)
	}

	fee := result.Transactions[1]
	if fee.Amount != -12.00 {
		t.Fatalf("fee amount = %v, want charge", fee.Amount)
	}
	if result.TotalFees != 12.00 {
		t.Fatalf("total fees = %v", result.TotalFees)
	}
}

func TestParseWorkbookWithoutHeader(t *testing.T) {
	r := buildWorkbook(t, [][]any{
		{"05/03/2025", "001234567890", "PAGO RECIBIDO", "150,00"},
		{"06/03/2025", "001234567891", "PAGO RECIBIDO", "200,00"},
	})
	result, err := ParseWorkbook(r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(result.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(result.Transactions))
	}
	if result.Transactions[1].Amount != 200.00 {
		t.Fatalf("amount = %v", result.Transactions[1].Amount)
	}
}

func TestParseWorkbookNoTransactions(t *testing.T) {
	r := buildWorkbook(t, [][]any{
		{"BANCO MERCANTIL"},
		{"FECHA", "REFERENCIA", "DESCRIPCION", "MONTO"},
	})
	result, err := ParseWorkbook(r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(result.Transactions) != 0 {
		t.Fatalf("got %d transactions, want 0", len(result.Transactions))
	}
}

func TestParseWorkbookUnreadable(t *testing.T) {
	if _, err := ParseWorkbook(bytes.NewReader([]byte("not an xlsx"))); err != ErrParseFailure {
		t.Fatalf("err = %v, want ErrParseFailure", err)
	}
}

func TestParseAmountConventions(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1.234,56", 1234.56},
		{"1234,56", 1234.56},
		{"1234.56", 1234.56},
		{"150", 150},
		{"-12,50", -12.50},
	}
	for _, c := range cases {
		got, ok := parseAmount(c.in)
		if !ok {
			t.Fatalf("parseAmount(%q) failed", c.in)
		}
		if got != c.want {
			t.Fatalf("parseAmount(%q) = %v, want %v", c.in, got, c.want)
		}
	}
	if _, ok := parseAmount("abc"); ok {
		t.Fatal("expected failure for non numeric")
	}
}

func TestParseText(t *testing.T) {
	text := `05/03/2025 TRANSFERENCIA DESDE OTRO BANCO 001234567890 1.500,00
06/03/2025 PAGO SERVICIO ELECTRICIDAD 009876543210 320,50
06/03/2025 PAGO SERVICIO ELECTRICIDAD 009876543210 320,50
07/03/2025 COMISION MANTENIMIENTO 005555555555 12,00`

	result, err := ParseText(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(result.Transactions) != 3 {
		t.Fatalf("got %d transactions, want 3 after dedupe", len(result.Transactions))
	}

	credit := result.Transactions[0]
	if credit.Amount != 1500.00 {
		t.Fatalf("credit amount = %v", credit.Amount)
	}
	debit := result.Transactions[1]
	if debit.Amount != -320.50 {
		t.Fatalf("debit amount = %v, want negative", debit.Amount)
	}
	if result.TotalFees != 12.00 {
		t.Fatalf("total fees = %v", result.TotalFees)
	}
}

func TestParseTextNoDates(t *testing.T) {
	if _, err := ParseText("nothing to see here"); err != ErrParseFailure {
		t.Fatalf("err = %v, want ErrParseFailure", err)
	}
}

func TestParseTextNoTransactions(t *testing.T) {
	result, err := ParseText("01/02/2024 saldo inicial del periodo")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(result.Transactions) != 0 {
		t.Fatalf("got %d transactions, want 0", len(result.Transactions))
	}
}

func TestIsFeeAccentInsensitive(t *testing.T) {
	for _, desc := range []string{"COMISIÓN MANTENIMIENTO", "comision bancaria", "RETENCION IVA", "IVA DEBITO FISCAL"} {
		if !IsFee(desc) {
			t.Fatalf("expected %q to be a fee", desc)
		}
	}
	if IsFee("TRANSFERENCIA RECIBIDA") {
		t.Fatal("transfer must not be a fee")
	}
}
