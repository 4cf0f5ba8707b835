// Package statement normalizes raw bank statements, either xlsx
// workbooks or pasted text, into uniform transactions ready for the
// transaction store.
package statement

import (
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ErrParseFailure is returned when the input is not readable as a
// statement at all: a broken workbook, or text without a single date
// token. A readable statement with zero detected transactions is not
// an error.
var ErrParseFailure = errors.New("statement: unable to parse statement")

// Transaction is one normalized statement line. Amount is signed:
// charges are negative.
type Transaction struct {
	Date        time.Time
	Reference   string
	Amount      float64
	Description string
}

// Result is the outcome of normalizing one statement.
type Result struct {
	Transactions []Transaction
	// TotalFees is the absolute sum of bank fee charges found in the
	// statement (commissions, tax withholdings).
	TotalFees float64
}

const headerScanRows = 20

// References shorter than this made of zeros are bank filler lines,
// not transactions.
var zeroReference = regexp.MustCompile(`^0+$`)

var (
	feePattern    = regexp.MustCompile(`COMISION|IVA|RETENCION`)
	datePattern   = regexp.MustCompile(`\b(\d{2}/\d{2}/\d{4})\b`)
	refPattern    = regexp.MustCompile(`\b(\d{8,13})\b`)
	amountPattern = regexp.MustCompile(`\b([\d\.]+,\d{2})\b`)
	debitPattern  = regexp.MustCompile(`DEBITO|TARJETA|REVERSO|PAGO SERVICIO`)
)

var accentReplacer = strings.NewReplacer(
	"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U", "Ü", "U", "Ñ", "N",
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
)

func normalizeText(s string) string {
	return strings.ToUpper(accentReplacer.Replace(s))
}

// IsFee reports whether a description names a bank fee.
func IsFee(description string) bool {
	return feePattern.MatchString(normalizeText(description))
}

// ParseWorkbook extracts transactions from an xlsx bank statement.
// The header row is located by scanning the first rows for a date
// column label; when no header is present the columns are guessed
// from each row's cell shapes.
func ParseWorkbook(r io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, ErrParseFailure
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrParseFailure
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, ErrParseFailure
	}

	cols, headerIdx := locateHeader(rows)
	var result Result
	if cols != nil {
		for _, row := range rows[headerIdx+1:] {
			tx, ok := extractByColumns(row, cols)
			if ok {
				appendTransaction(&result, tx)
			}
		}
	} else {
		for _, row := range rows {
			tx, ok := guessRow(row)
			if ok {
				appendTransaction(&result, tx)
			}
		}
	}
	return &result, nil
}

type columnMap struct {
	date        int
	reference   int
	amount      int
	description int
}

// locateHeader scans the first rows for a labeled header and maps the
// column positions. Returns nil when no header is found.
func locateHeader(rows [][]string) (*columnMap, int) {
	limit := headerScanRows
	if len(rows) < limit {
		limit = len(rows)
	}
	for i := 0; i < limit; i++ {
		cols := columnMap{date: -1, reference: -1, amount: -1, description: -1}
		for j, cell := range rows[i] {
			label := normalizeText(strings.TrimSpace(cell))
			switch {
			case cols.date < 0 && (strings.Contains(label, "FECHA") || strings.Contains(label, "DATE")):
				cols.date = j
			case cols.reference < 0 && (strings.Contains(label, "REFERENCIA") || strings.Contains(label, "REFERENCE")):
				cols.reference = j
			case cols.amount < 0 && (strings.Contains(label, "MONTO") || strings.Contains(label, "AMOUNT") || strings.Contains(label, "IMPORTE")):
				cols.amount = j
			case cols.description < 0 && (strings.Contains(label, "DESC") || strings.Contains(label, "CONCEP") || strings.Contains(label, "DETALLE")):
				cols.description = j
			}
		}
		if cols.date >= 0 && cols.reference >= 0 && cols.amount >= 0 {
			return &cols, i
		}
	}
	return nil, 0
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func extractByColumns(row []string, cols *columnMap) (Transaction, bool) {
	date, ok := parseDate(cellAt(row, cols.date))
	if !ok {
		return Transaction{}, false
	}
	ref := strings.TrimSpace(cellAt(row, cols.reference))
	amount, ok := parseAmount(cellAt(row, cols.amount))
	if !ok {
		return Transaction{}, false
	}
	return Transaction{
		Date:        date,
		Reference:   ref,
		Amount:      amount,
		Description: cellAt(row, cols.description),
	}, true
}

// guessRow identifies date, reference and amount cells by shape when
// the statement carries no header row.
func guessRow(row []string) (Transaction, bool) {
	var tx Transaction
	var haveDate, haveRef, haveAmount bool
	var desc []string
	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if !haveDate {
			if d, ok := parseDate(cell); ok {
				tx.Date = d
				haveDate = true
				continue
			}
		}
		if !haveRef && refPattern.MatchString(cell) && !strings.ContainsAny(cell, ",.") {
			tx.Reference = cell
			haveRef = true
			continue
		}
		if !haveAmount {
			if a, ok := parseAmount(cell); ok {
				tx.Amount = a
				haveAmount = true
				continue
			}
		}
		desc = append(desc, cell)
	}
	if !haveDate || !haveRef || !haveAmount {
		return Transaction{}, false
	}
	tx.Description = strings.Join(desc, " ")
	return tx, true
}

func appendTransaction(result *Result, tx Transaction) {
	if tx.Reference == "" || zeroReference.MatchString(tx.Reference) {
		return
	}
	if IsFee(tx.Description) {
		if tx.Amount > 0 {
			tx.Amount = -tx.Amount
		}
		result.TotalFees += -tx.Amount
	}
	result.Transactions = append(result.Transactions, tx)
}

var dateLayouts = []string{"02/01/2006", "2/1/2006", "2006-01-02", "02-01-2006"}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseAmount handles both separator conventions. A value carrying
// both "." and "," uses "." for thousands and "," for decimals; a
// value with only "," uses it as the decimal separator.
func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	}
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	switch {
	case strings.Contains(s, ".") && strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}

// ParseText extracts transactions from a pasted plain-text statement.
// The text is segmented at each date occurrence; each segment yields at
// most one transaction.
func ParseText(text string) (*Result, error) {
	locs := datePattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil, ErrParseFailure
	}

	var result Result
	seen := make(map[string]struct{})
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		segment := text[loc[0]:end]

		date, ok := parseDate(text[loc[0]:loc[1]])
		if !ok {
			continue
		}
		rest := segment[loc[1]-loc[0]:]
		ref := refPattern.FindString(rest)
		if ref == "" || zeroReference.MatchString(ref) {
			continue
		}
		rawAmount := amountPattern.FindString(rest)
		amount, ok := parseAmount(rawAmount)
		if !ok {
			continue
		}
		normalized := normalizeText(segment)
		if debitPattern.MatchString(normalized) {
			amount = -amount
		}
		key := ref + "|" + strconv.FormatFloat(amount, 'f', 2, 64)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		tx := Transaction{Date: date, Reference: ref, Amount: amount, Description: strings.TrimSpace(rest)}
		if IsFee(tx.Description) {
			if tx.Amount > 0 {
				tx.Amount = -tx.Amount
			}
			result.TotalFees += -tx.Amount
		}
		result.Transactions = append(result.Transactions, tx)
	}
	return &result, nil
}
