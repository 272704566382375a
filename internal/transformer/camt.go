package transformer

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"fjacquet/stmt-import/internal/models"
	"fjacquet/stmt-import/internal/parsererror"

	"gopkg.in/xmlpath.v2"
)

// Field names of a CAMT.053 entry flattened into a RawBankRow.
const (
	CamtBookingDate    = "BookgDt"
	CamtAmount         = "Amt"
	CamtCurrency       = "Ccy"
	CamtCreditDebit    = "CdtDbtInd"
	CamtAccountSvcRef  = "AcctSvcrRef"
	CamtAddEntryInfo   = "AddtlNtryInf"
	CamtRemittanceInfo = "Ustrd"
	CamtCreditorName   = "CdtrNm"
	CamtDebtorName     = "DbtrNm"
	CamtTownName       = "TwnNm"

	camtFormat = "camt"
)

// Relative paths evaluated against each Ntry element.
var camtEntryPaths = map[string]*xmlpath.Path{
	CamtBookingDate:    xmlpath.MustCompile("BookgDt/Dt"),
	CamtAmount:         xmlpath.MustCompile("Amt"),
	CamtCurrency:       xmlpath.MustCompile("Amt/@Ccy"),
	CamtCreditDebit:    xmlpath.MustCompile("CdtDbtInd"),
	CamtAccountSvcRef:  xmlpath.MustCompile("AcctSvcrRef"),
	CamtAddEntryInfo:   xmlpath.MustCompile("AddtlNtryInf"),
	CamtRemittanceInfo: xmlpath.MustCompile("NtryDtls/TxDtls/RmtInf/Ustrd"),
	CamtCreditorName:   xmlpath.MustCompile("NtryDtls/TxDtls/RltdPties/Cdtr/Nm"),
	CamtDebtorName:     xmlpath.MustCompile("NtryDtls/TxDtls/RltdPties/Dbtr/Nm"),
	CamtTownName:       xmlpath.MustCompile("NtryDtls/TxDtls/RltdPties/Cdtr/PstlAdr/TwnNm"),
}

var camtEntries = xmlpath.MustCompile("//BkToCstmrStmt/Stmt/Ntry")

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ReadCAMT extracts one RawBankRow per statement entry of a CAMT.053 document.
// Elements absent from an entry are absent from its row.
func ReadCAMT(r io.Reader) ([]RawBankRow, error) {
	root, err := xmlpath.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CAMT XML: %w", err)
	}

	var rows []RawBankRow
	iter := camtEntries.Iter(root)
	for iter.Next() {
		entry := iter.Node()
		row := make(RawBankRow, len(camtEntryPaths))
		for field, path := range camtEntryPaths {
			if value, ok := path.String(entry); ok {
				row[field] = strings.TrimSpace(value)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// CamtTransformer maps flattened CAMT.053 entries. Amounts are unsigned in
// CAMT; the credit/debit indicator carries the direction.
type CamtTransformer struct {
	account string
}

// NewCamtTransformer creates a CAMT transformer tagging rows with account
// (defaults to "camt").
func NewCamtTransformer(account string) *CamtTransformer {
	if account == "" {
		account = camtFormat
	}
	return &CamtTransformer{account: account}
}

// Format returns the registry name.
func (t *CamtTransformer) Format() string { return camtFormat }

// Transform maps one flattened entry.
func (t *CamtTransformer) Transform(row RawBankRow) (models.RawTransaction, error) {
	rawDate := strings.TrimSpace(row[CamtBookingDate])
	if !isoDatePattern.MatchString(rawDate) {
		return models.RawTransaction{}, t.invalid(CamtBookingDate, rawDate, errors.New("expected YYYY-MM-DD"))
	}
	if _, err := time.Parse(models.DateLayoutISO, rawDate); err != nil {
		return models.RawTransaction{}, t.invalid(CamtBookingDate, rawDate, fmt.Errorf("not a calendar date: %w", err))
	}

	amount, err := parseAmount(row[CamtAmount])
	if err != nil {
		return models.RawTransaction{}, t.invalid(CamtAmount, row[CamtAmount], err)
	}
	if amount.IsNegative() {
		return models.RawTransaction{}, t.invalid(CamtAmount, row[CamtAmount], errors.New("amount must be unsigned"))
	}

	indicator := strings.ToUpper(strings.TrimSpace(row[CamtCreditDebit]))
	counterparty := ""
	switch indicator {
	case "DBIT":
		amount = amount.Neg()
		counterparty = row[CamtCreditorName]
	case "CRDT":
		counterparty = row[CamtDebtorName]
	default:
		return models.RawTransaction{}, t.invalid(CamtCreditDebit, row[CamtCreditDebit], errors.New("expected DBIT or CRDT"))
	}

	description := CleanDescription(firstNonBlank(counterparty, row[CamtAddEntryInfo], row[CamtRemittanceInfo]))
	rawRow := SerializeRow(row)

	return models.RawTransaction{
		Date:        rawDate,
		Description: description,
		Amount:      amount,
		Account:     t.account,
		Location:    NormalizeLocation(row[CamtTownName]),
		Online:      IsOnline(description),
		RawRow:      rawRow,
		Checksum:    Checksum(rawRow),
	}, nil
}

func (t *CamtTransformer) invalid(field, value string, err error) error {
	return &parsererror.InvalidRowError{Format: camtFormat, Field: field, Value: value, Err: err}
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
