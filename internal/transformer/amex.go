package transformer

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fjacquet/stmt-import/internal/models"
	"fjacquet/stmt-import/internal/parsererror"

	"github.com/shopspring/decimal"
)

// Amex CSV export columns.
const (
	AmexColDate        = "Date"
	AmexColDescription = "Description"
	AmexColAmount      = "Amount"
	AmexColCity        = "Town/City"

	amexFormat     = "amex"
	amexDateLayout = "02/01/2006"
)

var amexDatePattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)

// AmexTransformer maps American Express card CSV rows. Amex reports charges
// as positive amounts, so the sign is inverted for the ledger.
type AmexTransformer struct {
	account string
}

// NewAmexTransformer creates an Amex transformer tagging rows with account
// (defaults to "amex").
func NewAmexTransformer(account string) *AmexTransformer {
	if account == "" {
		account = amexFormat
	}
	return &AmexTransformer{account: account}
}

// Format returns the registry name.
func (t *AmexTransformer) Format() string { return amexFormat }

// Transform maps one Amex row.
func (t *AmexTransformer) Transform(row RawBankRow) (models.RawTransaction, error) {
	rawDate, ok := row[AmexColDate]
	if !ok {
		return models.RawTransaction{}, t.invalid(AmexColDate, "", errors.New("column missing"))
	}
	date, err := parseSlashDate(rawDate)
	if err != nil {
		return models.RawTransaction{}, t.invalid(AmexColDate, rawDate, err)
	}

	rawAmount, ok := row[AmexColAmount]
	if !ok {
		return models.RawTransaction{}, t.invalid(AmexColAmount, "", errors.New("column missing"))
	}
	amount, err := parseAmount(rawAmount)
	if err != nil {
		return models.RawTransaction{}, t.invalid(AmexColAmount, rawAmount, err)
	}

	description := CleanDescription(row[AmexColDescription])
	rawRow := SerializeRow(row)

	return models.RawTransaction{
		Date:        date,
		Description: description,
		Amount:      amount.Neg(),
		Account:     t.account,
		Location:    NormalizeLocation(row[AmexColCity]),
		Online:      IsOnline(description),
		RawRow:      rawRow,
		Checksum:    Checksum(rawRow),
	}, nil
}

func (t *AmexTransformer) invalid(field, value string, err error) error {
	return &parsererror.InvalidRowError{Format: amexFormat, Field: field, Value: value, Err: err}
}

// parseSlashDate accepts only D/M/YYYY or DD/MM/YYYY and returns the ISO date.
func parseSlashDate(value string) (string, error) {
	m := amexDatePattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return "", errors.New("expected DD/MM/YYYY")
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	padded := fmt.Sprintf("%02d/%02d/%s", day, month, m[3])
	parsed, err := time.Parse(amexDateLayout, padded)
	if err != nil {
		return "", fmt.Errorf("not a calendar date: %w", err)
	}
	return parsed.Format(models.DateLayoutISO), nil
}

// parseAmount parses a trimmed decimal string without changing its sign.
func parseAmount(value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Decimal{}, errors.New("amount is empty")
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("not a decimal number: %w", err)
	}
	return amount, nil
}
