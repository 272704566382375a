package session

import (
	"regexp"
	"strings"
	"time"

	"fjacquet/stmt-import/internal/commit"
	"fjacquet/stmt-import/internal/models"
	"fjacquet/stmt-import/internal/parsererror"
)

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ImportRequest is the input of ProcessImport. Account fills in any
// transaction that carries none.
type ImportRequest struct {
	Transactions []models.RawTransaction `json:"transactions"`
	Account      string                  `json:"account"`
}

// ExecuteRequest is the input of ExecuteImport.
type ExecuteRequest struct {
	Transactions []models.ConfirmedTransaction `json:"transactions"`
}

func validateImport(req *ImportRequest) error {
	if len(req.Transactions) == 0 {
		return parsererror.NewRequestError("transactions must be a non-empty array")
	}
	for i := range req.Transactions {
		txn := &req.Transactions[i]
		if txn.Account == "" {
			txn.Account = req.Account
		}
		if err := validateRaw(i, *txn); err != nil {
			return err
		}
	}
	return nil
}

func validateDate(i int, date string) error {
	if !isoDate.MatchString(date) {
		return &parsererror.ValidationError{Index: i, Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	if _, err := time.Parse(models.DateLayoutISO, date); err != nil {
		return &parsererror.ValidationError{Index: i, Field: "date", Reason: "not a calendar date"}
	}
	return nil
}

// validateRaw checks one import item. A blank description is accepted: the
// transformers emit one for an empty cell and it resolves to "no match".
func validateRaw(i int, txn models.RawTransaction) error {
	if err := validateDate(i, txn.Date); err != nil {
		return err
	}
	required := []struct {
		field string
		value string
	}{
		{"account", txn.Account},
		{"rawRow", txn.RawRow},
		{"checksum", txn.Checksum},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &parsererror.ValidationError{Index: i, Field: r.field, Reason: "is required"}
		}
	}
	return nil
}

func validateExecute(req ExecuteRequest) error {
	if len(req.Transactions) == 0 {
		return parsererror.NewRequestError("transactions must be a non-empty array")
	}
	for i, txn := range req.Transactions {
		if err := commit.ValidateConfirmed(i, txn); err != nil {
			return err
		}
		if err := validateDate(i, txn.Date); err != nil {
			return err
		}
	}
	return nil
}
