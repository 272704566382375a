package transformer

import (
	"fmt"
	"io"
	"strings"

	"fjacquet/stmt-import/internal/logging"
	"fjacquet/stmt-import/internal/models"

	"github.com/gocarina/gocsv"
)

// ReadCSV reads a headed CSV statement into raw rows keyed by column name.
func ReadCSV(r io.Reader) ([]RawBankRow, error) {
	maps, err := gocsv.CSVToMaps(r)
	if err != nil {
		return nil, fmt.Errorf("error parsing CSV statement: %w", err)
	}
	rows := make([]RawBankRow, len(maps))
	for i, m := range maps {
		rows[i] = RawBankRow(m)
	}
	return rows, nil
}

// Read decodes a statement file of the given format into raw rows.
func Read(format string, r io.Reader) ([]RawBankRow, error) {
	if strings.EqualFold(format, camtFormat) {
		return ReadCAMT(r)
	}
	return ReadCSV(r)
}

// RowError ties a transform failure to the row's position in the input.
type RowError struct {
	Index int
	Err   error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Index, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// TransformAll transforms every row, collecting per-row failures instead of
// stopping at the first one.
func TransformAll(t Transformer, rows []RawBankRow, logger logging.Logger) ([]models.RawTransaction, []RowError) {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	txns := make([]models.RawTransaction, 0, len(rows))
	var rowErrors []RowError
	for i, row := range rows {
		txn, err := t.Transform(row)
		if err != nil {
			logger.WithError(err).Warn("Skipping invalid statement row",
				logging.F(logging.FieldFormat, t.Format()),
				logging.F(logging.FieldIndex, i))
			rowErrors = append(rowErrors, RowError{Index: i, Err: err})
			continue
		}
		txns = append(txns, txn)
	}

	logger.Info("Transformed statement rows",
		logging.F(logging.FieldFormat, t.Format()),
		logging.F(logging.FieldCount, len(txns)),
		logging.F(logging.FieldTotal, len(rows)))
	return txns, rowErrors
}
