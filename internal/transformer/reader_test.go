package transformer

import (
	"errors"
	"strings"
	"testing"

	"fjacquet/stmt-import/internal/logging"
	"fjacquet/stmt-import/internal/parsererror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const amexCSV = `Date,Description,Amount,Town/City
13/02/2026,WOOLWORTHS  1234,125.50,"NORTH SYDNEY
NSW"
2026-02-14,BAD DATE ROW,10.00,SYDNEY
15/02/2026,NETFLIX.COM,16.99,
`

func TestReadCSV(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader(amexCSV))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "NORTH SYDNEY\nNSW", rows[0][AmexColCity])
	assert.Equal(t, "NETFLIX.COM", rows[2][AmexColDescription])
}

func TestTransformAll(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader(amexCSV))
	require.NoError(t, err)

	logger := logging.NewMockLogger()
	txns, rowErrs := TransformAll(NewAmexTransformer(""), rows, logger)

	require.Len(t, txns, 2)
	require.Len(t, rowErrs, 1)
	assert.Equal(t, 1, rowErrs[0].Index)

	var invalid *parsererror.InvalidRowError
	assert.True(t, errors.As(rowErrs[0], &invalid))
	assert.Equal(t, AmexColDate, invalid.Field)

	assert.Equal(t, "North Sydney", txns[0].Location)
	assert.True(t, txns[1].Online)

	assert.True(t, logger.HasEntry("WARN", "Skipping invalid statement row"))
	assert.True(t, logger.HasEntry("INFO", "Transformed statement rows"))
}

func TestTransformAll_NilLogger(t *testing.T) {
	txns, rowErrs := TransformAll(NewAmexTransformer(""), nil, nil)
	assert.Empty(t, txns)
	assert.Empty(t, rowErrs)
}

func TestRead_DispatchesOnFormat(t *testing.T) {
	rows, err := Read("amex", strings.NewReader(amexCSV))
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rows, err = Read("camt", strings.NewReader(camtStatement))
	require.NoError(t, err)
	assert.NotEmpty(t, rows)
}
