package transformer

import (
	"strings"
	"testing"

	"fjacquet/stmt-import/internal/parsererror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const camtStatement = `<?xml version="1.0" encoding="UTF-8"?>
<Document>
  <BkToCstmrStmt>
    <Stmt>
      <Ntry>
        <Amt Ccy="CHF">52.80</Amt>
        <CdtDbtInd>DBIT</CdtDbtInd>
        <BookgDt><Dt>2025-03-04</Dt></BookgDt>
        <AcctSvcrRef>REF-001</AcctSvcrRef>
        <AddtlNtryInf>Card purchase</AddtlNtryInf>
        <NtryDtls><TxDtls>
          <RltdPties>
            <Cdtr><Nm>MIGROS  GENEVE</Nm><PstlAdr><TwnNm>GENEVE</TwnNm></PstlAdr></Cdtr>
          </RltdPties>
          <RmtInf><Ustrd>Groceries</Ustrd></RmtInf>
        </TxDtls></NtryDtls>
      </Ntry>
      <Ntry>
        <Amt Ccy="CHF">4200.00</Amt>
        <CdtDbtInd>CRDT</CdtDbtInd>
        <BookgDt><Dt>2025-03-25</Dt></BookgDt>
        <AcctSvcrRef>REF-002</AcctSvcrRef>
        <NtryDtls><TxDtls>
          <RltdPties><Dbtr><Nm>ACME SA</Nm></Dbtr></RltdPties>
        </TxDtls></NtryDtls>
      </Ntry>
    </Stmt>
  </BkToCstmrStmt>
</Document>`

func TestReadCAMT(t *testing.T) {
	rows, err := ReadCAMT(strings.NewReader(camtStatement))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "2025-03-04", rows[0][CamtBookingDate])
	assert.Equal(t, "52.80", rows[0][CamtAmount])
	assert.Equal(t, "CHF", rows[0][CamtCurrency])
	assert.Equal(t, "MIGROS  GENEVE", rows[0][CamtCreditorName])
	assert.Equal(t, "GENEVE", rows[0][CamtTownName])

	_, hasCreditor := rows[1][CamtCreditorName]
	assert.False(t, hasCreditor)
	assert.Equal(t, "ACME SA", rows[1][CamtDebtorName])
}

func TestReadCAMT_InvalidXML(t *testing.T) {
	_, err := ReadCAMT(strings.NewReader("<Document><unclosed>"))
	assert.Error(t, err)
}

func TestCamtTransform(t *testing.T) {
	rows, err := ReadCAMT(strings.NewReader(camtStatement))
	require.NoError(t, err)

	tr := NewCamtTransformer("postfinance")

	debit, err := tr.Transform(rows[0])
	require.NoError(t, err)
	assert.Equal(t, "2025-03-04", debit.Date)
	assert.Equal(t, "MIGROS GENEVE", debit.Description)
	assert.True(t, debit.Amount.Equal(decimal.RequireFromString("-52.80")))
	assert.Equal(t, "Geneve", debit.Location)
	assert.Equal(t, "postfinance", debit.Account)
	assert.Len(t, debit.Checksum, 64)

	credit, err := tr.Transform(rows[1])
	require.NoError(t, err)
	assert.Equal(t, "ACME SA", credit.Description)
	assert.True(t, credit.Amount.Equal(decimal.RequireFromString("4200.00")))
	assert.Empty(t, credit.Location)

	assert.NotEqual(t, debit.Checksum, credit.Checksum)
}

func TestCamtTransform_DescriptionFallback(t *testing.T) {
	tr := NewCamtTransformer("")
	txn, err := tr.Transform(RawBankRow{
		CamtBookingDate:    "2025-01-02",
		CamtAmount:         "10",
		CamtCreditDebit:    "DBIT",
		CamtRemittanceInfo: "Invoice 42",
	})
	require.NoError(t, err)
	assert.Equal(t, "Invoice 42", txn.Description)
	assert.Equal(t, "camt", txn.Account)
}

func TestCamtTransform_Invalid(t *testing.T) {
	valid := func() RawBankRow {
		return RawBankRow{CamtBookingDate: "2025-01-02", CamtAmount: "10", CamtCreditDebit: "DBIT"}
	}
	tests := []struct {
		name  string
		field string
		value string
	}{
		{name: "slash date", field: CamtBookingDate, value: "02/01/2025"},
		{name: "impossible date", field: CamtBookingDate, value: "2025-02-30"},
		{name: "signed amount", field: CamtAmount, value: "-10"},
		{name: "empty amount", field: CamtAmount, value: ""},
		{name: "unknown indicator", field: CamtCreditDebit, value: "XXXX"},
	}
	tr := NewCamtTransformer("")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := valid()
			row[tt.field] = tt.value
			_, err := tr.Transform(row)
			require.Error(t, err)
			assert.True(t, parsererror.IsInvalidRow(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}
