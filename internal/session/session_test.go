package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"fjacquet/stmt-import/internal/commit"
	"fjacquet/stmt-import/internal/logging"
	"fjacquet/stmt-import/internal/models"
	"fjacquet/stmt-import/internal/oracle"
	"fjacquet/stmt-import/internal/parsererror"
	"fjacquet/stmt-import/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubOracle answers from a fixed table keyed by description.
type stubOracle struct {
	mu        sync.Mutex
	proposals map[string]*oracle.Proposal
	errs      map[string]error
	calls     []string
	panicOn   string
}

func (s *stubOracle) Categorize(ctx context.Context, description string) (*oracle.Proposal, error) {
	s.mu.Lock()
	s.calls = append(s.calls, description)
	s.mu.Unlock()
	if description == s.panicOn {
		panic("oracle exploded")
	}
	if err := s.errs[description]; err != nil {
		return nil, err
	}
	return s.proposals[description], nil
}

// slowOracle blocks until its context ends.
type slowOracle struct{}

func (slowOracle) Categorize(ctx context.Context, description string) (*oracle.Proposal, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// fakeMirror fails every transaction whose checksum is listed in reject.
type fakeMirror struct {
	reject map[string]error
}

func (f *fakeMirror) MirrorTransaction(ctx context.Context, txn models.ConfirmedTransaction) (string, error) {
	if err := f.reject[txn.Checksum]; err != nil {
		return "", err
	}
	return "page-" + txn.Checksum, nil
}

func (f *fakeMirror) CreateEntityPage(ctx context.Context, name string) (string, string, error) {
	return "ent-" + name, "https://www.notion.so/ent" + name, nil
}

func (f *fakeMirror) ArchivePage(ctx context.Context, pageID string) error { return nil }

func rawTxn(i int, description string) models.RawTransaction {
	return models.RawTransaction{
		Date:        "2026-02-13",
		Description: description,
		Amount:      decimal.NewFromInt(int64(-10 - i)),
		Account:     "amex",
		RawRow:      fmt.Sprintf(`{"row":%d}`, i),
		Checksum:    fmt.Sprintf("sum-%d", i),
	}
}

func confirmed(i int) models.ConfirmedTransaction {
	return models.ConfirmedTransaction{
		RawTransaction: rawTxn(i, fmt.Sprintf("SHOP %d", i)),
		EntityID:       "ent-w",
		EntityName:     "Woolworths",
		EntityURL:      "https://www.notion.so/entw",
	}
}

func newFixture(t *testing.T) (*store.Memory, *fakeMirror) {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.SaveEntity(ctx, models.Entity{ID: "ent-w", Name: "Woolworths"}))
	require.NoError(t, mem.SaveEntity(ctx, models.Entity{ID: "ent-c", Name: "Coles"}))
	return mem, &fakeMirror{reject: map[string]error{}}
}

func newManager(mem *store.Memory, mir *fakeMirror, o oracle.Oracle) *Manager {
	logger := logging.NewMockLogger()
	deps := Deps{
		Entities:  mem,
		Rules:     mem,
		History:   mem,
		Committer: commit.New(mem, mem, mir, logger),
		Recorder:  mem,
		Oracle:    o,
	}
	return NewManager(deps, 0.7, logger)
}

func waitDone(t *testing.T, m *Manager, id string) *models.ImportSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := m.Wait(ctx, id)
	require.NoError(t, err)
	require.True(t, s.Status.IsTerminal(), "status %s", s.Status)
	return s
}

func TestProcessImport_LargeBatchWithoutEntities(t *testing.T) {
	mem := store.NewMemory()
	m := newManager(mem, &fakeMirror{}, nil)

	txns := make([]models.RawTransaction, 100)
	for i := range txns {
		txns[i] = rawTxn(i, fmt.Sprintf("MERCHANT %d", i))
	}

	id, err := m.ProcessImport(context.Background(), ImportRequest{Transactions: txns, Account: "amex"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	s := waitDone(t, m, id)
	assert.Equal(t, models.SessionStatusCompleted, s.Status)
	assert.Equal(t, 100, s.Total)
	assert.Equal(t, 100, s.ProcessedCount)
	assert.Equal(t, 100, s.Result.Len())
	require.Len(t, s.Result.Failed, 100)
	for i, item := range s.Result.Failed {
		assert.Equal(t, i, item.Index)
		assert.Equal(t, ReasonNoMatch, item.Reason)
	}
	assert.NotNil(t, s.CompletedAt)
}

func TestProcessImport_ResolutionOrder(t *testing.T) {
	mem, mir := newFixture(t)
	ctx := context.Background()

	require.NoError(t, mem.SaveRule(ctx, models.CorrectionRule{
		DescriptionPattern: "SPECIAL STORE",
		MatchType:          models.RuleMatchExact,
		EntityName:         "Coles",
		Confidence:         0.95,
	}))
	require.NoError(t, mem.PersistTransaction(ctx, models.ConfirmedTransaction{
		RawTransaction: rawTxn(5, "OLD"),
		EntityID:       "ent-w",
	}))

	o := &stubOracle{
		proposals: map[string]*oracle.Proposal{
			"UNKNOWN SHOP": {EntityName: "Coles", EntityID: "ent-c", Confidence: 0.9},
			"MYSTERY":      {EntityName: "Woolworths", EntityID: "ent-w", Confidence: 0.3},
		},
		errs: map[string]error{"BROKEN": errors.New("upstream unavailable")},
	}
	m := newManager(mem, mir, o)

	dup := rawTxn(0, "WOOLWORTHS 1234")
	txns := []models.RawTransaction{
		rawTxn(0, "WOOLWORTHS 1234"),
		rawTxn(1, "SPECIAL STORE"),
		rawTxn(2, "UNKNOWN SHOP"),
		rawTxn(3, "MYSTERY"),
		dup,
		rawTxn(5, "ALREADY THERE"),
		rawTxn(6, "BROKEN"),
	}

	id, err := m.ProcessImport(ctx, ImportRequest{Transactions: txns})
	require.NoError(t, err)
	s := waitDone(t, m, id)

	require.Equal(t, models.SessionStatusCompleted, s.Status)
	assert.Equal(t, len(txns), s.Result.Len())

	require.Len(t, s.Result.Matched, 2)
	assert.Equal(t, 0, s.Result.Matched[0].Index)
	assert.Equal(t, models.MatchTypePrefix, s.Result.Matched[0].Match.MatchType)
	assert.Equal(t, "ent-w", s.Result.Matched[0].Match.EntityID)
	assert.Equal(t, 1, s.Result.Matched[1].Index)
	assert.Equal(t, models.MatchTypeCorrection, s.Result.Matched[1].Match.MatchType)
	assert.Equal(t, "ent-c", s.Result.Matched[1].Match.EntityID)
	assert.Equal(t, 0.95, s.Result.Matched[1].Confidence)

	require.Len(t, s.Result.Uncertain, 1)
	assert.Equal(t, 2, s.Result.Uncertain[0].Index)
	assert.Equal(t, models.MatchTypeAI, s.Result.Uncertain[0].Match.MatchType)

	require.Len(t, s.Result.Failed, 2)
	assert.Equal(t, 3, s.Result.Failed[0].Index)
	assert.Equal(t, ReasonLowConfidence, s.Result.Failed[0].Reason)
	assert.Equal(t, 6, s.Result.Failed[1].Index)
	assert.Equal(t, "upstream unavailable", s.Result.Failed[1].Error)

	require.Len(t, s.Result.Skipped, 2)
	assert.Equal(t, ReasonDuplicateInBatch, s.Result.Skipped[0].Reason)
	assert.Equal(t, 4, s.Result.Skipped[0].Index)
	assert.Equal(t, ReasonAlreadyImported, s.Result.Skipped[1].Reason)

	rules, err := mem.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 1, rules[0].TimesApplied)
	assert.NotNil(t, rules[0].LastUsedAt)

	// Matched and skipped items never reach the oracle.
	assert.ElementsMatch(t, []string{"UNKNOWN SHOP", "MYSTERY", "BROKEN"}, o.calls)
}

func TestProcessImport_AccountDefault(t *testing.T) {
	mem, mir := newFixture(t)
	m := newManager(mem, mir, nil)

	txn := rawTxn(0, "COLES 42")
	txn.Account = ""
	id, err := m.ProcessImport(context.Background(), ImportRequest{
		Transactions: []models.RawTransaction{txn},
		Account:      "visa",
	})
	require.NoError(t, err)

	s := waitDone(t, m, id)
	require.Len(t, s.Result.Matched, 1)
	assert.Equal(t, "visa", s.Result.Matched[0].Transaction.Account)
	assert.Equal(t, "visa", s.Account)
}

func TestProcessImport_Validation(t *testing.T) {
	m := newManager(store.NewMemory(), &fakeMirror{}, nil)

	tests := []struct {
		name   string
		mutate func(*models.RawTransaction)
		field  string
	}{
		{"bad date format", func(r *models.RawTransaction) { r.Date = "13/02/2026" }, "date"},
		{"impossible date", func(r *models.RawTransaction) { r.Date = "2026-02-30" }, "date"},
		{"missing account", func(r *models.RawTransaction) { r.Account = "" }, "account"},
		{"missing raw row", func(r *models.RawTransaction) { r.RawRow = "" }, "rawRow"},
		{"missing checksum", func(r *models.RawTransaction) { r.Checksum = " " }, "checksum"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			good := rawTxn(0, "A")
			bad := rawTxn(1, "B")
			tt.mutate(&bad)

			_, err := m.ProcessImport(context.Background(), ImportRequest{
				Transactions: []models.RawTransaction{good, bad},
			})
			var ve *parsererror.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, 1, ve.Index)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	_, err := m.ProcessImport(context.Background(), ImportRequest{})
	assert.True(t, parsererror.IsValidation(err))
	assert.Empty(t, m.List())
}

func TestProcessImport_LookupFailureFailsSession(t *testing.T) {
	mem, mir := newFixture(t)
	mem.ListEntitiesError = errors.New("database locked")
	m := newManager(mem, mir, nil)

	id, err := m.ProcessImport(context.Background(), ImportRequest{
		Transactions: []models.RawTransaction{rawTxn(0, "COLES")},
	})
	require.NoError(t, err)

	s := waitDone(t, m, id)
	assert.Equal(t, models.SessionStatusFailed, s.Status)
	assert.Contains(t, s.Error, "failed to load entity lookup")
	assert.Contains(t, s.Error, "database locked")
	assert.Equal(t, 0, s.ProcessedCount)
}

func TestProcessImport_PanicIsItemFailure(t *testing.T) {
	mem, mir := newFixture(t)
	o := &stubOracle{panicOn: "KABOOM"}
	m := newManager(mem, mir, o)

	id, err := m.ProcessImport(context.Background(), ImportRequest{
		Transactions: []models.RawTransaction{
			rawTxn(0, "COLES 1"),
			rawTxn(1, "KABOOM"),
			rawTxn(2, "COLES 2"),
		},
	})
	require.NoError(t, err)

	s := waitDone(t, m, id)
	require.Equal(t, models.SessionStatusCompleted, s.Status)
	assert.Empty(t, s.Error)
	assert.Equal(t, 3, s.ProcessedCount)
	require.Len(t, s.Result.Matched, 2)
	assert.Equal(t, 2, s.Result.Matched[1].Index)

	require.Len(t, s.Result.Failed, 1)
	failed := s.Result.Failed[0]
	assert.Equal(t, 1, failed.Index)
	assert.Equal(t, ReasonInternalError, failed.Reason)
	assert.Contains(t, failed.Error, "oracle exploded")
	require.Len(t, s.Errors, 1)
	assert.Equal(t, 1, s.Errors[0].Index)
}

func TestProcessImport_GuardedOraclePanicIsItemFailure(t *testing.T) {
	mem, mir := newFixture(t)
	guarded := oracle.NewGuardedOracle(&stubOracle{panicOn: "KABOOM"}, "gemini", time.Second, 0)
	m := newManager(mem, mir, oracle.NewCachingOracle(guarded, 0))

	id, err := m.ProcessImport(context.Background(), ImportRequest{
		Transactions: []models.RawTransaction{rawTxn(0, "KABOOM"), rawTxn(1, "COLES")},
	})
	require.NoError(t, err)

	s := waitDone(t, m, id)
	require.Equal(t, models.SessionStatusCompleted, s.Status)
	require.Len(t, s.Result.Failed, 1)
	assert.Equal(t, ReasonOracleError, s.Result.Failed[0].Reason)
	assert.Contains(t, s.Result.Failed[0].Error, "oracle panic: oracle exploded")
	assert.Len(t, s.Result.Matched, 1)
}

func TestProcessImport_BlankDescriptionIsNoMatch(t *testing.T) {
	mem, mir := newFixture(t)
	m := newManager(mem, mir, nil)

	id, err := m.ProcessImport(context.Background(), ImportRequest{
		Transactions: []models.RawTransaction{rawTxn(0, ""), rawTxn(1, "COLES")},
	})
	require.NoError(t, err)

	s := waitDone(t, m, id)
	require.Equal(t, models.SessionStatusCompleted, s.Status)
	require.Len(t, s.Result.Failed, 1)
	assert.Equal(t, 0, s.Result.Failed[0].Index)
	assert.Equal(t, ReasonNoMatch, s.Result.Failed[0].Reason)
	assert.Len(t, s.Result.Matched, 1)
}

func TestProcessImport_RuleForUnknownEntityFallsThrough(t *testing.T) {
	mem, mir := newFixture(t)
	ctx := context.Background()
	require.NoError(t, mem.SaveRule(ctx, models.CorrectionRule{
		DescriptionPattern: "WOOLWORTHS 77",
		MatchType:          models.RuleMatchExact,
		EntityID:           "ent-deleted",
		Confidence:         0.99,
	}))
	m := newManager(mem, mir, nil)

	id, err := m.ProcessImport(ctx, ImportRequest{
		Transactions: []models.RawTransaction{rawTxn(0, "WOOLWORTHS 77")},
	})
	require.NoError(t, err)

	s := waitDone(t, m, id)
	require.Len(t, s.Result.Matched, 1)
	match := s.Result.Matched[0].Match
	assert.Equal(t, models.MatchTypePrefix, match.MatchType)
	assert.Equal(t, "Woolworths", match.EntityName)
	assert.Equal(t, "ent-w", match.EntityID)
}

func TestRuleEntity(t *testing.T) {
	lookup := models.EntityLookup{"Woolworths": "ent-w", "Coles": "ent-c"}

	tests := []struct {
		name     string
		rule     models.CorrectionRule
		wantName string
		wantID   string
		wantOK   bool
	}{
		{"id and name", models.CorrectionRule{EntityID: "ent-x", EntityName: "Aldi"}, "Aldi", "ent-x", true},
		{"id resolved by lookup", models.CorrectionRule{EntityID: "ent-c"}, "Coles", "ent-c", true},
		{"unknown id without name", models.CorrectionRule{EntityID: "ent-gone"}, "", "", false},
		{"name only", models.CorrectionRule{EntityName: "coles "}, "Coles", "ent-c", true},
		{"unknown name", models.CorrectionRule{EntityName: "Aldi"}, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := tt.rule
			name, id, ok := ruleEntity(lookup, &rule)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestProcessImport_LargeBatchRunsInLinearTime(t *testing.T) {
	if testing.Short() {
		t.Skip("large batch")
	}
	mem := store.NewMemory()
	require.NoError(t, mem.SaveEntity(context.Background(), models.Entity{ID: "ent-w", Name: "Woolworths"}))
	m := NewManager(Deps{Entities: mem, Rules: mem, History: mem}, 0.7, nil)

	const n = 20000
	txns := make([]models.RawTransaction, n)
	for i := range txns {
		description := fmt.Sprintf("MERCHANT %d", i)
		if i%2 == 0 {
			description = fmt.Sprintf("WOOLWORTHS %d", i)
		}
		txns[i] = rawTxn(i, description)
	}

	started := time.Now()
	id, err := m.ProcessImport(context.Background(), ImportRequest{Transactions: txns, Account: "amex"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	s, err := m.Wait(ctx, id)
	require.NoError(t, err)
	elapsed := time.Since(started)

	require.Equal(t, models.SessionStatusCompleted, s.Status)
	assert.Equal(t, n, s.ProcessedCount)
	assert.Len(t, s.Result.Matched, n/2)
	assert.Len(t, s.Result.Failed, n/2)
	assert.Less(t, elapsed, 20*time.Second, "processing %d transactions took %s", n, elapsed)
}

func TestManager_ProgressDuringProcessingIsStable(t *testing.T) {
	mem, mir := newFixture(t)
	release := make(chan struct{})
	m := newManager(mem, mir, &blockingOracle{release: release})

	id, err := m.ProcessImport(context.Background(), ImportRequest{
		Transactions: []models.RawTransaction{rawTxn(0, "COLES"), rawTxn(1, "UNKNOWN"), rawTxn(2, "WOOLWORTHS")},
	})
	require.NoError(t, err)

	var mid *models.ImportSession
	require.Eventually(t, func() bool {
		s, err := m.GetImportProgress(context.Background(), id)
		if err != nil || s.ProcessedCount != 1 {
			return false
		}
		mid = s
		return true
	}, 5*time.Second, 5*time.Millisecond)

	close(release)
	final := waitDone(t, m, id)

	assert.Len(t, mid.Result.Matched, 1)
	assert.Equal(t, 1, mid.ProcessedCount)
	assert.Len(t, final.Result.Matched, 2)
	assert.Len(t, final.Result.Failed, 1)
}

func TestProcessImport_OracleTimeoutIsItemFailure(t *testing.T) {
	mem, mir := newFixture(t)
	guarded := oracle.NewGuardedOracle(slowOracle{}, "slow", 20*time.Millisecond, 0)
	m := newManager(mem, mir, guarded)

	id, err := m.ProcessImport(context.Background(), ImportRequest{
		Transactions: []models.RawTransaction{rawTxn(0, "HUNG MERCHANT"), rawTxn(1, "COLES")},
	})
	require.NoError(t, err)

	s := waitDone(t, m, id)
	require.Equal(t, models.SessionStatusCompleted, s.Status)
	require.Len(t, s.Result.Failed, 1)
	assert.Equal(t, ReasonOracleError, s.Result.Failed[0].Reason)
	assert.Contains(t, s.Result.Failed[0].Error, "deadline exceeded")
	assert.Len(t, s.Result.Matched, 1)
	require.Len(t, s.Errors, 1)
	assert.Equal(t, 0, s.Errors[0].Index)
}

func TestProcessImport_ReturnsBeforeProcessing(t *testing.T) {
	mem, mir := newFixture(t)
	block := make(chan struct{})
	o := &blockingOracle{release: block}
	m := newManager(mem, mir, o)

	id, err := m.ProcessImport(context.Background(), ImportRequest{
		Transactions: []models.RawTransaction{rawTxn(0, "UNKNOWN")},
	})
	require.NoError(t, err)

	s, err := m.GetImportProgress(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, s.Status.IsTerminal())

	close(block)
	s = waitDone(t, m, id)
	assert.Equal(t, models.SessionStatusCompleted, s.Status)
}

type blockingOracle struct {
	release chan struct{}
}

func (b *blockingOracle) Categorize(ctx context.Context, description string) (*oracle.Proposal, error) {
	<-b.release
	return nil, nil
}

func TestExecuteImport_PartialFailureIsolation(t *testing.T) {
	mem, mir := newFixture(t)
	mir.reject["sum-2"] = errors.New("notion: validation_error body failed")
	m := newManager(mem, mir, nil)

	txns := []models.ConfirmedTransaction{confirmed(0), confirmed(1), confirmed(2), confirmed(3)}
	id, err := m.ExecuteImport(context.Background(), ExecuteRequest{Transactions: txns})
	require.NoError(t, err)

	s := waitDone(t, m, id)
	require.Equal(t, models.SessionStatusCompleted, s.Status)
	assert.Equal(t, 4, s.ProcessedCount)
	require.NotNil(t, s.ExecuteResult)
	assert.Equal(t, 3, s.ExecuteResult.Imported)
	require.Len(t, s.ExecuteResult.Failed, 1)
	assert.Equal(t, "sum-2", s.ExecuteResult.Failed[0].Item.Checksum)
	assert.Equal(t, "notion: validation_error body failed", s.ExecuteResult.Failed[0].Error)
	assert.Empty(t, s.ExecuteResult.Skipped)

	// The failed item was rolled back and can be retried.
	found, err := mem.HasTransaction(context.Background(), "sum-2")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 3, mem.TransactionCount())
}

// panickingCommitter panics for one checksum and delegates otherwise.
type panickingCommitter struct {
	inner   Committer
	panicOn string
}

func (p *panickingCommitter) Commit(ctx context.Context, txn models.ConfirmedTransaction) (commit.Outcome, error) {
	if txn.Checksum == p.panicOn {
		panic("mirror client nil pointer")
	}
	return p.inner.Commit(ctx, txn)
}

func TestExecuteImport_PanicIsItemFailure(t *testing.T) {
	mem, mir := newFixture(t)
	logger := logging.NewMockLogger()
	deps := Deps{
		Entities:  mem,
		Committer: &panickingCommitter{inner: commit.New(mem, mem, mir, logger), panicOn: "sum-1"},
	}
	m := NewManager(deps, 0.7, logger)

	txns := []models.ConfirmedTransaction{confirmed(0), confirmed(1), confirmed(2)}
	id, err := m.ExecuteImport(context.Background(), ExecuteRequest{Transactions: txns})
	require.NoError(t, err)

	s := waitDone(t, m, id)
	require.Equal(t, models.SessionStatusCompleted, s.Status)
	assert.Equal(t, 3, s.ProcessedCount)
	assert.Equal(t, 2, s.ExecuteResult.Imported)
	require.Len(t, s.ExecuteResult.Failed, 1)
	assert.Equal(t, "sum-1", s.ExecuteResult.Failed[0].Item.Checksum)
	assert.Contains(t, s.ExecuteResult.Failed[0].Error, "mirror client nil pointer")
}

func TestExecuteImport_SkipsCommitted(t *testing.T) {
	mem, mir := newFixture(t)
	m := newManager(mem, mir, nil)

	first, err := m.ExecuteImport(context.Background(), ExecuteRequest{
		Transactions: []models.ConfirmedTransaction{confirmed(0)},
	})
	require.NoError(t, err)
	waitDone(t, m, first)

	second, err := m.ExecuteImport(context.Background(), ExecuteRequest{
		Transactions: []models.ConfirmedTransaction{confirmed(0), confirmed(1)},
	})
	require.NoError(t, err)
	s := waitDone(t, m, second)
	assert.Equal(t, 1, s.ExecuteResult.Imported)
	require.Len(t, s.ExecuteResult.Skipped, 1)
	assert.Equal(t, "sum-0", s.ExecuteResult.Skipped[0].Checksum)
}

func TestExecuteImport_Validation(t *testing.T) {
	m := newManager(store.NewMemory(), &fakeMirror{}, nil)

	tests := []struct {
		name   string
		mutate func(*models.ConfirmedTransaction)
		field  string
	}{
		{"missing entity id", func(c *models.ConfirmedTransaction) { c.EntityID = "" }, "entityId"},
		{"missing entity name", func(c *models.ConfirmedTransaction) { c.EntityName = "" }, "entityName"},
		{"missing entity url", func(c *models.ConfirmedTransaction) { c.EntityURL = "" }, "entityUrl"},
		{"bad date", func(c *models.ConfirmedTransaction) { c.Date = "2026-2-1" }, "date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := confirmed(0)
			tt.mutate(&txn)
			_, err := m.ExecuteImport(context.Background(), ExecuteRequest{
				Transactions: []models.ConfirmedTransaction{txn},
			})
			var ve *parsererror.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, 0, ve.Index)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	_, err := m.ExecuteImport(context.Background(), ExecuteRequest{})
	assert.True(t, parsererror.IsValidation(err))
}

func TestManager_ProgressLookup(t *testing.T) {
	mem, mir := newFixture(t)
	m := newManager(mem, mir, nil)
	ctx := context.Background()

	_, err := m.GetImportProgress(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Wait(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	id, err := m.ProcessImport(ctx, ImportRequest{
		Transactions: []models.RawTransaction{rawTxn(0, "COLES")},
	})
	require.NoError(t, err)
	waitDone(t, m, id)

	// A fresh manager sharing the recorder still answers for the session.
	other := newManager(mem, mir, nil)
	s, err := other.GetImportProgress(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, s.Status)
	assert.Equal(t, 1, s.ProcessedCount)
}

func TestManager_SnapshotsAreIsolated(t *testing.T) {
	mem, mir := newFixture(t)
	m := newManager(mem, mir, nil)

	id, err := m.ProcessImport(context.Background(), ImportRequest{
		Transactions: []models.RawTransaction{rawTxn(0, "COLES")},
	})
	require.NoError(t, err)
	s := waitDone(t, m, id)

	s.Result.Matched[0].Match.EntityName = "tampered"
	again, err := m.GetImportProgress(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Coles", again.Result.Matched[0].Match.EntityName)
}

func TestManager_Close(t *testing.T) {
	mem, mir := newFixture(t)
	m := newManager(mem, mir, nil)

	id, err := m.ProcessImport(context.Background(), ImportRequest{
		Transactions: []models.RawTransaction{rawTxn(0, "COLES")},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Close(ctx))

	s, err := m.GetImportProgress(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, s.Status)

	_, err = m.ProcessImport(context.Background(), ImportRequest{
		Transactions: []models.RawTransaction{rawTxn(1, "COLES")},
	})
	assert.ErrorIs(t, err, ErrClosed)
	assert.Len(t, m.List(), 1)
}

func TestManager_ConcurrentSessions(t *testing.T) {
	mem, mir := newFixture(t)
	m := newManager(mem, mir, nil)

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := m.ProcessImport(context.Background(), ImportRequest{
				Transactions: []models.RawTransaction{rawTxn(i, "WOOLWORTHS"), rawTxn(100+i, "COLES")},
			})
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		s := waitDone(t, m, id)
		assert.Equal(t, models.SessionStatusCompleted, s.Status)
		assert.Len(t, s.Result.Matched, 2)
	}
	assert.Len(t, m.List(), 10)
}

func TestCauseMessage(t *testing.T) {
	inner := errors.New("mirror refused")
	assert.Equal(t, "mirror refused", causeMessage(&parsererror.CommitError{Step: "mirror", Subject: "x", Err: inner}))
	assert.Equal(t, "plain", causeMessage(errors.New("plain")))
}
