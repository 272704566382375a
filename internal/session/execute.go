package session

import (
	"context"
	"errors"
	"fmt"

	"fjacquet/stmt-import/internal/commit"
	"fjacquet/stmt-import/internal/logging"
	"fjacquet/stmt-import/internal/models"
	"fjacquet/stmt-import/internal/parsererror"
)

// ExecuteImport validates req, creates a pending execute session and returns
// its id. Each confirmed transaction is committed independently; a failing
// item never stops the batch.
func (m *Manager) ExecuteImport(ctx context.Context, req ExecuteRequest) (string, error) {
	if m.deps.Committer == nil {
		return "", errors.New("no committer configured")
	}
	if err := validateExecute(req); err != nil {
		return "", err
	}
	txns := append([]models.ConfirmedTransaction(nil), req.Transactions...)

	s := &models.ImportSession{
		Kind:          models.SessionKindExecute,
		Total:         len(txns),
		ExecuteResult: models.NewExecuteResult(),
	}
	return m.start(ctx, s, func(ctx context.Context, w *worker) error {
		w.runExecute(ctx, txns)
		return nil
	})
}

func (w *worker) runExecute(ctx context.Context, txns []models.ConfirmedTransaction) {
	result := w.live.ExecuteResult
	for i, txn := range txns {
		outcome, err := w.commitItem(ctx, txn)
		switch {
		case err != nil:
			msg := causeMessage(err)
			result.Failed = append(result.Failed, models.ExecuteFailure{Item: txn, Error: msg})
			w.live.Errors = append(w.live.Errors, models.ItemError{Index: i, Error: msg})
			w.log.WithError(err).Warn("Commit failed",
				logging.F(logging.FieldIndex, i),
				logging.F(logging.FieldChecksum, txn.Checksum))
		case outcome == commit.Skipped:
			result.Skipped = append(result.Skipped, txn)
		default:
			result.Imported++
		}
		w.live.ProcessedCount++
		w.publish()
	}
}

// commitItem commits one transaction, reporting a panic as an error.
func (w *worker) commitItem(ctx context.Context, txn models.ConfirmedTransaction) (outcome commit.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return w.m.deps.Committer.Commit(ctx, txn)
}

// causeMessage returns the collaborator's own message for commit failures.
func causeMessage(err error) string {
	var ce *parsererror.CommitError
	if errors.As(err, &ce) && ce.Err != nil {
		return ce.Err.Error()
	}
	return err.Error()
}
