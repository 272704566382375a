package session

import (
	"context"
	"fmt"
	"strings"

	"fjacquet/stmt-import/internal/logging"
	"fjacquet/stmt-import/internal/matcher"
	"fjacquet/stmt-import/internal/models"
)

// Skip and failure reasons reported on bucket items.
const (
	ReasonDuplicateInBatch = "duplicate checksum in batch"
	ReasonAlreadyImported  = "already imported"
	ReasonNoMatch          = "no match"
	ReasonLowConfidence    = "low confidence"
	ReasonOracleError      = "oracle error"
	ReasonHistoryError     = "history lookup failed"
	ReasonInternalError    = "internal error"
)

// ProcessImport validates req, creates a pending import session and returns
// its id without waiting for processing. Validation failures are returned as
// *parsererror.ValidationError and create no session.
func (m *Manager) ProcessImport(ctx context.Context, req ImportRequest) (string, error) {
	req.Transactions = append([]models.RawTransaction(nil), req.Transactions...)
	if err := validateImport(&req); err != nil {
		return "", err
	}

	s := &models.ImportSession{
		Kind:    models.SessionKindImport,
		Account: req.Account,
		Total:   len(req.Transactions),
		Result:  models.NewImportResult(),
	}
	return m.start(ctx, s, func(ctx context.Context, w *worker) error {
		return w.runImport(ctx, req.Transactions)
	})
}

// importRun holds per-session state that only the worker touches.
type importRun struct {
	matcher  *matcher.Matcher
	entities models.EntityLookup
	seen     map[string]bool
}

func (w *worker) runImport(ctx context.Context, txns []models.RawTransaction) error {
	deps := w.m.deps
	entities, err := deps.Entities.ListEntities(ctx)
	if err != nil {
		return fmt.Errorf("failed to load entity lookup: %w", err)
	}
	aliases, err := deps.Entities.ListAliases(ctx)
	if err != nil {
		return fmt.Errorf("failed to load alias table: %w", err)
	}

	run := &importRun{
		matcher:  matcher.New(entities, aliases),
		entities: entities,
		seen:     make(map[string]bool, len(txns)),
	}

	for i, txn := range txns {
		bucket, item := w.resolveItem(ctx, run, i, txn)
		w.live.Result.Add(bucket, item)
		if item.Error != "" {
			w.live.Errors = append(w.live.Errors, models.ItemError{Index: i, Error: item.Error})
		}
		w.live.ProcessedCount++
		w.publish()

		w.log.Debug("Transaction resolved",
			logging.F(logging.FieldIndex, i),
			logging.F(logging.FieldBucket, bucket),
			logging.F(logging.FieldDescription, txn.Description))
	}
	return nil
}

// resolveItem runs resolve and turns a panic into a failed item.
func (w *worker) resolveItem(ctx context.Context, run *importRun, index int, txn models.RawTransaction) (bucket models.Bucket, item models.BucketItem) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Transaction resolution panicked",
				logging.F(logging.FieldIndex, index),
				logging.F(logging.FieldError, r))
			bucket = models.BucketFailed
			item = models.BucketItem{
				Index:       index,
				Transaction: txn,
				Reason:      ReasonInternalError,
				Error:       fmt.Sprintf("internal error: %v", r),
			}
		}
	}()
	return w.resolve(ctx, run, index, txn)
}

// resolve places one transaction. Order: duplicate checks, correction rule,
// entity matcher, oracle. Collaborator failures stay local to the item.
func (w *worker) resolve(ctx context.Context, run *importRun, index int, txn models.RawTransaction) (models.Bucket, models.BucketItem) {
	deps := w.m.deps
	item := models.BucketItem{Index: index, Transaction: txn}

	if run.seen[txn.Checksum] {
		item.Reason = ReasonDuplicateInBatch
		return models.BucketSkipped, item
	}
	run.seen[txn.Checksum] = true

	if deps.History != nil {
		committed, err := deps.History.HasTransaction(ctx, txn.Checksum)
		if err != nil {
			item.Reason = ReasonHistoryError
			item.Error = err.Error()
			return models.BucketFailed, item
		}
		if committed {
			item.Reason = ReasonAlreadyImported
			return models.BucketSkipped, item
		}
	}

	if match, confidence, ok := w.applyRule(ctx, run, index, txn); ok {
		item.Match = &match
		item.Confidence = confidence
		return models.BucketMatched, item
	}

	if match, ok := run.matcher.Match(txn.Description); ok {
		item.Match = &match
		item.Confidence = 1
		return models.BucketMatched, item
	}

	return w.consultOracle(ctx, item)
}

func (w *worker) applyRule(ctx context.Context, run *importRun, index int, txn models.RawTransaction) (models.MatchResult, float64, bool) {
	rules := w.m.deps.Rules
	if rules == nil {
		return models.MatchResult{}, 0, false
	}

	rule, err := rules.FindMatchingRule(ctx, txn.Description)
	if err != nil {
		w.log.WithError(err).Warn("Correction rule lookup failed", logging.F(logging.FieldIndex, index))
		return models.MatchResult{}, 0, false
	}
	if rule == nil {
		return models.MatchResult{}, 0, false
	}

	name, id, ok := ruleEntity(run.entities, rule)
	if !ok {
		w.log.Debug("Correction rule names an unknown entity",
			logging.F(logging.FieldRuleID, rule.ID),
			logging.F(logging.FieldEntity, rule.EntityName))
		return models.MatchResult{}, 0, false
	}

	if err := rules.RecordApplication(ctx, rule.ID); err != nil {
		w.log.WithError(err).Warn("Failed to record rule application", logging.F(logging.FieldRuleID, rule.ID))
	}
	return models.MatchResult{EntityName: name, EntityID: id, MatchType: models.MatchTypeCorrection}, rule.Confidence, true
}

// ruleEntity resolves the rule's target. Rules seeded from files may carry
// only a name; the id then comes from the lookup. A target without a
// resolvable name is reported as unknown.
func ruleEntity(entities models.EntityLookup, rule *models.CorrectionRule) (string, string, bool) {
	if rule.EntityID != "" {
		name := rule.EntityName
		if name == "" {
			for n, id := range entities {
				if id == rule.EntityID {
					name = n
					break
				}
			}
		}
		if name == "" {
			return "", "", false
		}
		return name, rule.EntityID, true
	}
	if id, ok := entities[rule.EntityName]; ok {
		return rule.EntityName, id, true
	}
	for name, id := range entities {
		if strings.EqualFold(name, strings.TrimSpace(rule.EntityName)) {
			return name, id, true
		}
	}
	return "", "", false
}

func (w *worker) consultOracle(ctx context.Context, item models.BucketItem) (models.Bucket, models.BucketItem) {
	o := w.m.deps.Oracle
	if o == nil {
		item.Reason = ReasonNoMatch
		item.Error = ReasonNoMatch
		return models.BucketFailed, item
	}

	proposal, err := o.Categorize(ctx, item.Transaction.Description)
	if err != nil {
		item.Reason = ReasonOracleError
		item.Error = err.Error()
		return models.BucketFailed, item
	}
	if proposal == nil {
		item.Reason = ReasonNoMatch
		item.Error = ReasonNoMatch
		return models.BucketFailed, item
	}

	item.Confidence = proposal.Confidence
	if proposal.Confidence < w.m.threshold {
		item.Reason = ReasonLowConfidence
		item.Error = fmt.Sprintf("oracle proposed %s with confidence %.2f below threshold %.2f",
			proposal.EntityName, proposal.Confidence, w.m.threshold)
		return models.BucketFailed, item
	}

	item.Match = &models.MatchResult{
		EntityName: proposal.EntityName,
		EntityID:   proposal.EntityID,
		MatchType:  models.MatchTypeAI,
	}
	return models.BucketUncertain, item
}
