// Package commit durably records operator-confirmed transactions and new
// entities, locally and in the external mirror.
package commit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fjacquet/stmt-import/internal/correction"
	"fjacquet/stmt-import/internal/logging"
	"fjacquet/stmt-import/internal/mirror"
	"fjacquet/stmt-import/internal/models"
	"fjacquet/stmt-import/internal/parsererror"
	"fjacquet/stmt-import/internal/store"
)

// Commit steps reported in *parsererror.CommitError.
const (
	StepPersist = "persist"
	StepMirror  = "mirror"
	StepLookup  = "lookup"
)

// Persister is the local store used by the commit phase.
type Persister interface {
	PersistTransaction(ctx context.Context, txn models.ConfirmedTransaction) error
	MarkMirrored(ctx context.Context, checksum, pageID string) error
	DeleteTransaction(ctx context.Context, checksum string) error
	HasTransaction(ctx context.Context, checksum string) (bool, error)
	SaveEntity(ctx context.Context, entity models.Entity) error
	FindEntityByName(ctx context.Context, name string) (*models.Entity, error)
}

// RuleSaver stores correction rules learned from confirmations.
type RuleSaver interface {
	SaveRule(ctx context.Context, rule models.CorrectionRule) error
}

// Outcome is the result of committing one transaction.
type Outcome int

const (
	// Imported means the transaction was persisted and mirrored.
	Imported Outcome = iota
	// Skipped means the checksum had already been committed.
	Skipped
)

// Committer commits confirmed transactions and creates entities.
type Committer struct {
	store  Persister
	rules  RuleSaver
	mirror mirror.Mirror
	logger logging.Logger
	now    func() time.Time
}

// New creates a Committer. rules may be nil to disable rule learning.
func New(persister Persister, rules RuleSaver, m mirror.Mirror, logger logging.Logger) *Committer {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Committer{store: persister, rules: rules, mirror: m, logger: logger, now: time.Now}
}

// ValidateConfirmed checks the fields a confirmed transaction needs before it
// can be committed.
func ValidateConfirmed(index int, txn models.ConfirmedTransaction) error {
	required := []struct {
		field string
		value string
	}{
		{"entityId", txn.EntityID},
		{"entityName", txn.EntityName},
		{"entityUrl", txn.EntityURL},
		{"checksum", txn.Checksum},
		{"date", txn.Date},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &parsererror.ValidationError{Index: index, Field: r.field, Reason: "is required"}
		}
	}
	return nil
}

// Commit persists txn locally and mirrors it. A mirror failure removes the
// local record again so the item can be retried cleanly. Errors are
// *parsererror.CommitError.
func (c *Committer) Commit(ctx context.Context, txn models.ConfirmedTransaction) (Outcome, error) {
	subject := "transaction " + txn.Checksum

	committed, err := c.store.HasTransaction(ctx, txn.Checksum)
	if err != nil {
		return Imported, &parsererror.CommitError{Step: StepLookup, Subject: subject, Err: err}
	}
	if committed {
		return Skipped, nil
	}

	if err := c.store.PersistTransaction(ctx, txn); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return Skipped, nil
		}
		return Imported, &parsererror.CommitError{Step: StepPersist, Subject: subject, Err: err}
	}

	pageID, err := c.mirror.MirrorTransaction(ctx, txn)
	if err != nil {
		if delErr := c.store.DeleteTransaction(ctx, txn.Checksum); delErr != nil {
			c.logger.WithError(delErr).Error("Failed to roll back transaction after mirror failure",
				logging.F(logging.FieldChecksum, txn.Checksum))
		}
		return Imported, &parsererror.CommitError{Step: StepMirror, Subject: subject, Err: err}
	}

	if pageID != "" {
		if err := c.store.MarkMirrored(ctx, txn.Checksum, pageID); err != nil {
			c.logger.WithError(err).Warn("Failed to record mirror page id",
				logging.F(logging.FieldChecksum, txn.Checksum))
		}
	}

	if txn.SaveRule && c.rules != nil {
		rule := correction.Learn(txn, c.now())
		if err := c.rules.SaveRule(ctx, rule); err != nil {
			c.logger.WithError(err).Warn("Failed to save correction rule",
				logging.F(logging.FieldRuleID, rule.ID),
				logging.F(logging.FieldDescription, txn.Description))
		} else {
			c.logger.Debug("Learned correction rule",
				logging.F(logging.FieldRuleID, rule.ID),
				logging.F(logging.FieldEntity, txn.EntityName))
		}
	}

	return Imported, nil
}

// CreateEntity creates an entity in the mirror and then locally. If the
// local write fails the mirror page is archived, so a nil error always
// means both sides hold the entity. An existing name returns the stored
// entity unchanged.
func (c *Committer) CreateEntity(ctx context.Context, name string) (models.CreatedEntity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.CreatedEntity{}, parsererror.NewRequestError("entity name is required")
	}
	subject := fmt.Sprintf("entity %q", name)

	existing, err := c.store.FindEntityByName(ctx, name)
	switch {
	case err == nil:
		return created(*existing), nil
	case !errors.Is(err, store.ErrNotFound):
		return models.CreatedEntity{}, &parsererror.CommitError{Step: StepLookup, Subject: subject, Err: err}
	}

	id, url, err := c.mirror.CreateEntityPage(ctx, name)
	if err != nil {
		return models.CreatedEntity{}, &parsererror.CommitError{Step: StepMirror, Subject: subject, Err: err}
	}

	entity := models.Entity{ID: id, Name: name, URL: url, CreatedAt: c.now().UTC()}
	if err := c.store.SaveEntity(ctx, entity); err != nil {
		if archErr := c.mirror.ArchivePage(ctx, id); archErr != nil {
			c.logger.WithError(archErr).Error("Failed to archive entity page after local failure",
				logging.F(logging.FieldEntity, name),
				logging.F(logging.FieldEntityID, id))
		}
		return models.CreatedEntity{}, &parsererror.CommitError{Step: StepPersist, Subject: subject, Err: err}
	}

	c.logger.Info("Created entity",
		logging.F(logging.FieldEntity, name),
		logging.F(logging.FieldEntityID, id))
	return created(entity), nil
}

func created(e models.Entity) models.CreatedEntity {
	return models.CreatedEntity{EntityID: e.ID, EntityName: e.Name, EntityURL: e.URL}
}
