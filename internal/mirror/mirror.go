// Package mirror copies committed entities and transactions to Notion
// databases.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fjacquet/stmt-import/internal/logging"
	"fjacquet/stmt-import/internal/models"

	"github.com/google/uuid"
)

// Mirror is the external copy of committed records.
type Mirror interface {
	// MirrorTransaction creates the transaction page and returns its id.
	MirrorTransaction(ctx context.Context, txn models.ConfirmedTransaction) (string, error)

	// CreateEntityPage creates an entity page and returns its id and URL.
	CreateEntityPage(ctx context.Context, name string) (string, string, error)

	// ArchivePage removes a page created earlier.
	ArchivePage(ctx context.Context, pageID string) error
}

// Notion mirrors into two Notion databases.
type Notion struct {
	svc            NotionService
	entitiesDB     string
	transactionsDB string
	logger         logging.Logger
}

// NewNotion creates a Notion mirror.
func NewNotion(svc NotionService, entitiesDB, transactionsDB string, logger logging.Logger) *Notion {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Notion{svc: svc, entitiesDB: entitiesDB, transactionsDB: transactionsDB, logger: logger}
}

// MirrorTransaction implements Mirror.
func (n *Notion) MirrorTransaction(ctx context.Context, txn models.ConfirmedTransaction) (string, error) {
	if n.transactionsDB == "" {
		return "", errors.New("notion transactions database is not configured")
	}
	page, err := n.svc.CreatePage(ctx, n.transactionsDB, TransactionProperties(txn))
	if err != nil {
		return "", fmt.Errorf("failed to mirror transaction: %w", err)
	}
	n.logger.Debug("Mirrored transaction",
		logging.F(logging.FieldChecksum, txn.Checksum),
		logging.F(logging.FieldEntityID, txn.EntityID))
	return string(page.ID), nil
}

// CreateEntityPage implements Mirror.
func (n *Notion) CreateEntityPage(ctx context.Context, name string) (string, string, error) {
	if n.entitiesDB == "" {
		return "", "", errors.New("notion entities database is not configured")
	}
	page, err := n.svc.CreatePage(ctx, n.entitiesDB, EntityProperties(name))
	if err != nil {
		return "", "", fmt.Errorf("failed to create entity page: %w", err)
	}
	url := page.URL
	if url == "" {
		url = PageURL(string(page.ID))
	}
	return string(page.ID), url, nil
}

// ArchivePage implements Mirror.
func (n *Notion) ArchivePage(ctx context.Context, pageID string) error {
	return n.svc.ArchivePage(ctx, pageID)
}

// Offline stands in for Notion when no token is configured. Entity ids are
// random UUIDs, URLs are their URNs and nothing leaves the process.
type Offline struct {
	logger logging.Logger
}

// NewOffline creates an offline mirror.
func NewOffline(logger logging.Logger) *Offline {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Offline{logger: logger}
}

// MirrorTransaction implements Mirror.
func (o *Offline) MirrorTransaction(ctx context.Context, txn models.ConfirmedTransaction) (string, error) {
	return "", nil
}

// CreateEntityPage implements Mirror.
func (o *Offline) CreateEntityPage(ctx context.Context, name string) (string, string, error) {
	id := uuid.NewString()
	o.logger.Debug("Created offline entity",
		logging.F(logging.FieldEntity, name),
		logging.F(logging.FieldEntityID, id))
	return id, "urn:uuid:" + id, nil
}

// ArchivePage implements Mirror.
func (o *Offline) ArchivePage(ctx context.Context, pageID string) error {
	return nil
}

// PageURL returns the public URL of a Notion page id.
func PageURL(pageID string) string {
	return "https://www.notion.so/" + strings.ReplaceAll(pageID, "-", "")
}
