// Package store persists entities, aliases, correction rules, committed
// transactions and session snapshots in a local bolt database.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fjacquet/stmt-import/internal/correction"
	"fjacquet/stmt-import/internal/logging"
	"fjacquet/stmt-import/internal/models"

	"github.com/boltdb/bolt"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("already exists")
)

var (
	bucketEntities     = []byte("entities")
	bucketEntityNames  = []byte("entity_names")
	bucketAliases      = []byte("aliases")
	bucketRules        = []byte("rules")
	bucketTransactions = []byte("transactions")
	bucketSessions     = []byte("sessions")

	allBuckets = [][]byte{bucketEntities, bucketEntityNames, bucketAliases, bucketRules, bucketTransactions, bucketSessions}
)

// CommittedTransaction is the stored form of a committed transaction.
type CommittedTransaction struct {
	models.ConfirmedTransaction
	MirrorPageID string    `json:"mirrorPageId,omitempty"`
	CommittedAt  time.Time `json:"committedAt"`
}

// Store is a bolt-backed store. It is safe for concurrent use.
type Store struct {
	db        *bolt.DB
	evaluator *correction.Evaluator
	logger    logging.Logger
	now       func() time.Time
}

// Open opens or creates the database at path.
func Open(path string, logger logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("unable to open boltdb at %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("unable to create bucket %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("Opened store", logging.F(logging.FieldInputFile, path))
	return &Store{
		db:        db,
		evaluator: correction.NewEvaluator(),
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func nameKey(name string) []byte {
	return []byte(strings.ToUpper(strings.TrimSpace(name)))
}

func put(b *bolt.Bucket, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("unable to encode %s: %w", key, err)
	}
	return b.Put(key, data)
}

// ListEntities returns the entity name to id lookup.
func (s *Store) ListEntities(ctx context.Context) (models.EntityLookup, error) {
	lookup := make(models.EntityLookup)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntities).ForEach(func(k, v []byte) error {
			var e models.Entity
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("unable to decode entity %s: %w", k, err)
			}
			lookup[e.Name] = e.ID
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return lookup, nil
}

// Entities returns every stored entity ordered by name.
func (s *Store) Entities(ctx context.Context) ([]models.Entity, error) {
	var entities []models.Entity
	err := s.db.View(func(tx *bolt.Tx) error {
		names := tx.Bucket(bucketEntityNames)
		byID := tx.Bucket(bucketEntities)
		c := names.Cursor()
		for k, id := c.First(); k != nil; k, id = c.Next() {
			var e models.Entity
			if err := json.Unmarshal(byID.Get(id), &e); err != nil {
				return fmt.Errorf("unable to decode entity %s: %w", id, err)
			}
			entities = append(entities, e)
		}
		return nil
	})
	return entities, err
}

// SaveEntity stores a new entity. Names are unique case-insensitively.
func (s *Store) SaveEntity(ctx context.Context, entity models.Entity) error {
	if strings.TrimSpace(entity.Name) == "" || entity.ID == "" {
		return errors.New("entity requires a name and an id")
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = s.now().UTC()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		names := tx.Bucket(bucketEntityNames)
		key := nameKey(entity.Name)
		if existing := names.Get(key); existing != nil {
			return fmt.Errorf("entity %q: %w", entity.Name, ErrDuplicate)
		}
		if err := names.Put(key, []byte(entity.ID)); err != nil {
			return err
		}
		return put(tx.Bucket(bucketEntities), []byte(entity.ID), entity)
	})
}

// FindEntityByName looks an entity up case-insensitively.
func (s *Store) FindEntityByName(ctx context.Context, name string) (*models.Entity, error) {
	var entity *models.Entity
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketEntityNames).Get(nameKey(name))
		if id == nil {
			return fmt.Errorf("entity %q: %w", name, ErrNotFound)
		}
		var e models.Entity
		if err := json.Unmarshal(tx.Bucket(bucketEntities).Get(id), &e); err != nil {
			return fmt.Errorf("unable to decode entity %s: %w", id, err)
		}
		entity = &e
		return nil
	})
	return entity, err
}

// DeleteEntity removes an entity and its name index entry.
func (s *Store) DeleteEntity(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		entities := tx.Bucket(bucketEntities)
		data := entities.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("entity %s: %w", id, ErrNotFound)
		}
		var e models.Entity
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("unable to decode entity %s: %w", id, err)
		}
		if err := tx.Bucket(bucketEntityNames).Delete(nameKey(e.Name)); err != nil {
			return err
		}
		return entities.Delete([]byte(id))
	})
}

// ListAliases returns the alias table.
func (s *Store) ListAliases(ctx context.Context) (models.AliasTable, error) {
	aliases := make(models.AliasTable)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAliases).ForEach(func(k, v []byte) error {
			aliases[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return aliases, nil
}

// SaveAlias maps alias to entityName. The alias is stored verbatim,
// including surrounding spaces, since they take part in matching.
func (s *Store) SaveAlias(ctx context.Context, alias, entityName string) error {
	if strings.TrimSpace(alias) == "" {
		return errors.New("alias must not be blank")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAliases).Put([]byte(alias), []byte(entityName))
	})
}

// ListRules returns every correction rule, best first.
func (s *Store) ListRules(ctx context.Context) ([]models.CorrectionRule, error) {
	var rules []models.CorrectionRule
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRules).ForEach(func(k, v []byte) error {
			var r models.CorrectionRule
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unable to decode rule %s: %w", k, err)
			}
			rules = append(rules, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	correction.SortRules(rules)
	return rules, nil
}

// FindMatchingRule returns the best rule matching description, or nil.
func (s *Store) FindMatchingRule(ctx context.Context, description string) (*models.CorrectionRule, error) {
	rules, err := s.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	return s.evaluator.Select(rules, description), nil
}

// RecordApplication bumps a rule's usage counter and last-used time.
func (s *Store) RecordApplication(ctx context.Context, ruleID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRules)
		data := b.Get([]byte(ruleID))
		if data == nil {
			return fmt.Errorf("rule %s: %w", ruleID, ErrNotFound)
		}
		var r models.CorrectionRule
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("unable to decode rule %s: %w", ruleID, err)
		}
		now := s.now().UTC()
		r.TimesApplied++
		r.LastUsedAt = &now
		return put(b, []byte(ruleID), r)
	})
}

// SaveRule inserts or replaces a rule. Replacing keeps the original
// creation time and usage statistics.
func (s *Store) SaveRule(ctx context.Context, rule models.CorrectionRule) error {
	if rule.ID == "" {
		rule.ID = correction.RuleID(rule.MatchType, rule.DescriptionPattern)
	}
	if err := correction.Validate(rule); err != nil {
		return fmt.Errorf("invalid rule %s: %w", rule.ID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRules)
		if data := b.Get([]byte(rule.ID)); data != nil {
			var existing models.CorrectionRule
			if err := json.Unmarshal(data, &existing); err != nil {
				return fmt.Errorf("unable to decode rule %s: %w", rule.ID, err)
			}
			rule.CreatedAt = existing.CreatedAt
			rule.TimesApplied = existing.TimesApplied
			rule.LastUsedAt = existing.LastUsedAt
		}
		if rule.CreatedAt.IsZero() {
			rule.CreatedAt = s.now().UTC()
		}
		return put(b, []byte(rule.ID), rule)
	})
}

// DeleteRule removes a rule.
func (s *Store) DeleteRule(ctx context.Context, ruleID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRules)
		if b.Get([]byte(ruleID)) == nil {
			return fmt.Errorf("rule %s: %w", ruleID, ErrNotFound)
		}
		return b.Delete([]byte(ruleID))
	})
}

// PersistTransaction stores a committed transaction keyed by checksum.
func (s *Store) PersistTransaction(ctx context.Context, txn models.ConfirmedTransaction) error {
	if txn.Checksum == "" {
		return errors.New("transaction has no checksum")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTransactions)
		if b.Get([]byte(txn.Checksum)) != nil {
			return fmt.Errorf("transaction %s: %w", txn.Checksum, ErrDuplicate)
		}
		return put(b, []byte(txn.Checksum), CommittedTransaction{
			ConfirmedTransaction: txn,
			CommittedAt:          s.now().UTC(),
		})
	})
}

// MarkMirrored records the external page id of a committed transaction.
func (s *Store) MarkMirrored(ctx context.Context, checksum, pageID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTransactions)
		data := b.Get([]byte(checksum))
		if data == nil {
			return fmt.Errorf("transaction %s: %w", checksum, ErrNotFound)
		}
		var ct CommittedTransaction
		if err := json.Unmarshal(data, &ct); err != nil {
			return fmt.Errorf("unable to decode transaction %s: %w", checksum, err)
		}
		ct.MirrorPageID = pageID
		return put(b, []byte(checksum), ct)
	})
}

// DeleteTransaction removes a committed transaction.
func (s *Store) DeleteTransaction(ctx context.Context, checksum string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTransactions).Delete([]byte(checksum))
	})
}

// HasTransaction reports whether checksum was already committed.
func (s *Store) HasTransaction(ctx context.Context, checksum string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketTransactions).Get([]byte(checksum)) != nil
		return nil
	})
	return found, err
}

// Transaction returns a committed transaction by checksum.
func (s *Store) Transaction(ctx context.Context, checksum string) (*CommittedTransaction, error) {
	var ct *CommittedTransaction
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTransactions).Get([]byte(checksum))
		if data == nil {
			return fmt.Errorf("transaction %s: %w", checksum, ErrNotFound)
		}
		var v CommittedTransaction
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("unable to decode transaction %s: %w", checksum, err)
		}
		ct = &v
		return nil
	})
	return ct, err
}
