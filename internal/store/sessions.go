package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"fjacquet/stmt-import/internal/models"

	"github.com/boltdb/bolt"
)

// SaveSession stores a snapshot of s, replacing any earlier snapshot.
func (s *Store) SaveSession(ctx context.Context, session *models.ImportSession) error {
	if session == nil || session.SessionID == "" {
		return errors.New("session has no id")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(bucketSessions), []byte(session.SessionID), session)
	})
}

// LoadSession returns the last stored snapshot of a session.
func (s *Store) LoadSession(ctx context.Context, id string) (*models.ImportSession, error) {
	var out *models.ImportSession
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		var v models.ImportSession
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("unable to decode session %s: %w", id, err)
		}
		out = &v
		return nil
	})
	return out, err
}

// ListSessions returns every stored snapshot, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]*models.ImportSession, error) {
	var out []*models.ImportSession
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(k, v []byte) error {
			var session models.ImportSession
			if err := json.Unmarshal(v, &session); err != nil {
				return fmt.Errorf("unable to decode session %s: %w", k, err)
			}
			out = append(out, &session)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
